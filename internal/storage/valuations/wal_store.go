// Package valuations persists published portfolio views in a WAL so
// dashboard consumers can replay history after (re)connecting. The
// consolidation core itself never reads from here; all of its state is
// rebuilt from the streams and the initial fetch.
package valuations

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	defaultDir          = "./wal/valuations"
	walSegmentThreshold = 1000
	walMaxSegments      = 100
	recordKeyPrefix     = "valuation_"
)

// WALStore is an append-only store of portfolio views.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed valuation store under the
// provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "valuation_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: false,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init valuation WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends one view to the history.
func (s *WALStore) Save(view domain.PortfolioView) error {
	if s == nil || s.wal == nil {
		return errors.New("valuation store is not initialized")
	}

	payload, err := json.Marshal(view)
	if err != nil {
		return errors.Wrap(err, "marshal portfolio view")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", recordKeyPrefix, nextIndex)
	return s.wal.Write(nextIndex, key, payload)
}

// SnapshotsAfter returns all views written after the provided index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.PortfolioRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("valuation store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.PortfolioRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, recordKeyPrefix) {
			continue
		}
		var view domain.PortfolioView
		if err := json.Unmarshal(payload, &view); err != nil {
			return nil, errors.Wrap(err, "decode portfolio view")
		}
		records = append(records, domain.PortfolioRecord{Index: idx, View: view})
	}

	return records, nil
}

// CurrentIndex returns the latest index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("valuation store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
