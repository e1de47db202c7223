// Package events fans enriched portfolio views out to presentation
// consumers.
package events

import (
	"sync"

	"github.com/vadiminshakov/folio/internal/domain"
)

// PortfolioBroadcaster fans out view snapshots to all subscribers via
// buffered channels. The API is intentionally small so call sites stay
// straightforward.
type PortfolioBroadcaster struct {
	mu     sync.RWMutex
	subs   map[chan domain.PortfolioView]struct{}
	buffer int
}

// NewPortfolioBroadcaster creates a broadcaster with the given
// per-subscriber buffer.
func NewPortfolioBroadcaster(buffer int) *PortfolioBroadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &PortfolioBroadcaster{
		subs:   make(map[chan domain.PortfolioView]struct{}),
		buffer: buffer,
	}
}

// Publish sends the view to all subscribers, dropping if a reader is
// slow.
func (b *PortfolioBroadcaster) Publish(v domain.PortfolioView) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives views until Unsubscribe is
// called.
func (b *PortfolioBroadcaster) Subscribe() chan domain.PortfolioView {
	ch := make(chan domain.PortfolioView, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *PortfolioBroadcaster) Unsubscribe(ch chan domain.PortfolioView) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
