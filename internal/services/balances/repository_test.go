package balances

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/pkg/backoff"
)

// fakeFetcher replays scripted fetch results in order, repeating the
// last one.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	snap domain.BalanceSnapshot
	err  error
}

func (f *fakeFetcher) FetchBalances(ctx context.Context) (domain.BalanceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	return r.snap, r.err
}

type fakePriceSub struct {
	mu         sync.Mutex
	connected  bool
	subscribed [][]string
}

func (f *fakePriceSub) Connect(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
}

func (f *fakePriceSub) Subscribe(symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, symbols)
}

type fakePushStream struct {
	mu     sync.Mutex
	userID string
	ch     chan domain.BalanceSnapshot
}

func newFakePushStream() *fakePushStream {
	return &fakePushStream{ch: make(chan domain.BalanceSnapshot, 8)}
}

func (f *fakePushStream) Connect(ctx context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userID = userID
}

func (f *fakePushStream) Snapshots() <-chan domain.BalanceSnapshot { return f.ch }

func noRetry() *backoff.Policy {
	return backoff.New(backoff.WithMaxAttempts(0), backoff.WithStep(time.Millisecond))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshotWith(assets ...string) domain.BalanceSnapshot {
	snap := domain.BalanceSnapshot{LastUpdated: time.Now()}
	for _, a := range assets {
		snap.Assets = append(snap.Assets, domain.AssetBalance{Asset: a, Total: dec("1")})
	}
	return snap
}

func TestRepository_InitializeFetchesAndSubscribes(t *testing.T) {
	api := &fakeFetcher{results: []fetchResult{{snap: snapshotWith("BTC", "ETH")}}}
	prices := &fakePriceSub{}
	stream := newFakePushStream()
	repo := NewRepository(api, prices, stream, noRetry(), nil, nil)

	changed := make(chan struct{}, 8)
	repo.OnChange(func() { changed <- struct{}{} })

	require.NoError(t, repo.Initialize(context.Background(), "user-1"))

	snap, ok := repo.Snapshot()
	require.True(t, ok)
	assert.Len(t, snap.Assets, 2)
	assert.NoError(t, repo.Err())

	prices.mu.Lock()
	defer prices.mu.Unlock()
	assert.True(t, prices.connected)
	require.Len(t, prices.subscribed, 1)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, prices.subscribed[0])

	stream.mu.Lock()
	assert.Equal(t, "user-1", stream.userID)
	stream.mu.Unlock()

	select {
	case <-changed:
	default:
		t.Fatal("expected change notification after fetch")
	}
}

func TestRepository_InitializeRunsOnce(t *testing.T) {
	api := &fakeFetcher{results: []fetchResult{{snap: snapshotWith("BTC")}}}
	repo := NewRepository(api, &fakePriceSub{}, newFakePushStream(), noRetry(), nil, nil)

	require.NoError(t, repo.Initialize(context.Background(), "user-1"))
	require.NoError(t, repo.Initialize(context.Background(), "user-1"))

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 1, api.calls)
}

func TestRepository_FailedFetchKeepsPreviousSnapshot(t *testing.T) {
	wantErr := errors.New("gateway unavailable")
	api := &fakeFetcher{results: []fetchResult{
		{snap: snapshotWith("BTC")},
		{err: wantErr},
	}}
	repo := NewRepository(api, &fakePriceSub{}, newFakePushStream(), noRetry(), nil, nil)

	require.NoError(t, repo.Initialize(context.Background(), "user-1"))
	before, ok := repo.Snapshot()
	require.True(t, ok)

	err := repo.LoadBalance(context.Background())
	require.Error(t, err)

	// stale beats nothing: the old snapshot survives alongside the
	// error state
	after, ok := repo.Snapshot()
	require.True(t, ok)
	assert.Equal(t, before.LastUpdated, after.LastUpdated)
	assert.Len(t, after.Assets, 1)
	assert.Equal(t, wantErr, repo.Err())
}

func TestRepository_SuccessfulRefetchClearsError(t *testing.T) {
	api := &fakeFetcher{results: []fetchResult{
		{err: errors.New("down")},
		{snap: snapshotWith("BTC")},
	}}
	repo := NewRepository(api, &fakePriceSub{}, newFakePushStream(), noRetry(), nil, nil)

	require.Error(t, repo.Initialize(context.Background(), "user-1"))
	_, ok := repo.Snapshot()
	assert.False(t, ok)

	require.NoError(t, repo.LoadBalance(context.Background()))
	_, ok = repo.Snapshot()
	assert.True(t, ok)
	assert.NoError(t, repo.Err())
}

func TestRepository_CachedResponseRaisesSyncing(t *testing.T) {
	cached := snapshotWith("BTC")
	cached.IsCached = true
	api := &fakeFetcher{results: []fetchResult{{snap: cached}}}
	repo := NewRepository(api, &fakePriceSub{}, newFakePushStream(), noRetry(), nil, nil)

	require.NoError(t, repo.Initialize(context.Background(), "user-1"))
	assert.True(t, repo.Syncing())
}

func TestRepository_PushSupersedesEverything(t *testing.T) {
	cached := snapshotWith("BTC")
	cached.IsCached = true
	api := &fakeFetcher{results: []fetchResult{{snap: cached}}}
	stream := newFakePushStream()
	repo := NewRepository(api, &fakePriceSub{}, stream, noRetry(), nil, nil)

	changed := make(chan struct{}, 8)
	repo.OnChange(func() { changed <- struct{}{} })

	require.NoError(t, repo.Initialize(context.Background(), "user-1"))
	require.True(t, repo.Syncing())
	<-changed // fetch notification

	pushed := snapshotWith("BTC", "ETH", "SOL")
	stream.ch <- pushed

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("push was not applied")
	}

	snap, ok := repo.Snapshot()
	require.True(t, ok)
	assert.Len(t, snap.Assets, 3)
	// a push is authoritative: syncing and error state both clear
	assert.False(t, repo.Syncing())
	assert.NoError(t, repo.Err())
}

func TestRepository_DeriveSymbols(t *testing.T) {
	repo := NewRepository(&fakeFetcher{}, &fakePriceSub{}, newFakePushStream(), noRetry(), []string{"USDT", "USD"}, nil)

	snap := domain.BalanceSnapshot{Assets: []domain.AssetBalance{
		{Asset: "BTC"},
		{Asset: "USDT"}, // primary quote itself: falls to USD
		{Asset: "ETH"},
		{Asset: "BTC"}, // duplicate collapses
	}}

	got := repo.deriveSymbols(snap)
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT", "USDT/USD"}, got)
}
