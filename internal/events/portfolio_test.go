package events

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/domain"
)

func TestBroadcaster_PublishReachesAllSubscribers(t *testing.T) {
	b := NewPortfolioBroadcaster(4)
	a := b.Subscribe()
	c := b.Subscribe()
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(c)

	view := domain.PortfolioView{TotalValueUSD: decimal.NewFromInt(100)}
	b.Publish(view)

	got := <-a
	assert.True(t, got.TotalValueUSD.Equal(view.TotalValueUSD))
	got = <-c
	assert.True(t, got.TotalValueUSD.Equal(view.TotalValueUSD))
}

func TestBroadcaster_SlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	b := NewPortfolioBroadcaster(1)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(domain.PortfolioView{TotalValueUSD: decimal.NewFromInt(1)})
	// buffer is full; this publish must not block
	b.Publish(domain.PortfolioView{TotalValueUSD: decimal.NewFromInt(2)})

	got := <-ch
	assert.True(t, got.TotalValueUSD.Equal(decimal.NewFromInt(1)))
	select {
	case <-ch:
		t.Fatal("second view should have been dropped")
	default:
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewPortfolioBroadcaster(1)
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	_, open := <-ch
	require.False(t, open)

	// repeat unsubscribe is a no-op
	b.Unsubscribe(ch)
}
