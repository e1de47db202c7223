package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay(t *testing.T) {
	p := New(WithStep(100*time.Millisecond), WithCap(300*time.Millisecond))

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 300*time.Millisecond, p.Delay(3))
	// capped from here on
	assert.Equal(t, 300*time.Millisecond, p.Delay(4))
	assert.Equal(t, 300*time.Millisecond, p.Delay(100))
	// attempts below 1 clamp to the first delay
	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
}

func TestPolicy_Defaults(t *testing.T) {
	p := New()
	assert.Equal(t, 10, p.MaxAttempts())
	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 5*time.Second, p.Delay(5))
	assert.Equal(t, 5*time.Second, p.Delay(6))
}

func TestPolicy_Do_SuccessFirstTry(t *testing.T) {
	p := New(WithStep(time.Millisecond), WithMaxAttempts(3))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_RetriesThenSucceeds(t *testing.T) {
	p := New(WithStep(time.Millisecond), WithMaxAttempts(5))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_Exhaustion(t *testing.T) {
	p := New(WithStep(time.Millisecond), WithMaxAttempts(2))

	calls := 0
	wantErr := errors.New("permanent")
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	require.Error(t, err)
	assert.Equal(t, wantErr, err)
	// initial attempt plus two retries
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_ContextCancelled(t *testing.T) {
	p := New(WithStep(time.Hour), WithMaxAttempts(5))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithData(t *testing.T) {
	p := New(WithStep(time.Millisecond), WithMaxAttempts(3))

	calls := 0
	got, err := DoWithData(p, context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 2, calls)
}

func TestDoWithData_Failure(t *testing.T) {
	p := New(WithStep(time.Millisecond), WithMaxAttempts(1))

	got, err := DoWithData(p, context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("down")
	})
	require.Error(t, err)
	assert.Empty(t, got)
}
