package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/court-watch/internal/entity"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", func(ctx context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return errors.New("transient")
		}
		return nil
	}, Options{Tries: 5, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhausted(t *testing.T) {
	last := errors.New("still down")
	calls := 0
	err := Do(context.Background(), "CAL", func(ctx context.Context, attempt int) error {
		calls++
		return last
	}, Options{Tries: 3, BaseDelay: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, entity.ErrRetryExhausted)
	assert.ErrorIs(t, err, last)

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Equal(t, "CAL", ex.Name)
	assert.Equal(t, 3, ex.Attempts)
}

func TestDoStopsOnHardBlock(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "TOP", func(ctx context.Context, attempt int) error {
		calls++
		return fmt.Errorf("status 429: %w", entity.ErrHardBlock)
	}, Options{Tries: 4, BaseDelay: time.Millisecond})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, entity.ErrHardBlock)
	assert.NotErrorIs(t, err, entity.ErrRetryExhausted)
}

func TestDoHonoursContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, "op", func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("fail")
	}, Options{Tries: 3, BaseDelay: time.Hour})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoValueReturnsResult(t *testing.T) {
	v, err := DoValue(context.Background(), "op", func(ctx context.Context, attempt int) (string, error) {
		return "ok", nil
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDelayDoubles(t *testing.T) {
	base := 1500 * time.Millisecond
	assert.Equal(t, 1500*time.Millisecond, Delay(base, 1))
	assert.Equal(t, 3000*time.Millisecond, Delay(base, 2))
	assert.Equal(t, 6000*time.Millisecond, Delay(base, 3))
}
