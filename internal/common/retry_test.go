package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() RetryOptions {
	return RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		errs      []error
		wantErr   error
		name      string
		wantCalls int
	}{
		{name: "first try succeeds", wantCalls: 1},
		{name: "recovers after transient failures", errs: []error{errors.New("a"), errors.New("b")}, wantCalls: 3},
		{
			name:      "stops on non-retryable error",
			errs:      []error{&RetryableError{Err: ErrValidation, Retryable: false}},
			wantErr:   ErrValidation,
			wantCalls: 1,
		},
		{
			name:      "gives up after max attempts",
			errs:      []error{errors.New("a"), errors.New("b"), errors.New("c")},
			wantErr:   ErrMaxRetries,
			wantCalls: 3,
		},
		{
			name:      "rate limits are retried",
			errs:      []error{fmt.Errorf("%w: slow down", ErrRateLimit)},
			wantCalls: 2,
		},
		{
			name:      "honors requested wait",
			errs:      []error{&RetryableError{Err: ErrRateLimit, After: time.Millisecond, Retryable: true}},
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(ctx, func() error {
				calls++
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			}, fastOptions())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errors.New("down") }, RetryOptions{MaxAttempts: 3, InitialDelay: time.Hour})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestUserMessage(t *testing.T) {
	err := fmt.Errorf("create card: %w", Validationf("Card %d not found", 9))

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Card 9 not found", UserMessage(err, "fallback"))
	assert.Equal(t, "fallback", UserMessage(errors.New("plain"), "fallback"))
}

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "", "warn", "error"} {
		_, err := ParseLevel(level)
		assert.NoError(t, err, level)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
