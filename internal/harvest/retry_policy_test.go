package harvest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/JakeFAU/legal-notice-harvester/internal/harvest"
)

func TestFixedRetryPolicy(t *testing.T) {
	t.Parallel()

	policy := harvest.NewFixedRetryPolicy(3, 5*time.Second)
	transient := errors.New("boom")
	timeout := &harvest.FetchError{Kind: harvest.KindConnection, Reason: "timeout", Err: context.DeadlineExceeded}

	tests := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{name: "nil error", err: nil, attempt: 1, want: false},
		{name: "first failure", err: transient, attempt: 1, want: true},
		{name: "second failure", err: transient, attempt: 2, want: true},
		{name: "attempts exhausted", err: transient, attempt: 3, want: false},
		{name: "caller canceled", err: fmt.Errorf("crawl: %w", context.Canceled), attempt: 1, want: false},
		{name: "fetch timeout", err: fmt.Errorf("index: %w", timeout), attempt: 1, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.err, tt.attempt))
		})
	}

	assert.Equal(t, 5*time.Second, policy.Backoff(1))
	assert.Equal(t, 3, policy.MaxAttempts())
}

func TestFixedRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	policy := harvest.NewFixedRetryPolicy(0, -1)
	assert.Equal(t, harvest.DefaultMaxAttempts, policy.MaxAttempts())
	assert.Equal(t, harvest.DefaultRetryBackoff, policy.Backoff(1))
}

func TestTimerPauserHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	harvest.TimerPauser{}.Pause(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}
