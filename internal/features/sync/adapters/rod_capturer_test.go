package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"evidence-capture/internal/core/proxy"
	"evidence-capture/internal/features/sync/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRodCapturer_classify verifies browser errors map to the failure taxonomy
// with the context state winning over the downstream error.
func TestRodCapturer_classify(t *testing.T) {
	capturer := NewRodCapturer(time.Second, proxy.Settings{})
	cause := errors.New("net::ERR_CONNECTION_REFUSED")

	t.Run("DeadlineExceeded", func(t *testing.T) {
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		attemptErr, ok := domain.ClassifyAttemptError(capturer.classify(ctx, cause))
		require.True(t, ok)
		assert.Equal(t, domain.FailureTimeout, attemptErr.Kind)
		assert.True(t, attemptErr.Kind.Retryable())
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attemptErr, ok := domain.ClassifyAttemptError(capturer.classify(ctx, cause))
		require.True(t, ok)
		assert.Equal(t, domain.FailureCancelled, attemptErr.Kind)
		assert.False(t, attemptErr.Kind.Retryable())
	})

	t.Run("NavigationFailed", func(t *testing.T) {
		attemptErr, ok := domain.ClassifyAttemptError(capturer.classify(context.Background(), cause))
		require.True(t, ok)
		assert.Equal(t, domain.FailureNavigation, attemptErr.Kind)
		assert.True(t, attemptErr.Kind.Retryable())
		assert.ErrorIs(t, attemptErr, cause)
	})
}

// TestBlockedStatus verifies the rejection status codes.
func TestBlockedStatus(t *testing.T) {
	assert.True(t, blockedStatus(403))
	assert.True(t, blockedStatus(429))
	assert.False(t, blockedStatus(200))
	assert.False(t, blockedStatus(404))
	assert.False(t, blockedStatus(500))
}

// TestChallengeTitle verifies anti-automation page title detection.
func TestChallengeTitle(t *testing.T) {
	cases := []struct {
		title   string
		blocked bool
	}{
		{"Just a moment...", true},
		{"Access Denied", true},
		{"Please complete the CAPTCHA to continue", true},
		{"Verify you are human", true},
		{"Request blocked", true},
		{"UPS Tracking | UPS - United States", false},
		{"FedEx Tracking", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.blocked, challengeTitle(tc.title), "title %q", tc.title)
	}
}
