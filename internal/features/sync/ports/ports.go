package ports

import (
	"context"

	"evidence-capture/internal/features/sync/domain"
)

// ScreenshotCapturer captures a tracking page as an image. Implementations
// classify failures as domain.AttemptError with kind timeout,
// navigation_failed or blocked.
type ScreenshotCapturer interface {
	Capture(ctx context.Context, url string) (*domain.Screenshot, error)
}

// Extraction mirrors the evidence extraction payload produced by the vision
// model: structured status data plus the raw response for audit.
type Extraction struct {
	Status        string
	Location      string
	ETA           string
	RawJSON       string
	LowConfidence bool
}

// VisionExtractor turns a screenshot into structured tracking data.
// Failures are classified as domain.AttemptError with kind model_error or
// malformed_response. Low confidence is a soft success, flagged on the
// Extraction rather than returned as an error.
type VisionExtractor interface {
	Extract(ctx context.Context, image []byte) (*Extraction, error)
}

// LeaseManager provides per-tracking-key mutual exclusion with TTL recovery.
type LeaseManager interface {
	// Acquire claims the key without blocking. A live claim by someone else
	// fails immediately with domain.ErrLeaseConflict.
	Acquire(ctx context.Context, key string) (*domain.Lease, error)
	// Release drops the claim. Releasing twice, or after TTL expiry already
	// reclaimed the key, is a no-op.
	Release(ctx context.Context, lease *domain.Lease) error
}

// ReconciliationSink receives reconciliation events for the case-management
// collaborator.
type ReconciliationSink interface {
	Publish(ctx context.Context, event domain.ReconciliationEvent) error
}
