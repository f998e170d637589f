package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"evidence-capture/internal/core/logger"
	carrierports "evidence-capture/internal/features/carriers/ports"
	evidencedomain "evidence-capture/internal/features/evidence/domain"
	evidenceports "evidence-capture/internal/features/evidence/ports"
	"evidence-capture/internal/features/sync/domain"
	"evidence-capture/internal/features/sync/ports"

	"go.uber.org/zap"
)

// Config holds the retry and concurrency policy for the orchestrator.
type Config struct {
	// MaxAttempts is the total number of attempts per sync, first try included.
	MaxAttempts int
	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration
	// BackoffCap bounds the delay between retries.
	BackoffCap time.Duration
	// BatchConcurrency is the worker pool size for batch syncs.
	BatchConcurrency int
	// AttemptBudget bounds one full capture+extraction attempt.
	AttemptBudget time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 30 * time.Second
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 4
	}
	if c.AttemptBudget <= 0 {
		c.AttemptBudget = 2 * time.Minute
	}
	return c
}

// Orchestrator drives capture attempts: lease, capture, extract, persist,
// reconcile. Every attempt leaves an immutable evidence record; retries are
// brand-new records, never rewrites.
type Orchestrator struct {
	resolver  carrierports.URLResolver
	capturer  ports.ScreenshotCapturer
	extractor ports.VisionExtractor
	leases    ports.LeaseManager
	store     evidenceports.Store
	sink      ports.ReconciliationSink
	cfg       Config
	logger    *zap.Logger
}

// NewOrchestrator creates an Orchestrator. Zero config values fall back to
// defaults.
func NewOrchestrator(
	resolver carrierports.URLResolver,
	capturer ports.ScreenshotCapturer,
	extractor ports.VisionExtractor,
	leases ports.LeaseManager,
	store evidenceports.Store,
	sink ports.ReconciliationSink,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		capturer:  capturer,
		extractor: extractor,
		leases:    leases,
		store:     store,
		sink:      sink,
		cfg:       cfg.withDefaults(),
		logger:    logger.Get(),
	}
}

// SyncOne runs the full capture pipeline for one shipment/tracking pair.
// Precondition failures (unsupported carrier, lease conflict) return before any
// record is created. The lease is released on every exit path, but never
// between retries.
func (o *Orchestrator) SyncOne(ctx context.Context, req domain.Request) domain.Result {
	carrierURL, err := o.resolver.ResolveURL(req.Carrier, req.TrackingNumber)
	if err != nil {
		return domain.Result{Err: err}
	}

	lease, err := o.leases.Acquire(ctx, domain.LeaseKey(req.TrackingNumber, req.Carrier))
	if errors.Is(err, domain.ErrLeaseConflict) {
		return domain.Result{Err: fmt.Errorf("%w: %s/%s", domain.ErrAlreadyInProgress, req.Carrier, req.TrackingNumber)}
	}
	if err != nil {
		return domain.Result{Err: err}
	}
	defer func() {
		// Release must happen even when the caller cancelled mid-attempt.
		if releaseErr := o.leases.Release(context.WithoutCancel(ctx), lease); releaseErr != nil {
			o.logger.Warn("Failed to release lease",
				zap.String("key", lease.Key),
				zap.Error(releaseErr),
			)
		}
	}()

	var lastRecordID int64
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		recordID, extraction, attemptErr := o.runAttempt(ctx, req, carrierURL)
		if recordID != 0 {
			lastRecordID = recordID
		}

		if attemptErr == nil {
			o.publish(ctx, req, recordID, extraction)
			return domain.Result{Success: true, RecordID: recordID}
		}

		classified, ok := domain.ClassifyAttemptError(attemptErr)
		if !ok {
			// Storage and other unclassified errors are fatal to the sync:
			// evidence integrity cannot be guessed at.
			return domain.Result{RecordID: lastRecordID, Err: attemptErr}
		}

		o.logger.Warn("Sync attempt failed",
			zap.String("shipment_id", req.ShipmentID),
			zap.String("carrier", req.Carrier),
			zap.String("tracking_number", req.TrackingNumber),
			zap.Int("attempt", attempt),
			zap.String("kind", string(classified.Kind)),
			zap.Error(attemptErr),
		)

		if !classified.Kind.Retryable() || attempt == o.cfg.MaxAttempts {
			return domain.Result{RecordID: lastRecordID, Err: attemptErr}
		}

		if err := o.waitBackoff(ctx, attempt); err != nil {
			return domain.Result{RecordID: lastRecordID, Err: domain.NewAttemptError(domain.FailureCancelled, err)}
		}
	}

	// Unreachable: the loop always returns.
	return domain.Result{RecordID: lastRecordID, Err: errors.New("sync attempts exhausted")}
}

// runAttempt executes one capture+extraction attempt against a fresh evidence
// record. Classified failures are recorded on the failed record; unclassified
// errors are storage failures and propagate as-is.
func (o *Orchestrator) runAttempt(ctx context.Context, req domain.Request, carrierURL string) (int64, *ports.Extraction, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.AttemptBudget)
	defer cancel()

	recordID, err := o.store.CreatePending(attemptCtx, req.ShipmentID, req.TrackingNumber, req.Carrier, carrierURL)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create evidence record: %w", err)
	}

	if err := o.store.MarkProcessing(attemptCtx, recordID); err != nil {
		return recordID, nil, fmt.Errorf("failed to mark record processing: %w", err)
	}

	screenshot, err := o.capturer.Capture(attemptCtx, carrierURL)
	if err != nil {
		return recordID, nil, o.failRecord(ctx, recordID, err)
	}

	if _, err := o.store.AttachScreenshot(attemptCtx, recordID, screenshot.Image, screenshot.CapturedAt); err != nil {
		return recordID, nil, fmt.Errorf("failed to attach screenshot: %w", err)
	}

	extraction, err := o.extractor.Extract(attemptCtx, screenshot.Image)
	if err != nil {
		return recordID, nil, o.failRecord(ctx, recordID, err)
	}

	err = o.store.MarkCompleted(attemptCtx, recordID, evidencedomain.Extraction{
		Status:   extraction.Status,
		Location: extraction.Location,
		ETA:      extraction.ETA,
		RawJSON:  extraction.RawJSON,
	})
	if err != nil {
		return recordID, nil, fmt.Errorf("failed to mark record completed: %w", err)
	}

	return recordID, extraction, nil
}

// failRecord marks the record failed with the classified error. The write uses
// a detached context so cancellation cannot strand a record in processing.
// Storage failures replace the attempt error: they are fatal.
func (o *Orchestrator) failRecord(ctx context.Context, recordID int64, attemptErr error) error {
	if markErr := o.store.MarkFailed(context.WithoutCancel(ctx), recordID, attemptErr.Error()); markErr != nil {
		return fmt.Errorf("failed to mark record failed: %w", markErr)
	}
	return attemptErr
}

// publish emits the reconciliation event for a completed attempt. Delivery
// failure does not fail the sync: the completed evidence record already exists
// and the collaborator can re-read it.
func (o *Orchestrator) publish(ctx context.Context, req domain.Request, recordID int64, extraction *ports.Extraction) {
	event := domain.ReconciliationEvent{
		ShipmentID:        req.ShipmentID,
		RecordID:          recordID,
		ExtractedStatus:   extraction.Status,
		ExtractedLocation: extraction.Location,
		ExtractedETA:      extraction.ETA,
	}
	if err := o.sink.Publish(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Error("Failed to publish reconciliation event",
			zap.String("shipment_id", req.ShipmentID),
			zap.Int64("record_id", recordID),
			zap.Error(err),
		)
	}
}

// waitBackoff sleeps before the next attempt: exponential with full jitter,
// capped, cancellable.
func (o *Orchestrator) waitBackoff(ctx context.Context, attempt int) error {
	delay := o.cfg.BackoffBase << (attempt - 1)
	if delay > o.cfg.BackoffCap {
		delay = o.cfg.BackoffCap
	}
	if delay > 0 {
		delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SyncBatch fans the requests out over a bounded worker pool and reports
// per-item outcomes. One item's failure never aborts its siblings, and the
// batch call itself never fails wholesale.
func (o *Orchestrator) SyncBatch(ctx context.Context, reqs []domain.Request) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(reqs))
	sem := make(chan struct{}, o.cfg.BatchConcurrency)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req domain.Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result := o.SyncOne(ctx, req)

			outcome := domain.Outcome{
				ShipmentID:     req.ShipmentID,
				TrackingNumber: req.TrackingNumber,
				Carrier:        req.Carrier,
				Success:        result.Success,
				RecordID:       result.RecordID,
			}
			if result.Err != nil {
				outcome.Error = result.Err.Error()
			}
			outcomes[i] = outcome
		}(i, req)
	}
	wg.Wait()

	return outcomes
}
