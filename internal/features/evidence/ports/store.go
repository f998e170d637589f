package ports

import (
	"context"
	"time"

	"evidence-capture/internal/features/evidence/domain"
)

// Store persists capture attempts append-only. Implementations must reject
// writes to terminal records with domain.ErrTerminalRecord; logical retries go
// through CreatePending again instead of rewriting history.
type Store interface {
	// CreatePending appends a new record in the pending state and returns its id.
	CreatePending(ctx context.Context, shipmentID, trackingNumber, carrier, carrierURL string) (int64, error)

	// MarkProcessing transitions a pending record to processing.
	MarkProcessing(ctx context.Context, id int64) error

	// MarkCompleted transitions a record to completed and sets the extracted
	// fields. Terminal: a second terminal write fails.
	MarkCompleted(ctx context.Context, id int64, extraction domain.Extraction) error

	// MarkFailed transitions a record to failed with the given error message.
	// Terminal: a second terminal write fails.
	MarkFailed(ctx context.Context, id int64, errorMessage string) error

	// AttachScreenshot stores the image blob, records when it was captured and
	// returns the blob reference persisted on the record.
	AttachScreenshot(ctx context.Context, id int64, image []byte, capturedAt time.Time) (string, error)

	// Get returns a record by id.
	Get(ctx context.Context, id int64) (*domain.Record, error)

	// LatestByShipment returns the most recent record for a shipment by
	// creation order. This is the shipment's current status.
	LatestByShipment(ctx context.Context, shipmentID string) (*domain.Record, error)

	// ListByShipment returns all records for a shipment, most recent first.
	ListByShipment(ctx context.Context, shipmentID string) ([]domain.Record, error)

	// ListByTrackingKey returns all records for a (trackingNumber, carrier)
	// pair, most recent first.
	ListByTrackingKey(ctx context.Context, trackingNumber, carrier string) ([]domain.Record, error)
}
