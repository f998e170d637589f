package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"evidence-capture/internal/core/httpclient"
	"evidence-capture/internal/core/logger"
	"evidence-capture/internal/features/sync/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPReconciliationSink delivers reconciliation events to the case-management
// collaborator. Whether a status change warrants case action is decided there.
type HTTPReconciliationSink struct {
	url    string
	client *resty.Client
	logger *zap.Logger
}

// NewHTTPReconciliationSink creates a sink posting events to the given URL.
func NewHTTPReconciliationSink(url string, timeout time.Duration) *HTTPReconciliationSink {
	return &HTTPReconciliationSink{
		url:    url,
		client: resty.NewWithClient(httpclient.NewClient(timeout)),
		logger: logger.Get(),
	}
}

// Publish posts the event to case management.
func (s *HTTPReconciliationSink) Publish(ctx context.Context, event domain.ReconciliationEvent) error {
	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(s.url)

	if err != nil {
		return fmt.Errorf("failed to deliver reconciliation event: %w", err)
	}
	if response.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("case management rejected reconciliation event: status %d", response.StatusCode())
	}

	s.logger.Debug("Reconciliation event delivered",
		zap.String("shipment_id", event.ShipmentID),
		zap.Int64("record_id", event.RecordID),
	)
	return nil
}

// LogSink records reconciliation events in the application log. Used when no
// case-management URL is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging reconciliation sink.
func NewLogSink() *LogSink {
	return &LogSink{logger: logger.Get()}
}

// Publish logs the event.
func (s *LogSink) Publish(_ context.Context, event domain.ReconciliationEvent) error {
	s.logger.Info("Reconciliation event",
		zap.String("shipment_id", event.ShipmentID),
		zap.Int64("record_id", event.RecordID),
		zap.String("status", event.ExtractedStatus),
		zap.String("location", event.ExtractedLocation),
		zap.String("eta", event.ExtractedETA),
	)
	return nil
}
