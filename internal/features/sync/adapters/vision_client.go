package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"evidence-capture/internal/core/httpclient"
	"evidence-capture/internal/core/logger"
	"evidence-capture/internal/features/sync/domain"
	"evidence-capture/internal/features/sync/ports"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// VisionClient calls the vision model HTTP endpoint to extract structured
// tracking data from a screenshot.
type VisionClient struct {
	baseURL             string
	apiKey              string
	confidenceThreshold float64
	client              *resty.Client
	logger              *zap.Logger
}

// NewVisionClient creates a client for the vision extraction API.
func NewVisionClient(baseURL, apiKey string, timeout time.Duration, confidenceThreshold float64) *VisionClient {
	client := resty.NewWithClient(httpclient.NewClient(timeout))

	return &VisionClient{
		baseURL:             baseURL,
		apiKey:              apiKey,
		confidenceThreshold: confidenceThreshold,
		client:              client,
		logger:              logger.Get(),
	}
}

// visionResponse is the wire shape consumed from the vision model.
type visionResponse struct {
	Status     string  `json:"status"`
	Location   string  `json:"location"`
	ETA        string  `json:"eta"`
	Confidence float64 `json:"confidence"`
}

// Extract sends the screenshot to the vision model and maps the response.
// Transport failures and server errors classify as model_error (retryable);
// unusable payloads classify as malformed_response (a defect, not retried).
// Low confidence is a soft success: the extraction is returned completed but
// flagged so downstream reconciliation can discount it.
func (v *VisionClient) Extract(ctx context.Context, image []byte) (*ports.Extraction, error) {
	request := map[string]interface{}{
		"image_base64": base64.StdEncoding.EncodeToString(image),
		"format":       "png",
		"prompt":       "carrier_tracking_status",
	}

	response, err := v.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+v.apiKey).
		SetBody(request).
		Post(v.baseURL)

	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, domain.NewAttemptError(domain.FailureTimeout, ctx.Err())
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, domain.NewAttemptError(domain.FailureCancelled, ctx.Err())
		}
		return nil, domain.NewAttemptError(domain.FailureModelError,
			fmt.Errorf("vision API call failed: %w", err))
	}

	if response.StatusCode() != http.StatusOK {
		return nil, domain.NewAttemptError(domain.FailureModelError,
			fmt.Errorf("vision API returned status %d: %s", response.StatusCode(), response.String()))
	}

	body := response.Body()

	var parsed visionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, domain.NewAttemptError(domain.FailureMalformedResponse,
			fmt.Errorf("failed to parse vision response: %w", err))
	}
	if parsed.Status == "" {
		return nil, domain.NewAttemptError(domain.FailureMalformedResponse,
			fmt.Errorf("vision response missing status field"))
	}

	extraction := &ports.Extraction{
		Status:   parsed.Status,
		Location: parsed.Location,
		ETA:      parsed.ETA,
		RawJSON:  string(body),
	}

	if parsed.Confidence < v.confidenceThreshold {
		extraction.LowConfidence = true
		extraction.RawJSON = flagLowConfidence(body)
		v.logger.Warn("Low-confidence extraction",
			zap.Float64("confidence", parsed.Confidence),
			zap.Float64("threshold", v.confidenceThreshold),
		)
	}

	return extraction, nil
}

// flagLowConfidence wraps the raw model response so the flag travels with the
// evidence record.
func flagLowConfidence(body []byte) string {
	wrapped, err := json.Marshal(struct {
		LowConfidence bool            `json:"low_confidence"`
		Response      json.RawMessage `json:"response"`
	}{
		LowConfidence: true,
		Response:      body,
	})
	if err != nil {
		return string(body)
	}
	return string(wrapped)
}
