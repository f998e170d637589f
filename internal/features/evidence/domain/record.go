package domain

import (
	"errors"
	"time"
)

// ProcessingStatus represents the lifecycle state of one capture attempt.
type ProcessingStatus string

const (
	// StatusPending indicates the attempt has been registered but not started.
	StatusPending ProcessingStatus = "pending"
	// StatusProcessing indicates capture/extraction is in flight.
	StatusProcessing ProcessingStatus = "processing"
	// StatusCompleted indicates extraction succeeded; extracted fields are set.
	StatusCompleted ProcessingStatus = "completed"
	// StatusFailed indicates the attempt concluded with an error.
	StatusFailed ProcessingStatus = "failed"
)

// IsTerminal returns true for states that must never be rewritten.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrTerminalRecord is returned when a write targets a record already in a
	// terminal state. Retries create a new record instead.
	ErrTerminalRecord = errors.New("record already in terminal state")
	// ErrRecordNotFound is returned when a record id does not exist.
	ErrRecordNotFound = errors.New("evidence record not found")
	// ErrNoRecords is returned when a shipment has no evidence records yet.
	ErrNoRecords = errors.New("no evidence records for shipment")
)

// Extraction holds the structured data pulled from a tracking page screenshot.
type Extraction struct {
	// Status is the carrier-reported shipment status, e.g. "In Transit".
	Status string `json:"status"`
	// Location is the last reported location, e.g. "Louisville, KY".
	Location string `json:"location"`
	// ETA is the carrier-reported delivery estimate, verbatim.
	ETA string `json:"eta"`
	// RawJSON is the unmodified model response, kept for audit and for
	// low-confidence flagging.
	RawJSON string `json:"raw_json"`
}

// Record is one immutable capture attempt. Records are evidence in a legal
// dispute: once terminal they are never rewritten, and they are never deleted.
type Record struct {
	// ID is monotonic and immutable once assigned.
	ID int64 `json:"id"`
	// ShipmentID is an external reference, opaque to this pipeline.
	ShipmentID string `json:"shipment_id"`
	// TrackingNumber is the carrier tracking number under capture.
	TrackingNumber string `json:"tracking_number"`
	// Carrier is the carrier registry name, e.g. "ups".
	Carrier string `json:"carrier"`
	// CarrierURL is the resolved tracking page URL that was visited.
	CarrierURL string `json:"carrier_url"`
	// ScreenshotRef locates the captured image blob. Empty until attached.
	ScreenshotRef string `json:"screenshot_ref,omitempty"`
	// ExtractedStatus is set only when the attempt completed.
	ExtractedStatus string `json:"extracted_status,omitempty"`
	// ExtractedLocation is set only when the attempt completed.
	ExtractedLocation string `json:"extracted_location,omitempty"`
	// ExtractedETA is set only when the attempt completed.
	ExtractedETA string `json:"extracted_eta,omitempty"`
	// ExtractedDetailsRaw is the raw model response, set on completion.
	ExtractedDetailsRaw string `json:"extracted_details_raw,omitempty"`
	// Status is the attempt lifecycle state.
	Status ProcessingStatus `json:"processing_status"`
	// ErrorMessage is set only when the attempt failed.
	ErrorMessage string `json:"error_message,omitempty"`
	// CapturedAt is when the screenshot was taken. Zero until capture succeeds.
	CapturedAt time.Time `json:"captured_at,omitempty"`
	// CreatedAt orders records for the same shipment; the most recent record is
	// the shipment's current status.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the field invariants tied to the lifecycle state:
// error message present iff failed, extracted fields present iff completed.
func (r *Record) Validate() error {
	if (r.ErrorMessage != "") != (r.Status == StatusFailed) {
		return errors.New("error message must be set exactly when the record failed")
	}
	if (r.ExtractedStatus != "") != (r.Status == StatusCompleted) {
		return errors.New("extracted status must be set exactly when the record completed")
	}
	if r.Status != StatusCompleted && (r.ExtractedLocation != "" || r.ExtractedETA != "") {
		return errors.New("extracted fields are only valid on completed records")
	}
	return nil
}
