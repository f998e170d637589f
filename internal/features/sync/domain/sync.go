package domain

import "time"

// Request identifies one shipment/tracking-number pair to sync.
type Request struct {
	// ShipmentID is the external case-management reference.
	ShipmentID string `json:"shipment_id"`
	// TrackingNumber is the carrier tracking number.
	TrackingNumber string `json:"tracking_number"`
	// Carrier is the carrier registry name, e.g. "ups".
	Carrier string `json:"carrier"`
}

// Result is the outcome of one SyncOne call.
type Result struct {
	// Success is true when an attempt reached the completed state.
	Success bool `json:"success"`
	// RecordID is the id of the final evidence record, 0 when none was created.
	RecordID int64 `json:"record_id,omitempty"`
	// Err carries the failure; nil on success.
	Err error `json:"-"`
}

// Outcome is one item's result inside a batch sync. Batch calls report a
// heterogeneous set instead of failing wholesale.
type Outcome struct {
	ShipmentID     string `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
	Success        bool   `json:"success"`
	RecordID       int64  `json:"record_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Screenshot is the product of one page capture.
type Screenshot struct {
	// Image is the captured page as PNG bytes.
	Image []byte
	// CapturedAt is when the capture happened, recorded as evidence.
	CapturedAt time.Time
}

// Lease is a short-lived mutual-exclusion token on a tracking key. The token
// makes release stale-safe: only the owner's release removes the claim.
type Lease struct {
	// Key is the coordination key derived from (trackingNumber, carrier).
	Key string
	// Token identifies the owning attempt.
	Token string
}

// LeaseKey builds the coordination key for a tracking pair.
func LeaseKey(trackingNumber, carrier string) string {
	return "lease:" + carrier + ":" + trackingNumber
}

// ReconciliationEvent is the signal sent to case management when an attempt
// completes. Whether a status change warrants case action is the collaborator's
// call, not this pipeline's.
type ReconciliationEvent struct {
	ShipmentID        string `json:"shipment_id"`
	RecordID          int64  `json:"record_id"`
	ExtractedStatus   string `json:"extracted_status"`
	ExtractedLocation string `json:"extracted_location"`
	ExtractedETA      string `json:"extracted_eta"`
}
