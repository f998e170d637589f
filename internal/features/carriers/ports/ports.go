package ports

import "errors"

// ErrUnsupportedCarrier is returned when no URL template is registered for a carrier.
var ErrUnsupportedCarrier = errors.New("carrier not supported")

// URLResolver maps a carrier and tracking number to a fetchable tracking page URL.
type URLResolver interface {
	// ResolveURL returns the tracking page URL for the given carrier and
	// tracking number, or ErrUnsupportedCarrier.
	ResolveURL(carrier, trackingNumber string) (string, error)
	// Supports returns true if the carrier has a registered URL template.
	Supports(carrier string) bool
}
