package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"evidence-capture/internal/features/carriers/ports"
)

// defaultTemplates are the carriers supported out of the box. Templates with a
// %s placeholder get the tracking number substituted; templates without one get
// it appended (bare "=" suffix or a tracking query parameter).
var defaultTemplates = map[string]string{
	"ups":                "https://www.ups.com/track?tracknum=%s",
	"fedex":              "https://www.fedex.com/fedextrack/?trknbr=%s",
	"usps":               "https://tools.usps.com/go/TrackConfirmAction?tLabels=%s",
	"dhl":                "https://www.dhl.com/en/express/tracking.html?AWB=%s",
	"coordinadora_co":    "https://coordinadora.com/rastreo/rastreo-de-guia/detalle-de-rastreo-de-guia/?guia=%s",
	"servientrega_co":    "https://mobile.servientrega.com/WebSitePortal/RastreoEnvioDetalle.html?Guia=%s",
	"interrapidisimo_co": "https://interrapidisimo.com/sigue-tu-envio/?guia=%s",
}

// Registry resolves tracking URLs from a closed lookup table of carrier
// templates. Carriers are matched case-insensitively.
type Registry struct {
	templates map[string]string
}

// NewRegistry creates a Registry with the built-in carrier templates plus any
// extra templates, which override built-ins on name collision.
func NewRegistry(extra map[string]string) *Registry {
	templates := make(map[string]string, len(defaultTemplates)+len(extra))
	for name, tpl := range defaultTemplates {
		templates[name] = tpl
	}
	for name, tpl := range extra {
		templates[strings.ToLower(strings.TrimSpace(name))] = tpl
	}
	return &Registry{templates: templates}
}

// ParseTemplates parses a comma-separated "name=template" list, the format used
// by the CARRIER_TEMPLATES configuration value.
func ParseTemplates(raw string) map[string]string {
	templates := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, tpl, ok := strings.Cut(pair, "=")
		if !ok || name == "" || tpl == "" {
			continue
		}
		templates[strings.ToLower(strings.TrimSpace(name))] = tpl
	}
	return templates
}

// ResolveURL returns the tracking page URL for the carrier, failing fast with
// ErrUnsupportedCarrier before any network work happens.
func (r *Registry) ResolveURL(carrier, trackingNumber string) (string, error) {
	tpl, ok := r.templates[strings.ToLower(strings.TrimSpace(carrier))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ports.ErrUnsupportedCarrier, carrier)
	}

	escaped := url.QueryEscape(strings.TrimSpace(trackingNumber))

	if strings.Contains(tpl, "%s") {
		return fmt.Sprintf(tpl, escaped), nil
	}
	if strings.HasSuffix(tpl, "=") {
		return tpl + escaped, nil
	}
	return fmt.Sprintf("%s?tracking=%s", tpl, escaped), nil
}

// Supports returns true if the carrier has a registered template.
func (r *Registry) Supports(carrier string) bool {
	_, ok := r.templates[strings.ToLower(strings.TrimSpace(carrier))]
	return ok
}
