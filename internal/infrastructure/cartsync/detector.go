package cartsync

import "strings"

// Default platform domain suffixes the bridge recognizes
var defaultHostSuffixes = []string{
	".myshopify.com",
}

// Detector decides whether the widget is running on a storefront whose
// native cart the bridge can drive. Heuristics: domain suffix match or
// an explicitly configured storefront host (the analog of a detected
// platform global on the page).
type Detector struct {
	suffixes       []string
	configuredHost string
}

// NewDetector creates a detector. configuredHost, when non-empty, is
// treated as a known-compatible storefront regardless of suffix.
func NewDetector(configuredHost string) *Detector {
	return &Detector{
		suffixes:       defaultHostSuffixes,
		configuredHost: strings.ToLower(configuredHost),
	}
}

// Compatible reports whether host looks like a supported storefront
func (d *Detector) Compatible(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if d.configuredHost != "" && host == d.configuredHost {
		return true
	}
	for _, suffix := range d.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
