// Package provider holds the types shared between outbound adapters and the
// services that consume them.
package provider

import "encoding/json"

// Completion is the text produced by an AI completion endpoint.
type Completion struct {
	Text  string
	Model string
	// Raw is the provider's response body, kept for diagnostics only.
	Raw json.RawMessage
}
