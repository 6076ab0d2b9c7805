package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the uniform wrapper around every response of the service.
// When Success is false, Data must be treated as absent.
type Envelope[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RawEnvelope keeps Data undecoded.
type RawEnvelope = Envelope[json.RawMessage]

// hasData reports whether the raw envelope carries a non-null payload.
func hasData(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// decodeEnvelope converts a raw envelope into a typed one.
func decodeEnvelope[T any](raw *RawEnvelope) (*Envelope[T], error) {
	env := &Envelope[T]{
		Success:   raw.Success,
		Message:   raw.Message,
		Timestamp: raw.Timestamp,
	}
	if hasData(raw.Data) {
		if err := json.Unmarshal(raw.Data, &env.Data); err != nil {
			return nil, fmt.Errorf("decoding response data: %w", err)
		}
	}
	return env, nil
}
