package messaging

import (
	"bytes"
	"encoding/json"
)

// Payload is an inbound chat message as delivered to listeners
type Payload map[string]any

// ParsePayload interprets an inbound message body.
// JSON objects are delivered as is, JSON arrays and empty bodies are malformed,
// and anything else is wrapped as a plain assistant text message.
func ParsePayload(body []byte) (Payload, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	switch trimmed[0] {
	case '{':
		var p Payload
		if err := json.Unmarshal(trimmed, &p); err == nil {
			return p, true
		}
	case '[':
		// arrays are rejected on purpose: listeners only handle single chat messages
		var list []any
		if err := json.Unmarshal(trimmed, &list); err == nil {
			return nil, false
		}
	}

	return Payload{"sender": "assistant", "text": string(body)}, true
}
