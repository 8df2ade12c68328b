// Package protocol defines the JSON message envelope exchanged with
// clients: a "type" discriminator plus type-specific fields, encoded
// and decoded with encoding/json the same way the teacher's earlier
// JSON-based room package did before it moved to a binary protobuf
// wire format.
package protocol

import "encoding/json"

// Inbound is the generic shape of a client-to-server frame: enough to
// read the type, with the rest left as raw bytes for type-specific
// decoding.
type Inbound struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// DecodeInbound peeks at the message type without fully decoding the
// payload. Malformed JSON returns an error — callers drop the frame
// silently, per the protocol-malformed error kind.
func DecodeInbound(data []byte) (Inbound, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return Inbound{}, err
	}
	return Inbound{Type: peek.Type, Raw: data}, nil
}

// Out builds a server-to-client frame: {"type": kind, ...fields}.
// fields' keys must not include "type".
func Out(kind string, fields map[string]any) []byte {
	msg := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		msg[k] = v
	}
	msg["type"] = kind
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return raw
}

// Reject builds the one user-visible failure frame. sync, when true,
// tells the client a fresh init follows to resynchronize its local
// state (used for Xiangqi illegal-move resyncs).
func Reject(reason string, sync bool) []byte {
	fields := map[string]any{"reason": reason}
	if sync {
		fields["sync"] = true
	}
	return Out("reject", fields)
}
