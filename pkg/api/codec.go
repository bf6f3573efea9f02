// Package api defines the budget RPC surface: message types, procedure
// names, typed connect clients and handler constructors.
//
// Messages are plain Go structs carried as JSON. The codec rejects unknown
// fields so records can only carry the fields declared here.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// codecName replaces connect's default protobuf JSON codec.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("failed to decode %T: %w", msg, err)
	}
	if dec.More() {
		return fmt.Errorf("failed to decode %T: trailing data", msg)
	}
	return nil
}

// WithJSON installs the strict JSON codec on a client or handler.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
