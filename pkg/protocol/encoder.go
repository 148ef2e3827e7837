package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes v as one outbound frame payload.
// The output is compact JSON without HTML escaping, so SDP bodies pass through
// byte for byte.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", v, err)
	}

	// json.Encoder terminates every value with a newline.
	out := buf.Bytes()
	return out[:len(out)-1], nil
}
