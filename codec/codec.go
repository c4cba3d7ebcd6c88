// Package codec centralizes request and response encoding.
package codec

import "io"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// StreamCodec is implemented by codecs that can write directly to a stream.
type StreamCodec interface {
	Codec
	Encode(w io.Writer, v any) error
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "", "json", "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used by the HTTP transport.
var Default Codec = GoJSON{}
