package content

import "encoding/base64"

// Built-in codecs. Text-safe formats are zero-cost pass-throughs; binary
// formats use standard base64.
var (
	// JSON is a pass-through codec for application/json content.
	JSON Codec = textCodec{ct: "application/json"}

	// XML is a pass-through codec for application/xml content.
	XML Codec = textCodec{ct: "application/xml"}

	// Plain explicitly marks a body as text/plain rather than leaving the
	// content-type header unset.
	Plain Codec = textCodec{ct: "text/plain"}

	// Protobuf is a base64 codec for application/protobuf content.
	Protobuf Codec = binaryCodec{ct: "application/protobuf"}

	// OctetStream is a base64 codec for arbitrary binary content.
	OctetStream Codec = binaryCodec{ct: "application/octet-stream"}
)

// DefaultRegistry returns a registry pre-loaded with all built-in codecs.
func DefaultRegistry() *Registry {
	return NewRegistry(JSON, XML, Plain, Protobuf, OctetStream)
}

type textCodec struct {
	ct string
}

func (c textCodec) ContentType() string                { return c.ct }
func (c textCodec) Encode(data []byte) (string, error) { return string(data), nil }
func (c textCodec) Decode(body string) ([]byte, error) { return []byte(body), nil }

type binaryCodec struct {
	ct string
}

func (c binaryCodec) ContentType() string { return c.ct }

func (c binaryCodec) Encode(data []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(data), nil
}

func (c binaryCodec) Decode(body string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(body)
}
