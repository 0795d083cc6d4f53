// Package content provides a content-type codec layer for postbox messages.
//
// Postbox stores message bodies as plain text. This package is a convention
// for carrying structured or binary payloads in a text body: the payload is
// encoded to a text-safe string and extension headers mark the content type
// and an optional schema identifier. Messages without the content-type
// header are ordinary text and need no codec.
//
// The package operates entirely through the existing Message and
// DraftContent fields; the engine itself stays text-first.
//
// Sending a structured message:
//
//	data, _ := json.Marshal(reading)
//	body, headers, _ := content.Encode(content.JSON, data, content.WithSchema("sensor.reading/v1"))
//	mb.Send(ctx, postbox.SendRequest{
//	    To:       []postbox.Address{{Email: "ingest@example.com"}},
//	    Subject:  "Reading",
//	    TextBody: body,
//	    Headers:  headers,
//	})
//
// Reading one back:
//
//	msg, _ := mb.Get(ctx, id)
//	raw, _ := content.Decode(msg, content.DefaultRegistry())
package content

import (
	"errors"
	"fmt"
	"sync"

	"github.com/absurdlabs/postbox/store"
)

// Extension header keys used by the codec convention. Set on message
// headers by [Encode] and read by [Decode].
const (
	// HeaderContentType carries the MIME type of the encoded body.
	HeaderContentType = "X-Content-Type"

	// HeaderSchema optionally carries an application-defined schema
	// identifier, such as "sensor.reading/v1".
	HeaderSchema = "X-Schema"
)

var (
	// ErrUnsupportedContentType is returned when no codec is registered
	// for a message's content type.
	ErrUnsupportedContentType = errors.New("content: unsupported content type")

	// ErrEncoding is returned when a codec fails to encode a payload.
	ErrEncoding = errors.New("content: encoding failed")

	// ErrDecoding is returned when a codec fails to decode a body.
	ErrDecoding = errors.New("content: decoding failed")
)

// Codec converts between raw bytes and a text-safe body string for one
// content type. Text-safe formats pass through unchanged; binary formats
// use base64. Serialization to and from structs is the application's
// concern.
type Codec interface {
	ContentType() string
	Encode(data []byte) (string, error)
	Decode(body string) ([]byte, error)
}

// Registry maps content types to codecs. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry creates a registry pre-loaded with the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		r.codecs[c.ContentType()] = c
	}
	return r
}

// Register adds a codec, replacing any existing codec for the same type.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	r.codecs[c.ContentType()] = c
	r.mu.Unlock()
}

// Lookup returns the codec for the given content type, if registered.
func (r *Registry) Lookup(contentType string) (Codec, bool) {
	r.mu.RLock()
	c, ok := r.codecs[contentType]
	r.mu.RUnlock()
	return c, ok
}

// Encode encodes a payload and returns the text-safe body plus the
// extension headers to set on the draft or send request.
func Encode(codec Codec, data []byte, opts ...EncodeOption) (string, map[string]string, error) {
	body, err := codec.Encode(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	headers := map[string]string{HeaderContentType: codec.ContentType()}

	var o encodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.schema != "" {
		headers[HeaderSchema] = o.schema
	}
	return body, headers, nil
}

// Decode reads the content type from the message headers, looks up the
// codec and decodes the text body back to raw bytes. A message without the
// content-type header is plain text and its body is returned as-is.
func Decode(msg *store.Message, registry *Registry) ([]byte, error) {
	ct := ContentType(msg)
	if ct == "" {
		return []byte(msg.TextBody), nil
	}

	codec, ok := registry.Lookup(ct)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, ct)
	}

	data, err := codec.Decode(msg.TextBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	return data, nil
}

// ContentType returns the message's codec content type, or "" for plain text.
func ContentType(msg *store.Message) string {
	return msg.Headers[HeaderContentType]
}

// Schema returns the message's schema identifier, or "" when unset.
func Schema(msg *store.Message) string {
	return msg.Headers[HeaderSchema]
}

// EncodeOption configures Encode behavior.
type EncodeOption func(*encodeOptions)

type encodeOptions struct {
	schema string
}

// WithSchema sets the schema extension header.
func WithSchema(schema string) EncodeOption {
	return func(o *encodeOptions) {
		o.schema = schema
	}
}
