// Package delivery defines the outbound delivery collaborator.
//
// The mailbox engine treats outbound transport as opaque: a Deliverer
// either succeeds and returns a delivery identifier, or fails and the
// whole send is aborted with no state mutated. The wire protocol (SMTP or
// otherwise) is the implementation's concern.
package delivery

import (
	"context"
	"time"

	"github.com/absurdlabs/postbox/store"
)

// Envelope carries the routing addresses of an outbound message.
type Envelope struct {
	From store.Address
	To   []store.Address
	Cc   []store.Address
	Bcc  []store.Address
}

// Content carries the payload of an outbound message.
type Content struct {
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []store.Attachment
}

// Result reports a successful delivery.
type Result struct {
	// DeliveryID is the transport-assigned identifier recorded on the
	// finalized message.
	DeliveryID string
	// DeliveredAt is when the transport accepted the message.
	DeliveredAt time.Time
}

// Deliverer hands a message to the outbound transport. A non-nil error
// means the message was not accepted; implementations must not partially
// deliver.
type Deliverer interface {
	Deliver(ctx context.Context, env Envelope, content Content) (*Result, error)
}
