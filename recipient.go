package postbox

import (
	"context"
	"errors"
)

// ErrRecipientNotFound is returned by resolvers for unknown addresses.
var ErrRecipientNotFound = errors.New("postbox: recipient not found")

// Recipient is directory information for a mail address.
type Recipient struct {
	// Email is the mail address, the lookup key.
	Email string
	// Name is the resolved display name.
	Name string
}

// RecipientResolver maps mail addresses to directory information.
// Implementations should be safe for concurrent use.
//
// When configured, the send pipeline uses it to fill in missing display
// names on outbound recipients. It can also back address validation or
// autocomplete in the embedding application.
type RecipientResolver interface {
	// Resolve returns directory information for a single address.
	// Returns ErrRecipientNotFound for unknown addresses.
	Resolve(ctx context.Context, email string) (*Recipient, error)

	// ResolveBatch resolves multiple addresses, returning results in input
	// order. Unknown addresses have nil entries.
	ResolveBatch(ctx context.Context, emails []string) ([]*Recipient, error)
}
