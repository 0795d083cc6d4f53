// Package resolver provides RecipientResolver implementations.
package resolver

import (
	"context"
	"fmt"

	"github.com/absurdlabs/postbox"
)

// Static is a map-based RecipientResolver for testing and small
// deployments. Read-only after creation, safe for concurrent use.
type Static struct {
	recipients map[string]*postbox.Recipient
}

// NewStatic creates a Static resolver from a map of address to Recipient.
// The map is copied to prevent external mutation.
func NewStatic(recipients map[string]*postbox.Recipient) *Static {
	m := make(map[string]*postbox.Recipient, len(recipients))
	for k, v := range recipients {
		m[k] = v
	}
	return &Static{recipients: m}
}

// Resolve returns directory information for a single address.
func (s *Static) Resolve(_ context.Context, email string) (*postbox.Recipient, error) {
	r, ok := s.recipients[email]
	if !ok {
		return nil, fmt.Errorf("%w: %s", postbox.ErrRecipientNotFound, email)
	}
	return r, nil
}

// ResolveBatch resolves multiple addresses; unknown addresses have nil
// entries in the returned slice.
func (s *Static) ResolveBatch(_ context.Context, emails []string) ([]*postbox.Recipient, error) {
	result := make([]*postbox.Recipient, len(emails))
	for i, e := range emails {
		result[i] = s.recipients[e]
	}
	return result, nil
}
