package store

import "time"

// Conversation groups related finalized messages (a thread).
//
// Conversations are lightweight indexes: they are created when a finalized
// message starts a new thread and updated as messages join, but never
// deleted when member messages are trashed or purged.
type Conversation struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	// Subject is taken from the thread-initiating message and is not
	// changed by replies.
	Subject string `json:"subject"`

	// Participants is the deduplicated set of addresses seen across the
	// conversation's messages.
	Participants []Address `json:"participants,omitempty"`

	// MessageCount equals the number of finalized messages referencing
	// this conversation.
	MessageCount int64 `json:"message_count"`

	// LastActivityAt is monotonically non-decreasing as messages join.
	LastActivityAt time.Time `json:"last_activity_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Participants = cloneAddresses(c.Participants)
	return &out
}

// MergeParticipants unions the given addresses into the conversation's
// participant set, deduplicated by exact address. First-seen names win.
func (c *Conversation) MergeParticipants(addrs []Address) {
	seen := make(map[string]bool, len(c.Participants)+len(addrs))
	for _, a := range c.Participants {
		seen[a.Email] = true
	}
	for _, a := range addrs {
		if a.Email == "" || seen[a.Email] {
			continue
		}
		seen[a.Email] = true
		c.Participants = append(c.Participants, a)
	}
}
