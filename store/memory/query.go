package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/absurdlabs/postbox/store"
)

// FindMessages returns one page of messages matching the filter, newest
// first with ties broken by id descending.
func (s *Store) FindMessages(_ context.Context, ownerID string, filter store.MessageFilter, page store.Page) (*store.MessageList, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}

	matched := s.collect(ownerID, filter)
	sort.Slice(matched, func(i, j int) bool {
		return newerThan(matched[i], matched[j])
	})
	return paginate(matched, page.Normalize()), nil
}

// SearchMessages returns full-text matches over subject and text body,
// ordered by relevance descending with ties broken by creation time.
func (s *Store) SearchMessages(_ context.Context, ownerID string, q store.SearchQuery) (*store.MessageList, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	terms := strings.Fields(strings.ToLower(q.Query))
	type scored struct {
		msg   *store.Message
		score int
	}

	var matched []scored
	for _, m := range s.collect(ownerID, q.Filter) {
		if sc := scoreMessage(m, terms); sc > 0 {
			matched = append(matched, scored{msg: m, score: sc})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].score != matched[j].score {
			return matched[i].score > matched[j].score
		}
		return newerThan(matched[i].msg, matched[j].msg)
	})

	msgs := make([]*store.Message, len(matched))
	for i, sc := range matched {
		msgs[i] = sc.msg
	}
	return paginate(msgs, q.Page.Normalize()), nil
}

// ConversationMessages returns every message in a conversation, oldest first.
func (s *Store) ConversationMessages(_ context.Context, ownerID, threadID string) ([]*store.Message, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	if threadID == "" {
		return nil, store.ErrInvalidID
	}

	matched := s.collect(ownerID, store.MessageFilter{ThreadID: threadID})
	sort.Slice(matched, func(i, j int) bool {
		return newerThan(matched[j], matched[i])
	})
	return matched, nil
}

// collect snapshots matching messages with rich bodies stripped.
func (s *Store) collect(ownerID string, filter store.MessageFilter) []*store.Message {
	var matched []*store.Message
	s.messages.Range(func(_, value any) bool {
		m := value.(*store.Message)
		if m.OwnerID != ownerID || !filter.Matches(m) {
			return true
		}
		c := m.Clone()
		c.HTMLBody = ""
		matched = append(matched, c)
		return true
	})
	return matched
}

func newerThan(a, b *store.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// scoreMessage is a term-frequency relevance score: subject hits weigh
// three times body hits. Zero means no term matched.
func scoreMessage(m *store.Message, terms []string) int {
	subject := strings.ToLower(m.Subject)
	body := strings.ToLower(m.TextBody)
	score := 0
	for _, t := range terms {
		score += 3*strings.Count(subject, t) + strings.Count(body, t)
	}
	return score
}

func paginate(msgs []*store.Message, page store.Page) *store.MessageList {
	total := int64(len(msgs))
	start := page.Offset()
	if start > len(msgs) {
		start = len(msgs)
	}
	end := start + page.Limit
	if end > len(msgs) {
		end = len(msgs)
	}
	return &store.MessageList{
		Messages: msgs[start:end],
		Page:     store.NewPageInfo(page, total),
	}
}
