package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/absurdlabs/postbox/store"
)

// messageColumns is the canonical SELECT column list for scanning messages.
// It must match the field order of messageRow.
const messageColumns = `id, owner_id, from_email, from_name, to_addrs, cc_addrs, bcc_addrs,
       subject, text_body, html_body, attachments, headers, folder, custom_folder_id,
       label_ids, is_read, is_starred, is_draft, thread_id, reply_to_id, delivery_id,
       sent_at, created_at, updated_at`

// messageRow is the flat scan target for one messages table row.
type messageRow struct {
	ID             string         `db:"id"`
	OwnerID        string         `db:"owner_id"`
	FromEmail      string         `db:"from_email"`
	FromName       string         `db:"from_name"`
	ToAddrs        []byte         `db:"to_addrs"`
	CcAddrs        []byte         `db:"cc_addrs"`
	BccAddrs       []byte         `db:"bcc_addrs"`
	Subject        string         `db:"subject"`
	TextBody       string         `db:"text_body"`
	HTMLBody       string         `db:"html_body"`
	Attachments    []byte         `db:"attachments"`
	Headers        []byte         `db:"headers"`
	Folder         string         `db:"folder"`
	CustomFolderID string         `db:"custom_folder_id"`
	LabelIDs       pq.StringArray `db:"label_ids"`
	IsRead         bool           `db:"is_read"`
	IsStarred      bool           `db:"is_starred"`
	IsDraft        bool           `db:"is_draft"`
	ThreadID       string         `db:"thread_id"`
	ReplyToID      string         `db:"reply_to_id"`
	DeliveryID     string         `db:"delivery_id"`
	SentAt         sql.NullTime   `db:"sent_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *messageRow) toMessage() (*store.Message, error) {
	m := &store.Message{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		From:           store.Address{Email: r.FromEmail, Name: r.FromName},
		Subject:        r.Subject,
		TextBody:       r.TextBody,
		HTMLBody:       r.HTMLBody,
		Folder:         r.Folder,
		CustomFolderID: r.CustomFolderID,
		LabelIDs:       []string(r.LabelIDs),
		IsRead:         r.IsRead,
		IsStarred:      r.IsStarred,
		IsDraft:        r.IsDraft,
		ThreadID:       r.ThreadID,
		ReplyToID:      r.ReplyToID,
		DeliveryID:     r.DeliveryID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.SentAt.Valid {
		m.SentAt = r.SentAt.Time
	}
	for _, pair := range []struct {
		raw []byte
		dst *[]store.Address
	}{
		{r.ToAddrs, &m.To},
		{r.CcAddrs, &m.Cc},
		{r.BccAddrs, &m.Bcc},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
				return nil, fmt.Errorf("unmarshal addresses: %w", err)
			}
		}
	}
	if len(r.Attachments) > 0 {
		if err := json.Unmarshal(r.Attachments, &m.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	if len(r.Headers) > 0 {
		if err := json.Unmarshal(r.Headers, &m.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if len(m.Attachments) == 0 {
		m.Attachments = nil
	}
	if len(m.Headers) == 0 {
		m.Headers = nil
	}
	return m, nil
}

// jsonArg marshals v, mapping nil slices and empty maps to the column default.
func jsonArg(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	if string(data) == "null" {
		data = []byte(`[]`)
	}
	return data, nil
}

func jsonMapArg(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return data, nil
}

// nullTime maps zero time to NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func labelArray(labels []string) pq.StringArray {
	if labels == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(labels)
}
