package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/absurdlabs/postbox/store"
)

// messageDoc is the persisted form of store.Message. The caller-assigned
// message id is the document _id.
type messageDoc struct {
	ID      string `bson:"_id"`
	OwnerID string `bson:"owner_id"`

	From store.Address   `bson:"from"`
	To   []store.Address `bson:"to,omitempty"`
	Cc   []store.Address `bson:"cc,omitempty"`
	Bcc  []store.Address `bson:"bcc,omitempty"`

	Subject     string             `bson:"subject"`
	TextBody    string             `bson:"text_body"`
	HTMLBody    string             `bson:"html_body,omitempty"`
	Attachments []store.Attachment `bson:"attachments,omitempty"`
	Headers     map[string]string  `bson:"headers,omitempty"`

	Folder         string   `bson:"folder"`
	CustomFolderID string   `bson:"custom_folder_id,omitempty"`
	LabelIDs       []string `bson:"label_ids,omitempty"`

	IsRead    bool `bson:"is_read"`
	IsStarred bool `bson:"is_starred"`
	IsDraft   bool `bson:"is_draft"`

	ThreadID  string `bson:"thread_id,omitempty"`
	ReplyToID string `bson:"reply_to_id,omitempty"`

	DeliveryID string `bson:"delivery_id,omitempty"`

	SentAt    time.Time `bson:"sent_at,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func messageToDoc(m *store.Message) *messageDoc {
	return &messageDoc{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		From:           m.From,
		To:             m.To,
		Cc:             m.Cc,
		Bcc:            m.Bcc,
		Subject:        m.Subject,
		TextBody:       m.TextBody,
		HTMLBody:       m.HTMLBody,
		Attachments:    m.Attachments,
		Headers:        m.Headers,
		Folder:         m.Folder,
		CustomFolderID: m.CustomFolderID,
		LabelIDs:       m.LabelIDs,
		IsRead:         m.IsRead,
		IsStarred:      m.IsStarred,
		IsDraft:        m.IsDraft,
		ThreadID:       m.ThreadID,
		ReplyToID:      m.ReplyToID,
		DeliveryID:     m.DeliveryID,
		SentAt:         m.SentAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func (d *messageDoc) toMessage() *store.Message {
	return &store.Message{
		ID:             d.ID,
		OwnerID:        d.OwnerID,
		From:           d.From,
		To:             d.To,
		Cc:             d.Cc,
		Bcc:            d.Bcc,
		Subject:        d.Subject,
		TextBody:       d.TextBody,
		HTMLBody:       d.HTMLBody,
		Attachments:    d.Attachments,
		Headers:        d.Headers,
		Folder:         d.Folder,
		CustomFolderID: d.CustomFolderID,
		LabelIDs:       d.LabelIDs,
		IsRead:         d.IsRead,
		IsStarred:      d.IsStarred,
		IsDraft:        d.IsDraft,
		ThreadID:       d.ThreadID,
		ReplyToID:      d.ReplyToID,
		DeliveryID:     d.DeliveryID,
		SentAt:         d.SentAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// listProjection omits the rich body from list and search results.
var listProjection = bson.M{"html_body": 0}

// ownerFilter scopes a single-document operation to (owner, id).
func ownerFilter(ownerID, id string) bson.M {
	return bson.M{"_id": id, "owner_id": ownerID}
}
