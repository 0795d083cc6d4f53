package postbox

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/absurdlabs/postbox/store"
)

// MessageLimits holds all message validation limits.
// Used to pass limits to validation functions.
type MessageLimits struct {
	MaxSubjectLength   int
	MaxBodySize        int
	MaxAttachmentSize  int64
	MaxAttachmentCount int
	MaxRecipientCount  int
	MaxLabelsPerMsg    int
}

// DefaultLimits returns the default message limits.
func DefaultLimits() MessageLimits {
	return MessageLimits{
		MaxSubjectLength:   DefaultMaxSubjectLength,
		MaxBodySize:        DefaultMaxBodySize,
		MaxAttachmentSize:  DefaultMaxAttachmentSize,
		MaxAttachmentCount: DefaultMaxAttachmentCount,
		MaxRecipientCount:  DefaultMaxRecipientCount,
		MaxLabelsPerMsg:    DefaultMaxLabelsPerMsg,
	}
}

// ValidateAddress checks that an address is structurally a mail address:
// one @ with a non-empty local part and a dotted domain. Full RFC 5321
// parsing is the transport's concern, not the engine's.
func ValidateAddress(a store.Address) error {
	addr := strings.TrimSpace(a.Email)
	if addr == "" {
		return invalidField("email", "address is required")
	}
	at := strings.IndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return invalidField("email", "malformed address")
	}
	domain := addr[at+1:]
	if strings.ContainsAny(addr, " \t\r\n") || strings.Contains(addr[at+1:], "@") {
		return invalidField("email", "malformed address")
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return invalidField("email", "malformed domain")
	}
	return nil
}

// validateRecipients checks every recipient group against the limits.
// requireTo enforces the finalized-message invariant of at least one
// primary recipient.
func validateRecipients(to, cc, bcc []store.Address, limits MessageLimits, requireTo bool) error {
	if requireTo && len(to) == 0 {
		return invalidField("to", "at least one recipient is required")
	}
	total := len(to) + len(cc) + len(bcc)
	if total > limits.MaxRecipientCount {
		return invalidField("recipients", fmt.Sprintf("too many recipients: %d (max %d)", total, limits.MaxRecipientCount))
	}
	for _, group := range [][]store.Address{to, cc, bcc} {
		for _, a := range group {
			if err := ValidateAddress(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateContent checks subject, bodies and attachments against limits.
// strict enforces the finalized-message invariant (non-empty subject and
// text body); drafts pass strict=false and may leave both empty.
func validateContent(subject, textBody string, attachments []store.Attachment, limits MessageLimits, strict bool) error {
	if strict && strings.TrimSpace(subject) == "" {
		return invalidField("subject", "subject is required")
	}
	if utf8.RuneCountInString(subject) > limits.MaxSubjectLength {
		return invalidField("subject", fmt.Sprintf("subject too long (max %d characters)", limits.MaxSubjectLength))
	}
	if strict && strings.TrimSpace(textBody) == "" {
		return invalidField("text_body", "body is required")
	}
	if len(textBody) > limits.MaxBodySize {
		return invalidField("text_body", fmt.Sprintf("body too large (max %d bytes)", limits.MaxBodySize))
	}
	if len(attachments) > limits.MaxAttachmentCount {
		return invalidField("attachments", fmt.Sprintf("too many attachments (max %d)", limits.MaxAttachmentCount))
	}
	for i, a := range attachments {
		if a.Filename == "" {
			return invalidField(fmt.Sprintf("attachments[%d].filename", i), "filename is required")
		}
		if a.Locator == "" {
			return invalidField(fmt.Sprintf("attachments[%d].locator", i), "locator is required")
		}
		if a.Size < 0 || a.Size > limits.MaxAttachmentSize {
			return invalidField(fmt.Sprintf("attachments[%d].size", i), fmt.Sprintf("attachment too large (max %d bytes)", limits.MaxAttachmentSize))
		}
	}
	return nil
}

// validateLabelIDs bounds the label set and rejects blank ids.
func validateLabelIDs(labelIDs []string, limits MessageLimits) error {
	if len(labelIDs) > limits.MaxLabelsPerMsg {
		return invalidField("label_ids", fmt.Sprintf("too many labels (max %d)", limits.MaxLabelsPerMsg))
	}
	for _, id := range labelIDs {
		if strings.TrimSpace(id) == "" {
			return invalidField("label_ids", "blank label id")
		}
	}
	return nil
}

// validateName checks a folder or label display name.
func validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return invalidField("name", "name is required")
	}
	if utf8.RuneCountInString(trimmed) > 64 {
		return invalidField("name", "name too long (max 64 characters)")
	}
	return nil
}

// isValidOwnerID checks if an owner ID is safe for use as a storage key.
// Disallows wildcard, separator and control characters.
func isValidOwnerID(ownerID string) bool {
	if ownerID == "" {
		return false
	}
	for _, c := range ownerID {
		if c == '*' || c == ':' || c == '/' || c == '\\' ||
			c == ' ' || c == '\t' || c == '\n' || c == '\r' ||
			c < 32 || c == 127 {
			return false
		}
	}
	return true
}
