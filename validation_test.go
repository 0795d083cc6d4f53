package postbox

import (
	"strings"
	"testing"

	"github.com/absurdlabs/postbox/store"
)

func TestValidateAddress(t *testing.T) {
	valid := []string{
		"alice@example.com",
		"a.b+tag@sub.example.co",
		"  padded@example.com  ",
	}
	for _, email := range valid {
		if err := ValidateAddress(Address{Email: email}); err != nil {
			t.Errorf("ValidateAddress(%q): %v", email, err)
		}
	}

	invalid := []string{
		"",
		"no-at-sign",
		"@example.com",
		"alice@",
		"alice@@example.com",
		"alice bob@example.com",
		"alice@nodots",
		"alice@.example.com",
		"alice@example.com.",
	}
	for _, email := range invalid {
		if err := ValidateAddress(Address{Email: email}); err == nil {
			t.Errorf("ValidateAddress(%q): got nil, want error", email)
		}
	}
}

func TestValidateRecipients(t *testing.T) {
	limits := DefaultLimits()
	bob := store.Address{Email: "bob@example.com"}

	if err := validateRecipients(nil, nil, nil, limits, true); err == nil {
		t.Error("requireTo with no recipients: got nil")
	}
	if err := validateRecipients(nil, nil, nil, limits, false); err != nil {
		t.Errorf("lenient with no recipients: %v", err)
	}
	if err := validateRecipients([]store.Address{bob}, nil, nil, limits, true); err != nil {
		t.Errorf("single valid recipient: %v", err)
	}
	if err := validateRecipients([]store.Address{{Email: "junk"}}, nil, nil, limits, false); err == nil {
		t.Error("malformed recipient: got nil")
	}

	limits.MaxRecipientCount = 2
	if err := validateRecipients([]store.Address{bob}, []store.Address{bob}, []store.Address{bob}, limits, true); err == nil {
		t.Error("over recipient limit: got nil")
	}
}

func TestValidateContent(t *testing.T) {
	limits := DefaultLimits()

	if err := validateContent("subject", "body", nil, limits, true); err != nil {
		t.Errorf("valid content: %v", err)
	}
	if err := validateContent("", "", nil, limits, false); err != nil {
		t.Errorf("empty draft content: %v", err)
	}
	if err := validateContent("   ", "body", nil, limits, true); err == nil {
		t.Error("blank subject in strict mode: got nil")
	}
	if err := validateContent("subject", "   ", nil, limits, true); err == nil {
		t.Error("blank body in strict mode: got nil")
	}

	limits.MaxSubjectLength = 5
	if err := validateContent("much too long", "body", nil, limits, false); err == nil {
		t.Error("over subject limit: got nil")
	}

	limits = DefaultLimits()
	limits.MaxBodySize = 4
	if err := validateContent("s", strings.Repeat("x", 5), nil, limits, false); err == nil {
		t.Error("over body limit: got nil")
	}
}

func TestValidateContentAttachments(t *testing.T) {
	limits := DefaultLimits()
	good := store.Attachment{Filename: "f.txt", Locator: "mem://1/f.txt", Size: 10}

	if err := validateContent("s", "b", []store.Attachment{good}, limits, true); err != nil {
		t.Errorf("valid attachment: %v", err)
	}
	cases := []struct {
		name string
		att  store.Attachment
	}{
		{"missing filename", store.Attachment{Locator: "mem://1/x", Size: 1}},
		{"missing locator", store.Attachment{Filename: "x", Size: 1}},
		{"negative size", store.Attachment{Filename: "x", Locator: "mem://1/x", Size: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateContent("s", "b", []store.Attachment{tc.att}, limits, true); err == nil {
				t.Error("got nil, want error")
			}
		})
	}

	limits.MaxAttachmentCount = 1
	if err := validateContent("s", "b", []store.Attachment{good, good}, limits, true); err == nil {
		t.Error("over attachment count: got nil")
	}
}

func TestValidateLabelIDs(t *testing.T) {
	limits := DefaultLimits()

	if err := validateLabelIDs([]string{"a", "b"}, limits); err != nil {
		t.Errorf("valid labels: %v", err)
	}
	if err := validateLabelIDs([]string{"a", "  "}, limits); err == nil {
		t.Error("blank label id: got nil")
	}
	limits.MaxLabelsPerMsg = 1
	if err := validateLabelIDs([]string{"a", "b"}, limits); err == nil {
		t.Error("over label limit: got nil")
	}
}

func TestIsValidOwnerID(t *testing.T) {
	for _, id := range []string{"alice", "user-123", "org.team.alice"} {
		if !isValidOwnerID(id) {
			t.Errorf("isValidOwnerID(%q): got false", id)
		}
	}
	for _, id := range []string{"", "with space", "wild*card", "colon:id", "slash/id", "tab\tid"} {
		if isValidOwnerID(id) {
			t.Errorf("isValidOwnerID(%q): got true", id)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := validateName("receipts"); err != nil {
		t.Errorf("valid name: %v", err)
	}
	if err := validateName("   "); err == nil {
		t.Error("blank name: got nil")
	}
	if err := validateName(strings.Repeat("x", 65)); err == nil {
		t.Error("over-long name: got nil")
	}
}
