package postbox

// Pointer helpers for building sparse MessageUpdate values.

var (
	ptrTrue  = boolPtr(true)
	ptrFalse = boolPtr(false)
)

// Bool returns a pointer to v, for MessageUpdate flag fields.
func Bool(v bool) *bool { return boolPtr(v) }

// String returns a pointer to v, for MessageUpdate folder fields.
func String(v string) *string { return &v }

// Labels returns a pointer to a copy of ids, for MessageUpdate.LabelIDs.
// The copy keeps the update independent of the caller's slice.
func Labels(ids ...string) *[]string {
	out := append([]string(nil), ids...)
	return &out
}

func boolPtr(v bool) *bool { return &v }
