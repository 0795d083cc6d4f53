package store

import "time"

// Default display attributes for user-defined folders and labels.
const (
	DefaultFolderColor = "#6B7280"
	DefaultFolderIcon  = "folder"
	DefaultLabelColor  = "#3B82F6"
)

// Folder is a user-defined classification bucket, distinct from the
// built-in folders. Names are unique per owning account.
type Folder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Label is a user-defined tag. A message may carry any number of labels
// independent of its folder. Names are unique per owning account.
type Label struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
