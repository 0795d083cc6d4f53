package memory

import (
	"context"
	"sort"

	"github.com/absurdlabs/postbox/store"
)

// CreateFolder persists a user-defined folder, enforcing per-owner name
// uniqueness.
func (s *Store) CreateFolder(_ context.Context, f *store.Folder) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	if f.ID == "" || f.OwnerID == "" {
		return store.ErrInvalidID
	}

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	dup := false
	s.folders.Range(func(_, value any) bool {
		cur := value.(*store.Folder)
		if cur.OwnerID == f.OwnerID && cur.Name == f.Name {
			dup = true
			return false
		}
		return true
	})
	if dup {
		return store.ErrDuplicateName
	}

	cp := *f
	s.folders.Store(f.ID, &cp)
	return nil
}

// GetFolder returns the owner's folder by id.
func (s *Store) GetFolder(_ context.Context, ownerID, id string) (*store.Folder, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	v, ok := s.folders.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	f := v.(*store.Folder)
	if f.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

// ListFolders returns the owner's folders sorted by name.
func (s *Store) ListFolders(_ context.Context, ownerID string) ([]*store.Folder, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	var out []*store.Folder
	s.folders.Range(func(_, value any) bool {
		f := value.(*store.Folder)
		if f.OwnerID == ownerID {
			cp := *f
			out = append(out, &cp)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteFolder removes the owner's folder record.
func (s *Store) DeleteFolder(_ context.Context, ownerID, id string) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	v, ok := s.folders.Load(id)
	if !ok {
		return store.ErrNotFound
	}
	if v.(*store.Folder).OwnerID != ownerID {
		return store.ErrNotFound
	}
	s.folders.Delete(id)
	return nil
}

// CreateLabel persists a user-defined label, enforcing per-owner name
// uniqueness.
func (s *Store) CreateLabel(_ context.Context, l *store.Label) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	if l.ID == "" || l.OwnerID == "" {
		return store.ErrInvalidID
	}

	s.registryMu.Lock()
	defer s.registryMu.Unlock()

	dup := false
	s.labels.Range(func(_, value any) bool {
		cur := value.(*store.Label)
		if cur.OwnerID == l.OwnerID && cur.Name == l.Name {
			dup = true
			return false
		}
		return true
	})
	if dup {
		return store.ErrDuplicateName
	}

	cp := *l
	s.labels.Store(l.ID, &cp)
	return nil
}

// GetLabel returns the owner's label by id.
func (s *Store) GetLabel(_ context.Context, ownerID, id string) (*store.Label, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	v, ok := s.labels.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	l := v.(*store.Label)
	if l.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// ListLabels returns the owner's labels sorted by name.
func (s *Store) ListLabels(_ context.Context, ownerID string) ([]*store.Label, error) {
	if !s.isConnected() {
		return nil, store.ErrNotConnected
	}
	var out []*store.Label
	s.labels.Range(func(_, value any) bool {
		l := value.(*store.Label)
		if l.OwnerID == ownerID {
			cp := *l
			out = append(out, &cp)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteLabel removes the owner's label record.
func (s *Store) DeleteLabel(_ context.Context, ownerID, id string) error {
	if !s.isConnected() {
		return store.ErrNotConnected
	}
	v, ok := s.labels.Load(id)
	if !ok {
		return store.ErrNotFound
	}
	if v.(*store.Label).OwnerID != ownerID {
		return store.ErrNotFound
	}
	s.labels.Delete(id)
	return nil
}
