package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/absurdlabs/postbox"
)

func TestStaticResolve(t *testing.T) {
	ctx := context.Background()
	r := NewStatic(map[string]*postbox.Recipient{
		"bob@example.com": {Email: "bob@example.com", Name: "Bob Builder"},
	})

	got, err := r.Resolve(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Name != "Bob Builder" {
		t.Errorf("Name: got %q", got.Name)
	}

	if _, err := r.Resolve(ctx, "nobody@example.com"); !errors.Is(err, postbox.ErrRecipientNotFound) {
		t.Errorf("unknown address: got %v, want ErrRecipientNotFound", err)
	}
}

func TestStaticResolveBatch(t *testing.T) {
	ctx := context.Background()
	r := NewStatic(map[string]*postbox.Recipient{
		"bob@example.com": {Email: "bob@example.com", Name: "Bob Builder"},
		"eve@example.com": {Email: "eve@example.com", Name: "Eve"},
	})

	got, err := r.ResolveBatch(ctx, []string{"eve@example.com", "nobody@example.com", "bob@example.com"})
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0] == nil || got[0].Name != "Eve" {
		t.Errorf("entry 0: %+v", got[0])
	}
	if got[1] != nil {
		t.Errorf("unknown address entry: got %+v, want nil", got[1])
	}
	if got[2] == nil || got[2].Name != "Bob Builder" {
		t.Errorf("entry 2: %+v", got[2])
	}
}

func TestStaticCopiesInput(t *testing.T) {
	src := map[string]*postbox.Recipient{
		"bob@example.com": {Email: "bob@example.com", Name: "Bob"},
	}
	r := NewStatic(src)
	delete(src, "bob@example.com")

	if _, err := r.Resolve(context.Background(), "bob@example.com"); err != nil {
		t.Errorf("Resolve after source mutation: %v", err)
	}
}
