package postbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/absurdlabs/postbox/delivery"
	"github.com/absurdlabs/postbox/store"
	"github.com/absurdlabs/postbox/store/memory"
)

// recordingPlugin counts hook invocations and optionally vetoes sends.
type recordingPlugin struct {
	name      string
	initErr   error
	beforeErr error

	inits   atomic.Int32
	closes  atomic.Int32
	befores atomic.Int32
	afters  atomic.Int32
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) Init(context.Context) error {
	p.inits.Add(1)
	return p.initErr
}

func (p *recordingPlugin) Close(context.Context) error {
	p.closes.Add(1)
	return nil
}

func (p *recordingPlugin) BeforeSend(context.Context, string, store.DraftContent) error {
	p.befores.Add(1)
	return p.beforeErr
}

func (p *recordingPlugin) AfterSend(context.Context, string, *store.Message) error {
	p.afters.Add(1)
	return nil
}

func TestPluginLifecycle(t *testing.T) {
	ctx := context.Background()
	plugin := &recordingPlugin{name: "recorder"}
	svc, _ := newTestService(t, WithPlugin(plugin))

	if got := plugin.inits.Load(); got != 1 {
		t.Errorf("inits after Connect: got %d, want 1", got)
	}

	mb := svc.Client(aliceIdentity())
	sendSimple(t, ctx, mb, "observed")

	if got := plugin.befores.Load(); got != 1 {
		t.Errorf("befores: got %d, want 1", got)
	}
	if got := plugin.afters.Load(); got != 1 {
		t.Errorf("afters: got %d, want 1", got)
	}

	if err := svc.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := plugin.closes.Load(); got != 1 {
		t.Errorf("closes after Close: got %d, want 1", got)
	}
}

func TestPluginVetoesSend(t *testing.T) {
	ctx := context.Background()
	veto := errors.New("outbound blocked")
	plugin := &recordingPlugin{name: "gate", beforeErr: veto}
	mb, st := newTestMailbox(t, WithPlugin(plugin))

	_, err := mb.Send(ctx, SendRequest{
		To:       []Address{{Email: "bob@example.com"}},
		Subject:  "blocked",
		TextBody: "body",
	})
	var perr *PluginError
	if !errors.As(err, &perr) {
		t.Fatalf("got %v, want *PluginError", err)
	}
	if perr.Plugin != "gate" || !errors.Is(err, veto) {
		t.Errorf("PluginError: plugin %q cause %v", perr.Plugin, perr.Err)
	}
	if got := plugin.afters.Load(); got != 0 {
		t.Errorf("afters after veto: got %d, want 0", got)
	}

	// A vetoed send mutates nothing.
	list, err := st.FindMessages(ctx, "alice", MessageFilter{Folder: FolderSent}, Page{})
	if err != nil {
		t.Fatalf("FindMessages: %v", err)
	}
	if list.Page.Total != 0 {
		t.Errorf("sent messages after veto: got %d, want 0", list.Page.Total)
	}
}

func TestPluginInitFailureAbortsConnect(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("bad config")
	good := &recordingPlugin{name: "good"}
	bad := &recordingPlugin{name: "bad", initErr: boom}

	svc, err := New(
		WithStore(memory.New()),
		WithDeliverer(delivery.NewLoopback()),
		WithPlugin(good),
		WithPlugin(bad),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := svc.Connect(ctx); !errors.Is(err, boom) {
		t.Fatalf("Connect: got %v, want init failure", err)
	}
	if svc.IsConnected() {
		t.Error("IsConnected after failed Connect: got true")
	}
	// Already-initialized plugins are rolled back.
	if got := good.closes.Load(); got != 1 {
		t.Errorf("good plugin closes: got %d, want 1", got)
	}
}
