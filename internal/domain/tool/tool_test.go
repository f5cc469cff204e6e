package tool

import (
	"context"
	"testing"
)

type fakeTool struct {
	name string
	kind Kind
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool " + f.name }
func (f *fakeTool) Kind() Kind          { return f.kind }
func (f *fakeTool) Schema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	return &Result{Output: "ok", Success: true}, nil
}

func TestRegistry_DiscoveredNotEnabledByDefault(t *testing.T) {
	r := NewInMemoryRegistry()
	tl := &fakeTool{name: "grep", kind: KindSearch}

	if err := r.RegisterDiscovered(tl, Metadata{Category: "search", Enabled: false}); err != nil {
		t.Fatalf("RegisterDiscovered: %v", err)
	}

	if r.Has("grep") {
		t.Fatalf("expected grep to be discovered but not enabled")
	}
	if !r.HasDiscovered("grep") {
		t.Fatalf("expected grep to be discovered")
	}
	if _, ok := r.Get("grep"); ok {
		t.Fatalf("Get should not resolve a non-enabled tool")
	}
	defs := r.List()
	if len(defs) != 0 {
		t.Fatalf("expected List() to be empty for a discovered-only tool, got %d", len(defs))
	}
	execSet := r.ExecutionSet()
	if len(execSet) != 1 {
		t.Fatalf("expected ExecutionSet() to include discovered tools, got %d", len(execSet))
	}
}

func TestRegistry_LoadOnDemandPromotes(t *testing.T) {
	r := NewInMemoryRegistry()
	tl := &fakeTool{name: "web_fetch", kind: KindFetch}
	_ = r.RegisterDiscovered(tl, Metadata{Category: "net"})

	got, ok := r.LoadOnDemand("web_fetch")
	if !ok || got == nil {
		t.Fatalf("expected load_on_demand to promote web_fetch")
	}
	if !r.Has("web_fetch") {
		t.Fatalf("expected web_fetch to be enabled after load_on_demand")
	}
	if _, ok := r.LoadOnDemand("does_not_exist"); ok {
		t.Fatalf("load_on_demand on an unknown tool should return false")
	}
}

func TestRegistry_RegisterEnablesImmediately(t *testing.T) {
	r := NewInMemoryRegistry()
	tl := &fakeTool{name: "write_file", kind: KindEdit}

	if err := r.Register(tl, Metadata{Category: "fs"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.Has("write_file") {
		t.Fatalf("expected write_file to be enabled immediately")
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected one bound definition")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewInMemoryRegistry()
	tl := &fakeTool{name: "shell", kind: KindExecute}
	_ = r.Register(tl, Metadata{Category: "exec"})

	if err := r.Unregister("shell"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if r.HasDiscovered("shell") {
		t.Fatalf("expected shell to be gone from the discovered set")
	}
	if err := r.Unregister("shell"); err == nil {
		t.Fatalf("expected error unregistering an already-removed tool")
	}
}

func TestPolicy_MutatorKindsNeedConfirmationInAskMode(t *testing.T) {
	p := &Policy{AskMode: true}
	if !p.NeedsConfirmation(KindEdit) {
		t.Fatalf("expected edit kind to need confirmation under ask-mode")
	}
	if p.NeedsConfirmation(KindRead) {
		t.Fatalf("expected read kind to be auto-approved even under ask-mode")
	}
	p.AskMode = false
	if p.NeedsConfirmation(KindEdit) {
		t.Fatalf("expected no confirmation required outside ask-mode")
	}
}

func TestPolicyEnforcer_FilteredList(t *testing.T) {
	r := NewInMemoryRegistry()
	_ = r.Register(&fakeTool{name: "read_file", kind: KindRead}, Metadata{})
	_ = r.Register(&fakeTool{name: "shell", kind: KindExecute}, Metadata{})

	enforcer := NewPolicyEnforcer(&Policy{DenyList: []string{"shell"}}, r)
	filtered := enforcer.FilteredList()
	if len(filtered) != 1 || filtered[0].Name != "read_file" {
		t.Fatalf("expected deny-listed tool to be filtered out, got %+v", filtered)
	}
}
