package mention

import (
	"context"
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/tool"
)

type fakeSkills struct{ known map[string]bool }

func (f *fakeSkills) Has(id string) bool { return f.known[id] }

type noopTool struct{ name string }

func (t *noopTool) Name() string                                  { return t.name }
func (t *noopTool) Description() string                           { return "" }
func (t *noopTool) Kind() tool.Kind                                { return tool.KindRead }
func (t *noopTool) Schema() map[string]interface{}                { return nil }
func (t *noopTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	return &tool.Result{Success: true}, nil
}

func TestClassifier_PriorityOrder(t *testing.T) {
	registry := tool.NewInMemoryRegistry()
	_ = registry.RegisterDiscovered(&noopTool{name: "web_search"}, tool.Metadata{})

	skills := &fakeSkills{known: map[string]bool{"pdf-tools": true}}
	c := NewClassifier("agent", skills, registry)

	result, reminders := c.Classify([]string{"agent", "pdf-tools", "web_search", "nonexistent"})

	if len(result.Agents) != 1 || result.Agents[0] != "agent" {
		t.Fatalf("expected agent handle classified, got %+v", result.Agents)
	}
	if len(result.Skills) != 1 || result.Skills[0] != "pdf-tools" {
		t.Fatalf("expected skill classified, got %+v", result.Skills)
	}
	if len(reminders) != 1 || reminders[0].SkillID != "pdf-tools" {
		t.Fatalf("expected one skill reminder, got %+v", reminders)
	}
	if len(result.Tools) != 1 || result.Tools[0] != "web_search" {
		t.Fatalf("expected tool classified, got %+v", result.Tools)
	}
	if !registry.Has("web_search") {
		t.Fatalf("expected web_search to be promoted to enabled via load_on_demand")
	}
	if len(result.Unknown) != 1 || result.Unknown[0] != "nonexistent" {
		t.Fatalf("expected unknown mention classified, got %+v", result.Unknown)
	}
}

func TestClassifier_AlreadyEnabledToolNotReloaded(t *testing.T) {
	registry := tool.NewInMemoryRegistry()
	_ = registry.Register(&noopTool{name: "read_file"}, tool.Metadata{})

	c := NewClassifier("agent", &fakeSkills{known: map[string]bool{}}, registry)
	result, _ := c.Classify([]string{"read_file"})

	if len(result.Tools) != 1 {
		t.Fatalf("expected read_file classified as tool")
	}
}
