package valueobject

import (
	"testing"

	"github.com/ngoclaw/agentcore/internal/domain/entity"
)

func TestModelConfig_FullModelName(t *testing.T) {
	mc := NewModelConfig("bailian", "qwen3-max", 8192, 0.7, 0.95, true)
	if got := mc.FullModelName(); got != "bailian/qwen3-max" {
		t.Errorf("FullModelName() = %q, want %q", got, "bailian/qwen3-max")
	}
}

func TestModelConfig_WithTemperature(t *testing.T) {
	base := DefaultModelConfig()
	updated := base.WithTemperature(0.2)
	if base.Temperature() == updated.Temperature() {
		t.Error("WithTemperature should not mutate the receiver")
	}
	if updated.Temperature() != 0.2 {
		t.Errorf("Temperature() = %v, want 0.2", updated.Temperature())
	}
}

func TestModelSlotTable_ResolveFallsBackToBase(t *testing.T) {
	base := DefaultModelConfig()
	table := NewModelSlotTable(base)

	if got := table.Resolve(entity.ModelSlotVision); !got.Equals(base) {
		t.Errorf("Resolve(vision) with no override = %+v, want base %+v", got, base)
	}

	vision := NewModelConfig("bailian", "qwen3-vl", 8192, 0.5, 0.9, true)
	table.SetSlot(entity.ModelSlotVision, vision)
	if got := table.Resolve(entity.ModelSlotVision); !got.Equals(vision) {
		t.Errorf("Resolve(vision) after SetSlot = %+v, want %+v", got, vision)
	}
	if got := table.Resolve(entity.ModelSlotCode); !got.Equals(base) {
		t.Error("Resolve(code) should still fall back to base when unset")
	}
}

func TestSelectSlot(t *testing.T) {
	tests := []struct {
		name     string
		pref     entity.ModelSlot
		hasMedia bool
		hasCode  bool
		want     entity.ModelSlot
	}{
		{"explicit pref wins", entity.ModelSlotReasoning, true, true, entity.ModelSlotReasoning},
		{"media picks vision", "", true, false, entity.ModelSlotVision},
		{"code picks code", "", false, true, entity.ModelSlotCode},
		{"media beats code", "", true, true, entity.ModelSlotVision},
		{"default is base", "", false, false, entity.ModelSlotBase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectSlot(tt.pref, tt.hasMedia, tt.hasCode); got != tt.want {
				t.Errorf("SelectSlot(%q, %v, %v) = %q, want %q", tt.pref, tt.hasMedia, tt.hasCode, got, tt.want)
			}
		})
	}
}
