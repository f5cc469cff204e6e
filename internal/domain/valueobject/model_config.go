package valueobject

import "github.com/ngoclaw/agentcore/internal/domain/entity"

// ModelConfig is an immutable value object describing one provider/model pair.
type ModelConfig struct {
	provider    string
	model       string
	maxTokens   int
	temperature float64
	topP        float64
	stream      bool
}

// NewModelConfig constructs a ModelConfig.
func NewModelConfig(provider, model string, maxTokens int, temperature, topP float64, stream bool) ModelConfig {
	return ModelConfig{
		provider:    provider,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		stream:      stream,
	}
}

// DefaultModelConfig is the baseline config used when no slot-specific
// override applies.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		provider:    "bailian",
		model:       "qwen3-max-2026-01-23",
		maxTokens:   8192,
		temperature: 0.7,
		topP:        0.95,
		stream:      true,
	}
}

func (mc ModelConfig) Provider() string       { return mc.provider }
func (mc ModelConfig) Model() string          { return mc.model }
func (mc ModelConfig) MaxTokens() int         { return mc.maxTokens }
func (mc ModelConfig) Temperature() float64   { return mc.temperature }
func (mc ModelConfig) TopP() float64          { return mc.topP }
func (mc ModelConfig) Stream() bool           { return mc.stream }

// FullModelName returns the "<provider>/<model>" identifier used as model_id
// throughout the runtime and the token tracker's context-window table.
func (mc ModelConfig) FullModelName() string {
	return mc.provider + "/" + mc.model
}

// WithTemperature returns a copy with temperature replaced.
func (mc ModelConfig) WithTemperature(temp float64) ModelConfig {
	next := mc
	next.temperature = temp
	return next
}

// WithMaxTokens returns a copy with max tokens replaced.
func (mc ModelConfig) WithMaxTokens(tokens int) ModelConfig {
	next := mc
	next.maxTokens = tokens
	return next
}

// Equals is value-object equality.
func (mc ModelConfig) Equals(other ModelConfig) bool {
	return mc == other
}

// ModelSlotTable maps each entity.ModelSlot to the concrete ModelConfig the
// planner should bind for that slot (spec.md §4.8 step 7). Unset slots fall
// back to the base slot's config.
type ModelSlotTable struct {
	slots map[entity.ModelSlot]ModelConfig
}

// NewModelSlotTable builds a table seeded with base, falling back to it for
// any slot not explicitly overridden.
func NewModelSlotTable(base ModelConfig) *ModelSlotTable {
	return &ModelSlotTable{slots: map[entity.ModelSlot]ModelConfig{
		entity.ModelSlotBase: base,
	}}
}

// SetSlot overrides the config bound to slot.
func (t *ModelSlotTable) SetSlot(slot entity.ModelSlot, cfg ModelConfig) {
	t.slots[slot] = cfg
}

// Resolve returns the config for slot, falling back to ModelSlotBase.
func (t *ModelSlotTable) Resolve(slot entity.ModelSlot) ModelConfig {
	if cfg, ok := t.slots[slot]; ok {
		return cfg
	}
	return t.slots[entity.ModelSlotBase]
}

// SelectSlot picks a slot from an explicit preference plus rough capability
// hints, per spec.md §4.8 step 7: a preference wins outright; otherwise
// vision inputs select the vision slot, detected code content selects the
// code slot, and everything else uses base.
func SelectSlot(pref entity.ModelSlot, hasMedia, hasCode bool) entity.ModelSlot {
	if pref != "" {
		return pref
	}
	if hasMedia {
		return entity.ModelSlotVision
	}
	if hasCode {
		return entity.ModelSlotCode
	}
	return entity.ModelSlotBase
}
