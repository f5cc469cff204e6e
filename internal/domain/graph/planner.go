package graph

import (
	stdctx "context"
	"fmt"
	"strings"
	"time"

	domaincontext "github.com/ngoclaw/agentcore/internal/domain/context"
	"github.com/ngoclaw/agentcore/internal/domain/entity"
	"github.com/ngoclaw/agentcore/internal/domain/mention"
	"github.com/ngoclaw/agentcore/internal/domain/service"
	domaintool "github.com/ngoclaw/agentcore/internal/domain/tool"
	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
	"go.uber.org/zap"
)

// SkillCatalog is the Planner's view of the Skill Registry: a renderable
// catalog block for the system prompt (spec.md §4.8 step 6). Satisfied by
// infrastructure/tool.SkillManager.
type SkillCatalog interface {
	RenderCatalog() string
}

// IdentityProvider supplies the agent's identity block, allowing the
// planner to stay decoupled from the teacher's filesystem-driven
// PromptEngine (infrastructure/prompt) while still using its output.
type IdentityProvider interface {
	Identity(contextID string) string
}

// PlannerConfig holds the tunables named in spec.md §6's configuration table
// that bear directly on planner behavior.
type PlannerConfig struct {
	MaxMessageHistory int
	PersistentTools   []string // globals always visible: now, todo_read, todo_write, ask_human, delegate_task
	Temperature       float64
	MaxTokens         int
}

// Planner implements spec.md §4.8, decomposed from the teacher's
// agent_loop.go runLoop() monolith into a single re-entrant node the
// Runtime calls once per planner turn.
type Planner struct {
	cfg        PlannerConfig
	tools      domaintool.Registry
	skills     SkillCatalog
	classifier *mention.Classifier
	tracker    *service.TokenTracker
	compressor *domaincontext.Compressor
	identity   IdentityProvider
	modelSlots *valueobject.ModelSlotTable
	chatModel  ChatModel
	logger     *zap.Logger
}

// NewPlanner wires the Planner's dependencies.
func NewPlanner(
	cfg PlannerConfig,
	tools domaintool.Registry,
	skills SkillCatalog,
	classifier *mention.Classifier,
	tracker *service.TokenTracker,
	compressor *domaincontext.Compressor,
	identity IdentityProvider,
	modelSlots *valueobject.ModelSlotTable,
	chatModel ChatModel,
	logger *zap.Logger,
) *Planner {
	if cfg.MaxMessageHistory <= 0 {
		cfg.MaxMessageHistory = 40
	}
	return &Planner{
		cfg: cfg, tools: tools, skills: skills, classifier: classifier,
		tracker: tracker, compressor: compressor, identity: identity,
		modelSlots: modelSlots, chatModel: chatModel, logger: logger,
	}
}

// Run executes one planner turn and returns the update the Runtime merges
// into state. On the compression-only early return (spec.md §4.8 step 5a)
// the patch replaces the message log with the compressed one and no chat
// model call is made.
func (p *Planner) Run(ctx stdctx.Context, state *entity.SessionState) (entity.StatePatch, error) {
	// Step 1 — sanitize (view-only; the persisted log keeps the orphaned
	// tool-call request so a later retry can still answer it).
	view := sanitizeHistory(state.Messages)
	// Step 2 — truncate safely.
	view = truncateHistory(view, p.cfg.MaxMessageHistory)

	// Step 3 — classify mentions.
	classification, reminders := p.classifier.Classify(state.MentionedAgents)

	patch := entity.StatePatch{
		ConsumeMentionedAgents: true,
		AllowTools:             append([]string{}, classification.Tools...),
	}

	// Step 4 — assemble visibility set.
	visibility := p.visibilitySet(state, classification)

	// Step 5 — check token status.
	modelCfg := p.modelSlots.Resolve(entity.ModelSlotBase)
	status := p.tracker.Band(state.CumulativePromptTokens, modelCfg.FullModelName())

	if status.Status == service.StatusCritical {
		if !state.AutoCompressedThisRequest {
			result := p.compressor.Compress(ctx, state.Messages, domaincontext.StrategyAuto, state.LastCompressionRatio)
			ratio := result.Ratio
			autoTrue := true
			patch.ReplaceMessages = result.Messages
			patch.ResetTokenCounters = true
			patch.SetCompressionRatio = &ratio
			patch.SetAutoCompressed = &autoTrue
			patch.IncrementCompactCount = true
			if p.logger != nil {
				p.logger.Info("auto-compressed context on critical token status",
					zap.String("strategy", string(result.Strategy)),
					zap.Bool("fallback", result.Fallback),
				)
			}
			return patch, nil
		}
		// Already compressed this request: proceed with a normal turn. No
		// compression tool is added to the visibility set, so the model has
		// no way to request a further compression in this turn.
	}

	// Step 6 — build system prompt.
	hasMedia := len(state.NewUploadedFiles) > 0
	hasCode := detectsCode(view)
	systemPrompt := p.buildSystemPrompt(state, reminders, classification, hasMedia, status)

	// Step 7 — select model.
	slot := valueobject.SelectSlot(state.ModelPref, hasMedia, hasCode)
	modelCfg = p.modelSlots.Resolve(slot)

	// Step 8 — invoke chat model.
	defs := make([]domaintool.Definition, 0, len(visibility))
	for _, name := range visibility {
		if t, ok := p.tools.Get(name); ok {
			defs = append(defs, domaintool.Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
		}
	}

	resp, err := p.chatModel.Invoke(ctx, ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     view,
		Tools:        defs,
		ModelID:      modelCfg.FullModelName(),
		Temperature:  p.cfg.Temperature,
		MaxTokens:    p.cfg.MaxTokens,
	})
	if err != nil {
		return patch, err
	}

	// Step 9 — extract usage.
	patch.AddPromptTokens = resp.Usage.PromptTokens
	patch.AddCompletionTokens = resp.Usage.CompletionTokens
	patch.IncrementLoops = true

	// Step 10 — return the new assistant message.
	if resp.Message != nil {
		patch.AppendMessages = []*entity.Message{resp.Message}
	}

	return patch, nil
}

// visibilitySet assembles persistent globals + allowed_tools + freshly
// classified tools, deduplicated by name (spec.md §4.8 step 4).
func (p *Planner) visibilitySet(state *entity.SessionState, c mention.Classification) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, name := range p.cfg.PersistentTools {
		if name == "delegate_task" && !state.CanDelegate() {
			continue
		}
		add(name)
	}
	for name := range state.AllowedTools {
		add(name)
	}
	for _, name := range c.Tools {
		add(name)
	}
	return names
}

func (p *Planner) buildSystemPrompt(
	state *entity.SessionState,
	reminders []mention.SkillReminder,
	c mention.Classification,
	hasMedia bool,
	status service.StatusReport,
) string {
	var b strings.Builder

	if p.identity != nil {
		b.WriteString(p.identity.Identity(state.ContextID))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Current time (UTC): %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if p.skills != nil {
		if catalog := p.skills.RenderCatalog(); catalog != "" {
			b.WriteString(catalog)
			b.WriteString("\n\n")
		}
	}

	if state.ActiveSkill != "" {
		fmt.Fprintf(&b, "Active skill: %s\n", state.ActiveSkill)
	}
	for _, r := range reminders {
		fmt.Fprintf(&b, "Reminder: %s\n", r.Text)
	}
	if len(c.Unknown) > 0 {
		fmt.Fprintf(&b, "Note: unrecognized mentions ignored: %s\n", strings.Join(c.Unknown, ", "))
	}
	if hasMedia {
		b.WriteString("Note: this turn includes uploaded media.\n")
	}

	switch status.Status {
	case service.StatusInfo:
		b.WriteString("Notice: conversation context usage is approaching the configured limit.\n")
	case service.StatusWarning:
		b.WriteString("Notice: conversation context usage is high; consider wrapping up or summarizing soon.\n")
	}

	return b.String()
}

// detectsCode is a rough heuristic for spec.md §4.8 step 7's "detected
// code" capability hint: a fenced code block anywhere in the visible
// history.
func detectsCode(messages []*entity.Message) bool {
	for _, m := range messages {
		if strings.Contains(m.Content(), "```") {
			return true
		}
	}
	return false
}
