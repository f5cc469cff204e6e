package prompt

// IdentityAdapter satisfies graph.IdentityProvider in terms of the
// filesystem-driven PromptEngine, so the Planner gets the teacher's full
// component-discovery prompt assembly without importing the infrastructure
// package directly.
type IdentityAdapter struct {
	engine    *PromptEngine
	tools     []string
	model     string
	workspace string
	userRules string
}

// NewIdentityAdapter binds a PromptEngine plus the run's static context
// (the registered tool names, active model, workspace root, and any
// user-defined rules) that PromptContext needs beyond the per-turn fields
// the Planner already has no use for (UserMessage, DetectedIntent, the
// focus chain) when it only wants the identity/component block.
func NewIdentityAdapter(engine *PromptEngine, tools []string, model, workspace, userRules string) *IdentityAdapter {
	return &IdentityAdapter{engine: engine, tools: tools, model: model, workspace: workspace, userRules: userRules}
}

// Identity implements graph.IdentityProvider. contextID is accepted for
// interface parity with per-session identity providers but unused here —
// the PromptEngine's component set does not currently vary by thread.
func (a *IdentityAdapter) Identity(contextID string) string {
	return a.engine.Assemble(PromptContext{
		RegisteredTools: a.tools,
		ModelName:       a.model,
		Workspace:       a.workspace,
		UserRules:       a.userRules,
	})
}
