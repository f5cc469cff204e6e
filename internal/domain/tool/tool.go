package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Kind is a tool's operation category, used to drive default risk
// classification when a tool's own metadata doesn't set one explicitly.
type Kind string

const (
	KindRead        Kind = "read"
	KindEdit        Kind = "edit"
	KindExecute     Kind = "execute"
	KindDelete      Kind = "delete"
	KindSearch      Kind = "search"
	KindFetch       Kind = "fetch"
	KindThink       Kind = "think"
	KindCommunicate Kind = "communicate"
)

// MutatorKinds are kinds that default to requiring HITL approval.
var MutatorKinds = map[Kind]bool{
	KindEdit:    true,
	KindDelete:  true,
	KindExecute: true,
}

// SafeKinds default to auto-approval regardless of ask-mode.
var SafeKinds = map[Kind]bool{
	KindRead:   true,
	KindSearch: true,
	KindThink:  true,
}

// Tool is the handler abstraction every concrete tool implements. Concrete
// handlers (file I/O, shell, web search, ...) are out of this module's
// scope; callers register their own against this interface.
type Tool interface {
	Name() string
	Description() string
	Kind() Kind
	Schema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Result is a tool invocation's outcome.
type Result struct {
	Output   string                 // compact result handed back to the model
	Display  string                 // richer rendering for a UI surface, falls back to Output
	Success  bool
	Metadata map[string]interface{}
	Error    string
}

// DisplayOrOutput returns Display if set, else Output.
func (r *Result) DisplayOrOutput() string {
	if r.Display != "" {
		return r.Display
	}
	return r.Output
}

// Definition is what gets sent to the chat model for tool-binding.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Metadata is the registry-side descriptor: category/tags/risk/enablement,
// not sent to the model. RegisterAllTools derives it from each tool's Kind;
// tool entries in the config file are not applied.
type Metadata struct {
	Category        string   `json:"category"`
	Tags            []string `json:"tags,omitempty"`
	RiskLevel       string   `json:"risk_level"`
	Enabled         bool     `json:"enabled"`
	AlwaysAvailable bool     `json:"always_available"`
	ConcurrencySafe bool     `json:"concurrency_safe"`
}

// Discoverer is an external tool source that yields entries for
// registration. No type in this module implements it; MCP server tools are
// registered by the infrastructure MCPManager directly.
type Discoverer interface {
	Discover(ctx context.Context) ([]Entry, error)
}

// Entry is one discovered (tool, metadata) pair, as returned by a Discoverer,
// prior to registration.
type Entry struct {
	Tool Tool
	Meta Metadata
}

// Registry is the three-layer tool registry from spec.md §4.1: discovered
// (everything the startup scan found), enabled (config says enabled: true,
// bound to the model at planner time), and execution set (the full
// discovered collection — the tools node must accept anything, since
// handlers may be materialized on demand via load_on_demand).
type Registry interface {
	// RegisterDiscovered adds tool to the discovered set; it is enabled only
	// if meta.Enabled is set.
	RegisterDiscovered(t Tool, meta Metadata) error
	// Register enables tool immediately (discovers it too, if new).
	Register(t Tool, meta Metadata) error
	// Unregister removes a tool from both the discovered and enabled sets.
	Unregister(name string) error
	// Get resolves name against the enabled set only.
	Get(name string) (Tool, bool)
	// LoadOnDemand promotes a discovered-but-not-enabled tool into the
	// enabled set and returns it; returns the tool unchanged if already
	// enabled, or (nil, false) if name is not discovered at all.
	LoadOnDemand(name string) (Tool, bool)
	// Metadata returns the descriptor for a discovered tool.
	Metadata(name string) (Metadata, bool)
	// List returns Definitions for the enabled set — what the planner binds
	// to the model.
	List() []Definition
	// ExecutionSet returns every discovered tool, enabled or not — what the
	// tools node is allowed to execute.
	ExecutionSet() []Tool
	// Has reports whether name resolves in the enabled set.
	Has(name string) bool
	// HasDiscovered reports whether name resolves in the discovered set,
	// enabled or not.
	HasDiscovered(name string) bool
}

type registryEntry struct {
	tool    Tool
	meta    Metadata
	enabled bool
}

// InMemoryRegistry is the default in-process Registry implementation.
type InMemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewInMemoryRegistry creates an empty registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		entries: make(map[string]*registryEntry),
	}
}

func (r *InMemoryRegistry) RegisterDiscovered(t Tool, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.entries[name] = &registryEntry{tool: t, meta: meta, enabled: meta.Enabled}
	return nil
}

func (r *InMemoryRegistry) Register(t Tool, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if existing, exists := r.entries[name]; exists {
		existing.enabled = true
		return nil
	}
	meta.Enabled = true
	r.entries[name] = &registryEntry{tool: t, meta: meta, enabled: true}
	return nil
}

func (r *InMemoryRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return fmt.Errorf("tool %s not found", name)
	}
	delete(r.entries, name)
	return nil
}

func (r *InMemoryRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[name]
	if !exists || !entry.enabled {
		return nil, false
	}
	return entry.tool, true
}

func (r *InMemoryRegistry) LoadOnDemand(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[name]
	if !exists {
		return nil, false
	}
	entry.enabled = true
	return entry.tool, true
}

func (r *InMemoryRegistry) Metadata(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[name]
	if !exists {
		return Metadata{}, false
	}
	return entry.meta, true
}

func (r *InMemoryRegistry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.entries))
	for _, entry := range r.entries {
		if !entry.enabled {
			continue
		}
		defs = append(defs, Definition{
			Name:        entry.tool.Name(),
			Description: entry.tool.Description(),
			Parameters:  entry.tool.Schema(),
		})
	}
	return defs
}

func (r *InMemoryRegistry) ExecutionSet() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.entries))
	for _, entry := range r.entries {
		tools = append(tools, entry.tool)
	}
	return tools
}

func (r *InMemoryRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[name]
	return exists && entry.enabled
}

func (r *InMemoryRegistry) HasDiscovered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.entries[name]
	return exists
}

// ExecutionContext names where a tool call physically runs.
type ExecutionContext int

const (
	ExecContextGateway ExecutionContext = iota
	ExecContextSandbox
	ExecContextRemote
)

func (c ExecutionContext) String() string {
	switch c {
	case ExecContextGateway:
		return "gateway"
	case ExecContextSandbox:
		return "sandbox"
	case ExecContextRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Executor runs a resolved Tool, optionally in a sandbox or remote context.
type Executor interface {
	Execute(ctx context.Context, tool Tool, args map[string]interface{}) (*Result, error)
	SetContext(execCtx ExecutionContext)
}

// Policy is the planner-visibility filter: allow/deny lists plus ask-mode.
// It does not gate execution — that's the HITL gate's job against Metadata.
type Policy struct {
	Profile     string
	AllowList   []string
	DenyList    []string
	AskMode     bool
	MaxExecTime int
}

// IsAllowed checks toolName against deny/allow lists.
func (p *Policy) IsAllowed(toolName string) bool {
	for _, denied := range p.DenyList {
		if denied == toolName {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if allowed == toolName {
			return true
		}
	}
	return false
}

// NeedsConfirmation reports whether kind requires HITL confirmation under
// this policy's ask-mode, before any rule-set match is even considered.
func (p *Policy) NeedsConfirmation(kind Kind) bool {
	if !p.AskMode {
		return false
	}
	if SafeKinds[kind] {
		return false
	}
	return MutatorKinds[kind]
}

// PolicyEnforcer narrows a Registry's List() to what a given Policy allows.
type PolicyEnforcer struct {
	policy   *Policy
	registry Registry
}

// NewPolicyEnforcer binds a Policy to a Registry.
func NewPolicyEnforcer(policy *Policy, registry Registry) *PolicyEnforcer {
	return &PolicyEnforcer{policy: policy, registry: registry}
}

// FilteredList returns only the Definitions the policy allows.
func (e *PolicyEnforcer) FilteredList() []Definition {
	all := e.registry.List()
	filtered := make([]Definition, 0, len(all))
	for _, def := range all {
		if e.policy.IsAllowed(def.Name) {
			filtered = append(filtered, def)
		}
	}
	return filtered
}

// CanExecute checks toolName against the policy's lists.
func (e *PolicyEnforcer) CanExecute(toolName string) bool {
	return e.policy.IsAllowed(toolName)
}

// NeedsApproval reports whether the bound policy runs in ask-mode.
func (e *PolicyEnforcer) NeedsApproval() bool {
	return e.policy.AskMode
}

// MarshalJSON serializes a Result for logging/transport.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"output":   r.Output,
		"display":  r.Display,
		"success":  r.Success,
		"metadata": r.Metadata,
		"error":    r.Error,
	})
}
