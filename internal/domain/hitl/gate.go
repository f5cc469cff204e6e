package hitl

import (
	"path/filepath"
	"regexp"
)

// Decision is the resolved outcome for one tool call against the rule set.
type Decision string

const (
	DecisionAutoAllow       Decision = "auto_allow"
	DecisionRequireApproval Decision = "require_approval"
	DecisionAlwaysDeny      Decision = "always_deny"
)

// RulesSource supplies the live rule set, satisfied by *RuleWatcher.
type RulesSource interface {
	Rules() RuleSet
}

// Gate evaluates tool calls against a RulesSource. Unlike the teacher's
// SecurityHook, it never blocks in-process: it reports a Decision and lets
// the caller construct an Interrupt for the require_approval case,
// matching spec.md §9's cooperative-suspension design.
type Gate struct {
	rules RulesSource
}

// NewGate binds a RulesSource to a Gate.
func NewGate(rules RulesSource) *Gate {
	return &Gate{rules: rules}
}

// Interrupt is the suspension payload handed back to the host harness when
// a tool call requires approval. The harness resumes with a Resolution.
type Interrupt struct {
	Kind      string // "approval" or "ask_human" (spec.md §6 interrupt payloads)
	ToolName  string
	Arguments map[string]interface{}
	RiskLevel string
	Reason    string
	CallID    string // the tool-call this interrupt suspended, for Resume routing
}

// Resolution is the host harness's decision on a resumed Interrupt.
type Resolution struct {
	Approved bool
	Reason   string
}

// Evaluate matches toolName/args against the current rule set in order and
// returns the first matching rule's decision. No match defaults to
// auto_allow — an empty rule file (or approval_mode: auto) allows
// everything.
func (g *Gate) Evaluate(toolName string, args map[string]interface{}) (Decision, *Rule) {
	if g.rules == nil {
		return DecisionAutoAllow, nil
	}
	for _, rule := range g.rules.Rules().Rules {
		if matched := matchRule(rule, toolName, args); matched {
			return Decision(rule.Decision), &rule
		}
	}
	return DecisionAutoAllow, nil
}

func matchRule(rule Rule, toolName string, args map[string]interface{}) bool {
	if !globMatch(rule.ToolPattern, toolName) {
		return false
	}
	if rule.ArgPattern == "" {
		return true
	}
	val, ok := args[rule.ArgKey]
	if !ok {
		return false
	}
	str, ok := val.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(rule.ArgPattern)
	if err != nil {
		return false
	}
	return re.MatchString(str)
}

func globMatch(pattern, name string) bool {
	if pattern == "" {
		return false
	}
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return pattern == name
	}
	return matched
}

// BuildInterrupt constructs the Interrupt payload for a require_approval
// decision, describing the tool, arguments, and risk to the host harness.
func BuildInterrupt(toolName string, args map[string]interface{}, rule *Rule) Interrupt {
	risk := "medium"
	if rule != nil && rule.RiskLevel != "" {
		risk = rule.RiskLevel
	}
	return Interrupt{
		Kind:      "approval",
		ToolName:  toolName,
		Arguments: args,
		RiskLevel: risk,
		Reason:    "matched HITL rule requiring approval",
	}
}
