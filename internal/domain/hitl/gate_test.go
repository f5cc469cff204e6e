package hitl

import "testing"

type staticRules struct{ rs RuleSet }

func (s staticRules) Rules() RuleSet { return s.rs }

func TestGate_NoRulesAutoAllows(t *testing.T) {
	g := NewGate(staticRules{RuleSet{}})
	decision, rule := g.Evaluate("write_file", map[string]interface{}{"path": "/tmp/x"})
	if decision != DecisionAutoAllow || rule != nil {
		t.Fatalf("expected auto_allow with no matching rule, got %s", decision)
	}
}

func TestGate_ToolPatternGlobMatch(t *testing.T) {
	rules := staticRules{RuleSet{Rules: []Rule{
		{ToolPattern: "write_*", RiskLevel: "high", Decision: "require_approval"},
	}}}
	g := NewGate(rules)

	decision, rule := g.Evaluate("write_file", nil)
	if decision != DecisionRequireApproval || rule == nil {
		t.Fatalf("expected require_approval for write_file, got %s", decision)
	}

	decision, _ = g.Evaluate("read_file", nil)
	if decision != DecisionAutoAllow {
		t.Fatalf("expected read_file not to match write_* pattern, got %s", decision)
	}
}

func TestGate_ArgPatternMatch(t *testing.T) {
	rules := staticRules{RuleSet{Rules: []Rule{
		{ToolPattern: "shell_exec", ArgKey: "command", ArgPattern: `rm\s+-rf`, Decision: "always_deny"},
	}}}
	g := NewGate(rules)

	decision, _ := g.Evaluate("shell_exec", map[string]interface{}{"command": "rm -rf /"})
	if decision != DecisionAlwaysDeny {
		t.Fatalf("expected always_deny for rm -rf command, got %s", decision)
	}

	decision, _ = g.Evaluate("shell_exec", map[string]interface{}{"command": "ls -la"})
	if decision != DecisionAutoAllow {
		t.Fatalf("expected ls command not to match, got %s", decision)
	}
}

func TestGate_BuildInterruptDefaultsRisk(t *testing.T) {
	interrupt := BuildInterrupt("write_file", map[string]interface{}{"path": "/etc/passwd"}, nil)
	if interrupt.RiskLevel != "medium" {
		t.Fatalf("expected default risk medium, got %s", interrupt.RiskLevel)
	}

	rule := &Rule{RiskLevel: "critical"}
	interrupt = BuildInterrupt("write_file", nil, rule)
	if interrupt.RiskLevel != "critical" {
		t.Fatalf("expected rule risk level to propagate, got %s", interrupt.RiskLevel)
	}
}
