package hitl

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuleSet is the parsed HITL rule file (SPEC_FULL.md §2 domain-stack table).
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Rule mirrors the rule fields in spec.md §4.6.
type Rule struct {
	ToolPattern  string `yaml:"tool_pattern"`
	ArgPattern   string `yaml:"arg_pattern,omitempty"`
	ArgKey       string `yaml:"arg_key,omitempty"`
	RiskLevel    string `yaml:"risk_level"`
	Decision     string `yaml:"decision"` // auto_allow | require_approval | always_deny
}

// RuleWatcher live-reloads a RuleSet from disk whenever the file changes,
// so operators can tighten or relax approval rules without a restart.
type RuleWatcher struct {
	mu      sync.RWMutex
	path    string
	rules   RuleSet
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewRuleWatcher loads the rule file once and starts watching it for writes.
// A missing file is not an error: the gate then has zero rules (auto-allow
// everything), matching an `approval_mode: auto` deployment.
func NewRuleWatcher(path string, logger *zap.Logger) (*RuleWatcher, error) {
	w := &RuleWatcher{
		path:   path,
		logger: logger.With(zap.String("component", "hitl-rule-watcher")),
		stopCh: make(chan struct{}),
	}
	if err := w.reload(); err != nil {
		w.logger.Warn("initial rule load failed, starting with no rules", zap.Error(err))
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return w, err
	}
	w.watcher = fw
	_ = fw.Add(path)
	go w.run()
	return w, nil
}

func (w *RuleWatcher) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := w.reload(); err != nil {
					w.logger.Warn("rule reload failed", zap.Error(err))
				} else {
					w.logger.Info("hitl rules reloaded", zap.String("path", w.path))
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rule watcher error", zap.Error(err))
		}
	}
}

func (w *RuleWatcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return err
	}
	w.mu.Lock()
	w.rules = rs
	w.mu.Unlock()
	return nil
}

// Rules returns the current rule set (thread-safe).
func (w *RuleWatcher) Rules() RuleSet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.rules
}

// Stop releases the underlying filesystem watch.
func (w *RuleWatcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}
