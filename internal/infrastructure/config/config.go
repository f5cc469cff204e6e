package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration for one core process.
// Every field corresponds to a configuration key recognized by the core
// (see SPEC_FULL.md §6's configuration table).
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Loop       LoopConfig       `mapstructure:"loop"`
	Tokens     TokenConfig      `mapstructure:"tokens"`
	Compaction CompactionConfig `mapstructure:"compaction"`
	Security   SecurityConfig   `mapstructure:"security"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Skills     SkillsConfig     `mapstructure:"skills"`
	Workspace  string           `mapstructure:"workspace"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

// LLMConfig points the core's single OpenAI-compatible ChatModel adapter
// at a concrete backend (OpenAI, Bailian/Qwen, DeepSeek, Ollama, vLLM, ...).
type LLMConfig struct {
	Name    string        `mapstructure:"name"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoopConfig bounds planner iterations.
type LoopConfig struct {
	MaxLoops            int           `mapstructure:"max_loops"`
	MaxSubagentLoops    int           `mapstructure:"max_subagent_loops"`
	MaxMessageHistory   int           `mapstructure:"max_message_history"`
	ToolTimeoutDefault  time.Duration `mapstructure:"tool_timeout_default"`
	LLMTimeout          time.Duration `mapstructure:"llm_timeout"`
	TurnWallClock       time.Duration `mapstructure:"turn_wall_clock"`
	SubagentMinSummary  int           `mapstructure:"subagent_min_summary_chars"`
}

// TokenConfig configures the token tracker's status bands.
type TokenConfig struct {
	InfoThreshold     float64 `mapstructure:"info_threshold"`
	WarningThreshold  float64 `mapstructure:"warning_threshold"`
	CriticalThreshold float64 `mapstructure:"critical_threshold"`
}

// CompactionConfig configures the context compressor.
type CompactionConfig struct {
	KeepRecentMessages   int     `mapstructure:"keep_recent_messages"`
	CompactMiddleMessages int    `mapstructure:"compact_middle_messages"`
	MaxOutputTokens      int     `mapstructure:"max_output_tokens"`
	EmergencyTruncateKeep int    `mapstructure:"emergency_truncate_keep"`
	SummarizeRatioCutoff float64 `mapstructure:"summarize_ratio_cutoff"`
	CompactStreakCutoff  int     `mapstructure:"compact_streak_cutoff"`
}

// SecurityConfig configures the HITL approval gate.
type SecurityConfig struct {
	RuleFile        string        `mapstructure:"rule_file"`
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
}

// ToolsConfig holds the tool-registry settings read from the config file.
// No code in this module reads them; registered tools take their Metadata
// from defaultMetadata in the tool package.
type ToolsConfig struct {
	BuiltinDir string          `mapstructure:"builtin_dir"`
	Registry   []ToolRegConfig `mapstructure:"registry"`
}

// ToolRegConfig is one tool entry in the config file. It is loaded but not
// applied to the registry.
type ToolRegConfig struct {
	Name            string        `mapstructure:"name"`
	Category        string        `mapstructure:"category"`
	Tags            []string      `mapstructure:"tags"`
	RiskLevel       string        `mapstructure:"risk_level"`
	Enabled         bool          `mapstructure:"enabled"`
	AlwaysAvailable bool          `mapstructure:"always_available"`
	ConcurrencySafe bool          `mapstructure:"concurrency_safe"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// CheckpointConfig selects the checkpointer backend.
type CheckpointConfig struct {
	Driver string `mapstructure:"driver"` // memory | sqlite | postgres
	DSN    string `mapstructure:"dsn"`
}

// SkillsConfig points at the on-disk skill catalog.
type SkillsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load resolves configuration with the same layering the wider example
// family uses: defaults → global file → project-local file → environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".agentcore")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("AGENTCORE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("llm.name", "default")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.timeout", "120s")

	v.SetDefault("loop.max_loops", 100)
	v.SetDefault("loop.max_subagent_loops", 15)
	v.SetDefault("loop.max_message_history", 40)
	v.SetDefault("loop.tool_timeout_default", "30s")
	v.SetDefault("loop.llm_timeout", "120s")
	v.SetDefault("loop.turn_wall_clock", "5m")
	v.SetDefault("loop.subagent_min_summary_chars", 200)

	v.SetDefault("tokens.info_threshold", 0.75)
	v.SetDefault("tokens.warning_threshold", 0.85)
	v.SetDefault("tokens.critical_threshold", 0.95)

	v.SetDefault("compaction.keep_recent_messages", 10)
	v.SetDefault("compaction.compact_middle_messages", 30)
	v.SetDefault("compaction.max_output_tokens", 1440)
	v.SetDefault("compaction.emergency_truncate_keep", 150)
	v.SetDefault("compaction.summarize_ratio_cutoff", 0.40)
	v.SetDefault("compaction.compact_streak_cutoff", 3)

	v.SetDefault("security.rule_file", filepath.Join(os.Getenv("HOME"), ".agentcore", "hitl_rules.yaml"))
	v.SetDefault("security.approval_timeout", "5m")

	v.SetDefault("tools.builtin_dir", "./tools")
	v.SetDefault("skills.dir", "./skills")

	v.SetDefault("checkpoint.driver", "memory")
}

// Validate checks the configuration-table ranges from SPEC_FULL.md §6.
func (c *Config) Validate() error {
	if c.Loop.MaxMessageHistory < 10 || c.Loop.MaxMessageHistory > 100 {
		return fmt.Errorf("max_message_history must be in [10, 100], got %d", c.Loop.MaxMessageHistory)
	}
	for name, v := range map[string]float64{
		"info_threshold":     c.Tokens.InfoThreshold,
		"warning_threshold":  c.Tokens.WarningThreshold,
		"critical_threshold": c.Tokens.CriticalThreshold,
	} {
		if v < 0.5 || v > 0.95 {
			return fmt.Errorf("%s must be in [0.5, 0.95], got %f", name, v)
		}
	}
	if !(c.Tokens.InfoThreshold < c.Tokens.WarningThreshold && c.Tokens.WarningThreshold < c.Tokens.CriticalThreshold) {
		return fmt.Errorf("token thresholds must be strictly increasing: info < warning < critical")
	}
	return nil
}
