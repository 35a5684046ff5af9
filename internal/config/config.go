package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"busrisk/internal/errors"
)

// ConfigDir is the project-relative directory holding config.json
const ConfigDir = ".busrisk"

// EnvPrefix prefixes environment overrides, e.g. BUSRISK_ANALYSIS_WORKERS
const EnvPrefix = "BUSRISK"

// Config represents the complete busrisk configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Risk      RiskConfig      `json:"risk" mapstructure:"risk"`
	Knowledge KnowledgeConfig `json:"knowledge" mapstructure:"knowledge"`
	Analysis  AnalysisConfig  `json:"analysis" mapstructure:"analysis"`
	Git       GitConfig       `json:"git" mapstructure:"git"`
	Output    OutputConfig    `json:"output" mapstructure:"output"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
}

// RiskConfig contains the inputs of the risk oracle
type RiskConfig struct {
	DefaultRisk float64 `json:"defaultRisk" mapstructure:"defaultRisk"`
	// Threshold is nil when the default (defaultRisk cubed) applies
	Threshold    *float64 `json:"threshold,omitempty" mapstructure:"threshold"`
	DepartedFile string   `json:"departedFile,omitempty" mapstructure:"departedFile"`
	RiskFile     string   `json:"riskFile,omitempty" mapstructure:"riskFile"`
	TeamFile     string   `json:"teamFile,omitempty" mapstructure:"teamFile"`
}

// KnowledgeConfig contains knowledge ledger settings
type KnowledgeConfig struct {
	CreationConstant float64 `json:"creationConstant" mapstructure:"creationConstant"`
}

// AnalysisConfig contains file selection and concurrency settings
type AnalysisConfig struct {
	Workers        int      `json:"workers" mapstructure:"workers"`
	Interesting    []string `json:"interesting" mapstructure:"interesting"`
	NotInteresting []string `json:"notInteresting" mapstructure:"notInteresting"`
	CaseSensitive  bool     `json:"caseSensitive" mapstructure:"caseSensitive"`
}

// GitConfig contains git invocation settings
type GitConfig struct {
	Executable string `json:"executable" mapstructure:"executable"`
	TimeoutMs  int    `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// OutputConfig contains report settings
type OutputConfig struct {
	Dir      string `json:"dir" mapstructure:"dir"`
	Compress bool   `json:"compress" mapstructure:"compress"`
	Format   string `json:"format" mapstructure:"format"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultInteresting matches the source files analysed when nothing is configured
var DefaultInteresting = []string{
	`\.(c|cc|cpp|cxx|h|hpp|hxx|cs|go|java|kt|kts|scala|groovy|clj|js|jsx|ts|tsx|py|rb|php|pl|pm|sh|bash|lua|rs|swift|m|mm|sql|hs|erl|ex|exs|ml|mli|r|dart|vue|el)$`,
	`(^|/)(Makefile|Dockerfile|CMakeLists\.txt|Rakefile|Gemfile)$`,
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		RepoRoot: ".",
		Risk: RiskConfig{
			DefaultRisk: 0.1,
		},
		Knowledge: KnowledgeConfig{
			CreationConstant: 0.1,
		},
		Analysis: AnalysisConfig{
			Workers:        3,
			Interesting:    append([]string{}, DefaultInteresting...),
			NotInteresting: []string{},
		},
		Git: GitConfig{
			Executable: "git",
			TimeoutMs:  30000,
		},
		Output: OutputConfig{
			Dir:    "output",
			Format: "json",
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// LoadConfig loads configuration from .busrisk/config.json under repoRoot.
// Missing files yield the defaults; BUSRISK_* environment variables override
// both.
func LoadConfig(repoRoot string) (*Config, error) {
	v := viper.New()

	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(repoRoot, ConfigDir))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// threshold has no default, so AutomaticEnv would never see it
	if err := v.BindEnv("risk.threshold"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.New(errors.ConfigInvalid, "unreadable config file", err).WithDetails(map[string]interface{}{
				"path": filepath.Join(repoRoot, ConfigDir, "config.json"),
			})
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "config does not match schema", err)
	}
	if cfg.RepoRoot == "." {
		cfg.RepoRoot = repoRoot
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("repoRoot", d.RepoRoot)
	v.SetDefault("risk.defaultRisk", d.Risk.DefaultRisk)
	v.SetDefault("risk.departedFile", d.Risk.DepartedFile)
	v.SetDefault("risk.riskFile", d.Risk.RiskFile)
	v.SetDefault("risk.teamFile", d.Risk.TeamFile)
	v.SetDefault("knowledge.creationConstant", d.Knowledge.CreationConstant)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.interesting", d.Analysis.Interesting)
	v.SetDefault("analysis.notInteresting", d.Analysis.NotInteresting)
	v.SetDefault("analysis.caseSensitive", d.Analysis.CaseSensitive)
	v.SetDefault("git.executable", d.Git.Executable)
	v.SetDefault("git.timeoutMs", d.Git.TimeoutMs)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.compress", d.Output.Compress)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// Save writes the configuration to .busrisk/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ConfigDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !isProbability(c.Risk.DefaultRisk) {
		return invalid("risk.defaultRisk", fmt.Sprintf("%v is not a probability", c.Risk.DefaultRisk))
	}
	if c.Risk.Threshold != nil && (math.IsNaN(*c.Risk.Threshold) || *c.Risk.Threshold < 0) {
		return invalid("risk.threshold", "must not be negative")
	}
	if !isProbability(c.Knowledge.CreationConstant) {
		return invalid("knowledge.creationConstant", fmt.Sprintf("%v outside [0,1]", c.Knowledge.CreationConstant))
	}
	if c.Analysis.Workers < 1 {
		return invalid("analysis.workers", "at least one worker is required")
	}
	for _, field := range []struct {
		name     string
		patterns []string
	}{
		{"analysis.interesting", c.Analysis.Interesting},
		{"analysis.notInteresting", c.Analysis.NotInteresting},
	} {
		for _, p := range field.patterns {
			if _, err := regexp.Compile(p); err != nil {
				return invalid(field.name, fmt.Sprintf("bad pattern %q: %v", p, err))
			}
		}
	}
	if c.Git.TimeoutMs <= 0 {
		return invalid("git.timeoutMs", "must be positive")
	}
	switch c.Output.Format {
	case "json", "yaml":
	default:
		return invalid("output.format", fmt.Sprintf("unknown format %q", c.Output.Format))
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

func invalid(field, message string) error {
	return errors.New(errors.ConfigInvalid, "invalid configuration", &ConfigError{Field: field, Message: message}).WithDetails(map[string]interface{}{
		"field": field,
	})
}

func isProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
