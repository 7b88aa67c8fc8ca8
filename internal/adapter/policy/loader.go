package policy

import (
	"log/slog"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Rule is one policy rule. Conditions are expressions over the detector
// scores and the preprocessing features.
type Rule struct {
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
	Action    string `yaml:"action"`
	Reason    string `yaml:"reason"`
}

// RuleSet is the loaded policy document.
type RuleSet struct {
	Rules         []Rule `yaml:"rules"`
	DefaultAction string `yaml:"default_action"`
}

// Loader reads the policy file once, on first use. A missing or broken
// file falls back to the built-in baseline rules.
type Loader struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger

	once sync.Once
	set  *RuleSet
}

func NewLoader(fs afero.Fs, path string, logger *slog.Logger) *Loader {
	return &Loader{fs: fs, path: path, logger: logger}
}

// Load returns the rule set, reading the file on the first call.
func (l *Loader) Load() *RuleSet {
	l.once.Do(func() {
		data, err := afero.ReadFile(l.fs, l.path)
		if err != nil {
			l.logger.Warn("policy file not readable, using baseline rules", "path", l.path, "error", err)
			l.set = defaultRuleSet()
			return
		}
		var set RuleSet
		if err := yaml.Unmarshal(data, &set); err != nil || len(set.Rules) == 0 {
			l.logger.Warn("policy file empty or malformed, using baseline rules", "path", l.path, "error", err)
			l.set = defaultRuleSet()
			return
		}
		if set.DefaultAction == "" {
			set.DefaultAction = "allow"
		}
		l.set = &set
		l.logger.Info("policy rules loaded", "path", l.path, "rules", len(set.Rules))
	})
	return l.set
}

// defaultRuleSet is the baseline policy applied when no file is present.
func defaultRuleSet() *RuleSet {
	return &RuleSet{
		Rules: []Rule{
			{
				Name:      "heuristic_block",
				Condition: "heuristic_blocked == true",
				Action:    "block",
				Reason:    "Heuristic detection blocked",
			},
			{
				Name:      "pii_threshold",
				Condition: "pii_score > 0.8",
				Action:    "block",
				Reason:    "High PII score detected",
			},
			{
				Name:      "toxicity_threshold",
				Condition: "toxicity_score > 0.7",
				Action:    "block",
				Reason:    "High toxicity score detected",
			},
			{
				Name:      "prompt_injection_threshold",
				Condition: "prompt_injection_score > 0.8",
				Action:    "block",
				Reason:    "Prompt injection detected",
			},
			{
				Name:      "max_length",
				Condition: "features.length > 4000",
				Action:    "block",
				Reason:    "Prompt too long",
			},
		},
		DefaultAction: "allow",
	}
}
