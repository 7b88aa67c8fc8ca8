package detector

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// heuristicRules is the on-disk rule file shape.
type heuristicRules struct {
	Patterns []string `yaml:"patterns"`
	Denylist []string `yaml:"denylist"`
}

// HeuristicScanner applies the deterministic regex and denylist rules.
// A pattern hit wins over a denylist hit; the first match short-circuits.
type HeuristicScanner struct {
	patterns []*regexp.Regexp
	denylist []string
	logger   *slog.Logger
}

// NewHeuristicScanner loads the rule file. A missing or malformed file
// yields an empty scanner rather than an error so the pipeline can start
// without rules.
func NewHeuristicScanner(fs afero.Fs, rulesPath string, logger *slog.Logger) *HeuristicScanner {
	s := &HeuristicScanner{logger: logger}

	data, err := afero.ReadFile(fs, rulesPath)
	if err != nil {
		logger.Warn("heuristic rules not loaded", "path", rulesPath, "error", err)
		return s
	}

	var rules heuristicRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		logger.Warn("heuristic rules malformed", "path", rulesPath, "error", err)
		return s
	}

	for _, pat := range rules.Patterns {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			logger.Warn("skipping invalid heuristic pattern", "pattern", pat, "error", err)
			continue
		}
		s.patterns = append(s.patterns, re)
	}
	for _, needle := range rules.Denylist {
		s.denylist = append(s.denylist, strings.ToLower(needle))
	}

	logger.Info("heuristic rules loaded",
		"path", rulesPath, "patterns", len(s.patterns), "denylist", len(s.denylist))
	return s
}

// RuleCount returns the number of active rules.
func (s *HeuristicScanner) RuleCount() int {
	return len(s.patterns) + len(s.denylist)
}

// Scan checks text against the rule set.
func (s *HeuristicScanner) Scan(ctx context.Context, text string) (domain.HeuristicResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.HeuristicResult{}, err
	}
	start := time.Now()

	for _, re := range s.patterns {
		if re.MatchString(text) {
			return domain.HeuristicResult{
				Blocked:   true,
				Flags:     []string{fmt.Sprintf("pattern_match: %s", re.String())},
				Reason:    fmt.Sprintf("Pattern match: %s", re.String()),
				Score:     1.0,
				LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
			}, nil
		}
	}

	lower := strings.ToLower(text)
	for _, needle := range s.denylist {
		if strings.Contains(lower, needle) {
			return domain.HeuristicResult{
				Blocked:   true,
				Flags:     []string{fmt.Sprintf("denylist_match: %s", needle)},
				Reason:    fmt.Sprintf("Contains denylisted token: %s", needle),
				Score:     1.0,
				LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
			}, nil
		}
	}

	return domain.HeuristicResult{
		Score:     0.0,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}
