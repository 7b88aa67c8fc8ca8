package detector

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// PII model names accepted by the registry.
const (
	ModelPresidio = "presidio"
	ModelPIIONNX  = "onnx"
	ModelPIIRegex = "regex"
	ModelPIIMock  = "mock"
)

var (
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	cardPattern  = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
)

// regexPIIScore weighs the strongest pattern hit. SSNs dominate, then card
// numbers, emails and phone numbers.
func regexPIIScore(text string) float64 {
	score := 0.0
	if ssnPattern.MatchString(text) {
		score = max(score, 0.9)
	}
	if cardPattern.MatchString(text) {
		score = max(score, 0.8)
	}
	if emailPattern.MatchString(text) {
		score = max(score, 0.7)
	}
	if phonePattern.MatchString(text) {
		score = max(score, 0.6)
	}
	return score
}

// entityWeight grades an analyzer entity type by sensitivity.
func entityWeight(entityType string) float64 {
	switch entityType {
	case "US_SSN", "CREDIT_CARD":
		return 0.9
	case "EMAIL_ADDRESS":
		return 0.7
	case "PHONE_NUMBER":
		return 0.6
	case "PERSON", "LOCATION", "DATE_TIME":
		return 0.5
	default:
		return 0.4
	}
}

// presidioDetector scores PII via the analyzer service, degrading to the
// regex patterns when the service is unreachable.
type presidioDetector struct {
	analyzer *analyzerClient
	logger   *slog.Logger
}

func (d *presidioDetector) Kind() ports.DetectorKind { return ports.DetectorPII }
func (d *presidioDetector) Model() string            { return ModelPresidio }

func (d *presidioDetector) Score(ctx context.Context, text string, _ domain.RequestContext) (float64, error) {
	entities, err := d.analyzer.analyze(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		d.logger.Warn("analyzer unavailable, using regex fallback", "error", err)
		return regexPIIScore(text), nil
	}
	if len(entities) == 0 {
		return 0.0, nil
	}

	score := 0.0
	for _, e := range entities {
		score = max(score, entityWeight(e.EntityType))
	}
	return clampUnit(score), nil
}

// onnxPIIDetector is the ONNX classifier slot. Until a model file is
// wired in it scores with the shared regex patterns.
type onnxPIIDetector struct{}

func (d *onnxPIIDetector) Kind() ports.DetectorKind { return ports.DetectorPII }
func (d *onnxPIIDetector) Model() string            { return ModelPIIONNX }

func (d *onnxPIIDetector) Score(_ context.Context, text string, _ domain.RequestContext) (float64, error) {
	return regexPIIScore(text), nil
}

// regexPIIDetector is the pure-pattern variant, selectable directly.
type regexPIIDetector struct{}

func (d *regexPIIDetector) Kind() ports.DetectorKind { return ports.DetectorPII }
func (d *regexPIIDetector) Model() string            { return ModelPIIRegex }

func (d *regexPIIDetector) Score(_ context.Context, text string, _ domain.RequestContext) (float64, error) {
	return regexPIIScore(text), nil
}

// mockPIIDetector always scores zero; used to switch the concern off.
type mockPIIDetector struct{}

func (d *mockPIIDetector) Kind() ports.DetectorKind { return ports.DetectorPII }
func (d *mockPIIDetector) Model() string            { return ModelPIIMock }

func (d *mockPIIDetector) Score(context.Context, string, domain.RequestContext) (float64, error) {
	return 0.0, nil
}
