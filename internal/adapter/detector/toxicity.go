package detector

import (
	"context"
	"log/slog"
	"strings"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// Toxicity model names accepted by the registry.
const (
	ModelDetoxify     = "detoxify"
	ModelToxicityONNX = "onnx"
	ModelUnbiased     = "unbiased"
	ModelMultilingual = "multilingual"
)

// toxicityHFModel resolves the short alias to the hosted model.
func toxicityHFModel(alias string) string {
	switch alias {
	case ModelUnbiased:
		return "unitary/unbiased-toxic-roberta"
	case ModelMultilingual:
		return "unitary/multilingual-toxic-xlm-roberta"
	default:
		return "unitary/toxic-bert"
	}
}

var toxicKeywords = []string{
	"hate", "kill", "violence", "attack", "harm",
	"stupid", "idiot", "moron", "damn", "hell",
}

// keywordToxicityScore grades by denylist hits: one hit 0.3, two 0.6,
// then 0.2 per extra hit capped at 0.9.
func keywordToxicityScore(text string) float64 {
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range toxicKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	switch matches {
	case 0:
		return 0.0
	case 1:
		return 0.3
	case 2:
		return 0.6
	default:
		return min(0.9, 0.3+float64(matches-1)*0.2)
	}
}

// onnxToxicityDetector is the ONNX classifier slot. Until a model file
// is wired in it scores with the keyword denylist.
type onnxToxicityDetector struct{}

func (d *onnxToxicityDetector) Kind() ports.DetectorKind { return ports.DetectorToxicity }
func (d *onnxToxicityDetector) Model() string            { return ModelToxicityONNX }

func (d *onnxToxicityDetector) Score(_ context.Context, text string, _ domain.RequestContext) (float64, error) {
	return keywordToxicityScore(text), nil
}

// toxicityDetector scores via the hosted Unitary classifiers. The bert
// variant reports per-category labels, the roberta variants a single
// toxicity label. Unreachable inference degrades to a zero score.
type toxicityDetector struct {
	inference *inferenceClient
	alias     string
	hfModel   string
	logger    *slog.Logger
}

func (d *toxicityDetector) Kind() ports.DetectorKind { return ports.DetectorToxicity }
func (d *toxicityDetector) Model() string            { return d.alias }

func (d *toxicityDetector) Score(ctx context.Context, text string, _ domain.RequestContext) (float64, error) {
	results, err := d.inference.classify(ctx, d.hfModel, text)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		d.logger.Warn("toxicity inference failed, scoring neutral", "model", d.hfModel, "error", err)
		return 0.0, nil
	}

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[strings.ToLower(r.Label)] = r.Score
	}

	if d.alias == ModelUnbiased || d.alias == ModelMultilingual {
		return clampUnit(scores["toxicity"]), nil
	}

	// Severe toxicity is weighted up so it dominates plain toxicity at
	// equal confidence.
	return clampUnit(max(scores["toxic"], scores["severe_toxic"]*1.2)), nil
}
