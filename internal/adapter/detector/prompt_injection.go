package detector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/palisade-sh/palisade/internal/core/domain"
	"github.com/palisade-sh/palisade/internal/core/ports"
)

// Prompt-injection model names accepted by the registry.
const (
	ModelCustomONNX   = "custom_onnx"
	ModelDeberta      = "deberta"
	ModelLlamaGuard86 = "llama_guard_86m"
	ModelLlamaGuard22 = "llama_guard_22m"
)

// Upstream identifiers for the hosted transformer models.
const (
	hfDeberta      = "protectai/deberta-v3-base-prompt-injection-v2"
	hfLlamaGuard86 = "meta-llama/Llama-Prompt-Guard-2-86M"
	hfLlamaGuard22 = "meta-llama/Llama-Prompt-Guard-2-22M"
)

var injectionKeywords = []string{
	"ignore previous",
	"ignore all previous",
	"forget instructions",
	"disregard instructions",
	"system prompt",
	"override",
	"new instructions",
	"disregard",
	"pretend you are",
	"act as if",
	"you are now",
	"new role",
	"roleplay",
	"forget everything",
	"ignore everything",
	"jailbreak",
	"dan mode",
	"developer mode",
}

// keywordScore is the degraded-mode scorer used when the model path is
// unavailable. One hit reads as suspicious, two as likely, more saturates
// toward 0.9.
func keywordScore(text string) float64 {
	lower := strings.ToLower(text)
	matches := 0
	for _, kw := range injectionKeywords {
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
		return math.Min(0.9, 0.3+float64(matches-1)*0.2)
	}
}

// formatWithContext conditions the prompt on the request metadata before
// embedding. The field order is part of the embedding model's contract.
func formatWithContext(text string, reqCtx domain.RequestContext) string {
	c := reqCtx.Normalized()
	return fmt.Sprintf(
		"text: %s || UserID: %s || Temperature: %v || Tokens: %d || Turn_Count: %d || Rate_Limit: %d || Device: %s || Endpoint: %s",
		text, c.UserID, c.Temperature, c.MaxTokens, c.TurnCount, c.RateLimitRemaining, c.Device, c.Endpoint,
	)
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, 0.0), 1.0)
}

// customONNXDetector embeds the context-conditioned prompt and scores it
// with the hosted binary classification head.
type customONNXDetector struct {
	embedder  ports.EmbeddingClient
	inference *inferenceClient
	logger    *slog.Logger
}

func (d *customONNXDetector) Kind() ports.DetectorKind { return ports.DetectorPromptInjection }
func (d *customONNXDetector) Model() string            { return ModelCustomONNX }

func (d *customONNXDetector) Score(ctx context.Context, text string, reqCtx domain.RequestContext) (float64, error) {
	formatted := formatWithContext(text, reqCtx)

	embedding, err := d.embedder.Embed(ctx, formatted)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		d.logger.Warn("embedding failed, using keyword fallback", "error", err)
		return keywordScore(text), nil
	}

	logits, err := d.inference.scoreEmbedding(ctx, embedding)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		d.logger.Warn("scoring failed, using keyword fallback", "error", err)
		return keywordScore(text), nil
	}

	probs := softmax(logits)
	// Index 1 is the malign class; a single-output head degenerates to
	// index 0.
	if len(probs) >= 2 {
		return clampUnit(probs[1]), nil
	}
	return clampUnit(probs[0]), nil
}

// debertaDetector scores via the DeBERTa injection classifier. INJECTION
// confidence passes through as-is, SAFE confidence inverts.
type debertaDetector struct {
	inference *inferenceClient
	logger    *slog.Logger
}

func (d *debertaDetector) Kind() ports.DetectorKind { return ports.DetectorPromptInjection }
func (d *debertaDetector) Model() string            { return ModelDeberta }

func (d *debertaDetector) Score(ctx context.Context, text string, _ domain.RequestContext) (float64, error) {
	results, err := d.inference.classify(ctx, hfDeberta, text)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		d.logger.Warn("deberta inference failed, using keyword fallback", "error", err)
		return keywordScore(text), nil
	}

	for _, r := range results {
		label := strings.ToUpper(r.Label)
		if strings.Contains(label, "INJECTION") {
			return clampUnit(r.Score), nil
		}
		if strings.Contains(label, "SAFE") {
			return clampUnit(1.0 - r.Score), nil
		}
	}
	if len(results) > 0 {
		return clampUnit(results[0].Score), nil
	}
	return keywordScore(text), nil
}

// llamaGuardDetector scores via a Llama Prompt Guard 2 variant. Injection
// and jailbreak labels both scale into the 0.7 to 1.0 band.
type llamaGuardDetector struct {
	inference *inferenceClient
	model     string
	hfModel   string
	logger    *slog.Logger
}

func (d *llamaGuardDetector) Kind() ports.DetectorKind { return ports.DetectorPromptInjection }
func (d *llamaGuardDetector) Model() string            { return d.model }

func (d *llamaGuardDetector) Score(ctx context.Context, text string, _ domain.RequestContext) (float64, error) {
	results, err := d.inference.classify(ctx, d.hfModel, text)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		d.logger.Warn("llama guard inference failed, using keyword fallback",
			"model", d.hfModel, "error", err)
		return keywordScore(text), nil
	}
	if len(results) == 0 {
		return 0.0, nil
	}
	return mapGuardLabel(results[0].Label, results[0].Score), nil
}

func mapGuardLabel(label string, confidence float64) float64 {
	switch strings.ToUpper(label) {
	case "LABEL_0", "BENIGN":
		return clampUnit(1.0 - confidence)
	case "LABEL_1", "INJECTION", "LABEL_2", "JAILBREAK":
		return clampUnit(0.7 + confidence*0.3)
	default:
		return clampUnit(confidence)
	}
}
