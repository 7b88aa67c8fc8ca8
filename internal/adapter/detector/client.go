package detector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/palisade-sh/palisade/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EmbeddingHTTPClient talks to an Ollama-compatible embedding endpoint.
// Transient failures are retried with exponential backoff.
type EmbeddingHTTPClient struct {
	client     *http.Client
	baseURL    string
	model      string
	maxRetries int
}

func NewEmbeddingHTTPClient(cfg config.EmbeddingConfig) *EmbeddingHTTPClient {
	return &EmbeddingHTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		baseURL:    cfg.URL,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
	}
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding  []float32   `json:"embedding"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for text.
func (c *EmbeddingHTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	var embedding []float32
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("embedding service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return backoff.Permanent(fmt.Errorf("embedding service returned %d", resp.StatusCode))
		}

		var out embeddingResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(err)
		}
		embedding = out.Embedding
		if len(embedding) == 0 && len(out.Embeddings) > 0 {
			embedding = out.Embeddings[0]
		}
		if len(embedding) == 0 {
			return backoff.Permanent(fmt.Errorf("empty embedding from %s", c.baseURL))
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return embedding, nil
}

// classification is one label with its confidence.
type classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// inferenceClient talks to the text-classification service that hosts the
// transformer detectors and the ONNX scoring head.
type inferenceClient struct {
	client  *http.Client
	baseURL string
}

func newInferenceClient(cfg config.InferenceConfig) *inferenceClient {
	return &inferenceClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.URL,
	}
}

// classify runs the named model over text and returns all label scores.
func (c *inferenceClient) classify(ctx context.Context, model, text string) ([]classification, error) {
	body, err := json.Marshal(map[string]string{"model": model, "text": text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	var out []classification
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// scoreEmbedding feeds an embedding to the hosted ONNX head and returns the
// raw logits.
func (c *inferenceClient) scoreEmbedding(ctx context.Context, embedding []float32) ([]float64, error) {
	body, err := json.Marshal(map[string]any{"embedding": embedding})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	var out struct {
		Logits []float64 `json:"logits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Logits) == 0 {
		return nil, fmt.Errorf("empty logits from %s", c.baseURL)
	}
	return out.Logits, nil
}

// analyzerEntity is one PII entity found by the analyzer service.
type analyzerEntity struct {
	EntityType string  `json:"entity_type"`
	Score      float64 `json:"score"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

// analyzerClient talks to a Presidio-compatible PII analyzer.
type analyzerClient struct {
	client  *http.Client
	baseURL string
}

func newAnalyzerClient(cfg config.AnalyzerConfig) *analyzerClient {
	return &analyzerClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.URL,
	}
}

func (c *analyzerClient) analyze(ctx context.Context, text string) ([]analyzerEntity, error) {
	body, err := json.Marshal(map[string]string{"text": text, "language": "en"})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("analyzer service returned %d", resp.StatusCode)
	}

	var out []analyzerEntity
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
