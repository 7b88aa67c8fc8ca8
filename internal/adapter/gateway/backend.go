package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/palisade-sh/palisade/internal/config"
	"github.com/palisade-sh/palisade/internal/core/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPBackendClient forwards allowed prompts to the upstream LLM service.
type HTTPBackendClient struct {
	client  *http.Client
	baseURL string
}

func NewHTTPBackendClient(cfg config.BackendConfig) *HTTPBackendClient {
	return &HTTPBackendClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.URL,
	}
}

type backendChatRequest struct {
	Message string `json:"message"`
}

type backendChatResponse struct {
	Reply string `json:"reply"`
}

// Chat posts the message to the backend chat endpoint and returns its reply.
func (c *HTTPBackendClient) Chat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(backendChatRequest{Message: message})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &domain.BackendError{Err: err, BackendURL: c.baseURL}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.BackendError{Err: err, BackendURL: c.baseURL}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &domain.BackendError{
			Err:        fmt.Errorf("unexpected status"),
			BackendURL: c.baseURL,
			StatusCode: resp.StatusCode,
		}
	}

	var out backendChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.BackendError{Err: err, BackendURL: c.baseURL}
	}
	return out.Reply, nil
}
