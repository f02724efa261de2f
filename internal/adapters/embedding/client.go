package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/longregen/cogito/internal/adapters/circuitbreaker"
	"github.com/longregen/cogito/internal/adapters/retry"
	"github.com/longregen/cogito/internal/ports"
)

const requestTimeout = 30 * time.Second

// Client is an OpenAI-compatible embeddings client. It implements
// ports.EmbeddingService.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	dimensions  int
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
	logger      *slog.Logger
}

func NewClient(baseURL, apiKey, model string, dimensions int, logger *slog.Logger) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1")

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		dimensions:  dimensions,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: retry.HTTPConfig(),
		breaker:     circuitbreaker.New(5, 30*time.Second),
		logger:      logger,
	}
}

type embeddingRequest struct {
	Input any    `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// GenerateEmbedding embeds a single text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) (*ports.EmbeddingResult, error) {
	var result *ports.EmbeddingResult
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		results, err := c.embed(ctx, []string{text})
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no embedding returned")
		}
		result = results[0]
		return nil
	})
	return result, err
}

// GenerateEmbeddings embeds a batch, preserving input order.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([]*ports.EmbeddingResult, error) {
	if len(texts) == 0 {
		return []*ports.EmbeddingResult{}, nil
	}

	var results []*ports.EmbeddingResult
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		var err error
		results, err = c.embed(ctx, texts)
		return err
	})
	return results, err
}

func (c *Client) Dimensions() int {
	return c.dimensions
}

func (c *Client) embed(ctx context.Context, texts []string) ([]*ports.EmbeddingResult, error) {
	req := embeddingRequest{Model: c.model}
	if len(texts) == 1 {
		req.Input = texts[0]
	} else {
		req.Input = texts
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var respBody []byte
	err = retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("embedding request failed", "url", c.baseURL, "error", err)
			return 0, fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("embedding API error", "status", resp.StatusCode, "body", string(respBody))
			return resp.StatusCode, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]*ports.EmbeddingResult, len(parsed.Data))
	for _, data := range parsed.Data {
		dims := len(data.Embedding)
		if c.dimensions > 0 && dims != c.dimensions {
			return nil, fmt.Errorf("expected %d dimensions but got %d", c.dimensions, dims)
		}
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		results[data.Index] = &ports.EmbeddingResult{
			Embedding:  data.Embedding,
			Model:      parsed.Model,
			Dimensions: dims,
		}
	}
	return results, nil
}
