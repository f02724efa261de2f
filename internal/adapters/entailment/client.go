package entailment

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
	"github.com/longregen/cogito/internal/domain"
	"github.com/longregen/cogito/internal/ports"
)

const requestTimeout = 30 * time.Second

// Client scores natural-language inference pairs against an HTTP NLI
// service. It implements ports.EntailmentService. The verifier treats any
// error here as a degraded-mode signal, so the breaker failing fast is
// preferable to hanging a turn.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
	logger      *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		retryConfig: retry.HTTPConfig(),
		breaker:     circuitbreaker.New(5, 30*time.Second),
		logger:      logger,
	}
}

type scoreRequest struct {
	Pairs []scorePair `json:"pairs"`
}

type scorePair struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score scores a single premise/hypothesis pair.
func (c *Client) Score(ctx context.Context, premise, hypothesis string) (float64, error) {
	scores, err := c.ScoreBatch(ctx, []ports.EntailmentPair{{Premise: premise, Hypothesis: hypothesis}})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScoreBatch scores pairs in one request, preserving input order.
func (c *Client) ScoreBatch(ctx context.Context, pairs []ports.EntailmentPair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	var scores []float64
	err := c.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		var err error
		scores, err = c.score(ctx, pairs)
		return err
	})
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrVerifierUnavailable, err.Error())
	}
	return scores, nil
}

func (c *Client) score(ctx context.Context, pairs []ports.EntailmentPair) ([]float64, error) {
	req := scoreRequest{Pairs: make([]scorePair, len(pairs))}
	for i, p := range pairs {
		req.Pairs[i] = scorePair{Premise: p.Premise, Hypothesis: p.Hypothesis}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var respBody []byte
	err = retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
		if err != nil {
			return 0, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("entailment request failed", "url", c.baseURL, "error", err)
			return 0, fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed scoreResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Scores) != len(pairs) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(pairs), len(parsed.Scores))
	}
	for i, s := range parsed.Scores {
		if s < 0 || s > 1 {
			return nil, fmt.Errorf("score %d out of range: %f", i, s)
		}
	}
	return parsed.Scores, nil
}
