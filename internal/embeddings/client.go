package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/movierank-dev/movierank/internal/retry"
	"github.com/movierank-dev/movierank/pkg/movierank"
)

// APIError is a non-2xx response from the embeddings endpoint. It carries
// the status code so the retry classifier can tell rate limits and server
// failures apart from bad requests.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embeddings API returned %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode implements retry.HTTPStatusError.
func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

var _ retry.HTTPStatusError = (*APIError)(nil)

// Client calls an OpenAI-compatible embeddings endpoint:
// POST {base}/embeddings with {"model": ..., "input": [...]} and bearer auth.
// Transient failures (429, 5xx, network) are retried with backoff.
type Client struct {
	baseURL       string
	apiKey        string
	model         string
	httpClient    *http.Client
	retryExecutor *retry.Executor
	logger        movierank.Logger
}

// NewClient creates an embeddings API client.
func NewClient(baseURL, apiKey, model string, logger movierank.Logger) *Client {
	if logger == nil {
		panic("logger cannot be nil")
	}

	classifier := retry.NewHTTPErrorClassifier()
	strategy := retry.NewExponentialBackoff(movierank.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(movierank.DefaultRetryInitialDelay),
		retry.WithMaxDelay(movierank.DefaultRetryMaxDelay),
	)

	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
	c.retryExecutor = retry.NewExecutor(classifier, strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Verbose("Embeddings request failed (attempt %d, retrying in %v): %v", attempt+1, delay, err)
		})

	return c
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one embedding per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = c.embedOnce(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", movierank.ErrEmbeddingAPI, err)
	}

	return vectors, nil
}

func (c *Client) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(decoded.Data))
	}

	// The API may return items out of order; index puts them back.
	vectors := make([][]float32, len(texts))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return vectors, nil
}
