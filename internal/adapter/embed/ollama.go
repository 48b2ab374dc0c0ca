// Package embed turns report text into vector embeddings through an Ollama server.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/coastal-alert-service/internal/observability"
)

// OllamaClient implements domain.Embedder against POST /api/embed.
type OllamaClient struct {
	endpoint string
	model    string
	client   *http.Client
	limiter  *rate.Limiter
	metrics  *observability.Metrics
	logger   *slog.Logger
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaClient creates a client that issues at most ratePerSec requests per second.
func NewOllamaClient(endpoint, model string, timeout time.Duration, ratePerSec float64, metrics *observability.Metrics, logger *slog.Logger) *OllamaClient {
	return &OllamaClient{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), max(1, int(ratePerSec))),
		metrics:  metrics,
		logger:   logger,
	}
}

// Embed returns the embedding of text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embed(ctx, text)
	if err != nil {
		c.metrics.EmbedRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	c.metrics.EmbedRequests.WithLabelValues("success").Inc()
	return vec, nil
}

func (c *OllamaClient) embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed: rate limit wait: %w", err)
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embed: request cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embed: ollama returned status %d: %s", resp.StatusCode, msg)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed: parse response: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, errors.New("embed: no embeddings returned")
	}

	c.logger.Debug("embedded text", "model", c.model, "dims", len(out.Embeddings[0]))
	return out.Embeddings[0], nil
}
