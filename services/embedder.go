package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Embedder converts page or query text into a fixed-length vector.
// Identical input does not guarantee identical output; the model may be
// non-deterministic.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// GeminiEmbedder wraps the Google Generative AI embedding endpoint behind
// a circuit breaker and a client-side requests-per-minute limiter.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	dim     int
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewGeminiEmbedder(ctx context.Context, cfg *config.Config) (*GeminiEmbedder, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "EmbeddingAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	burst := cfg.EmbedRPM / 10
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.EmbedRPM)*0.9/60.0), burst)

	return &GeminiEmbedder{
		client:  client,
		model:   cfg.GoogleEmbeddingsModel,
		dim:     cfg.VectorDim,
		breaker: breaker,
		limiter: limiter,
	}, nil
}

func (e *GeminiEmbedder) Dimension() int { return e.dim }

func (e *GeminiEmbedder) Close() error { return e.client.Close() }

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: nothing to embed", models.ErrEmptyInput)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		model := e.client.EmbeddingModel(e.model)
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", models.ErrEmbedderUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedderUnavailable, err)
	}

	vec := result.([]float32)
	if len(vec) != e.dim {
		// A malformed vector must never reach the store.
		return nil, fmt.Errorf("%w: model returned %d dimensions, want %d", models.ErrDimensionMismatch, len(vec), e.dim)
	}

	return vec, nil
}
