package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/internal/logger"
	"filerepo-extraction/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SimilaritySearcher ranks the pages in a scope against a query vector
// and returns the top-k. Implementations own only the scan-and-rank step,
// so an approximate index can be substituted without touching callers.
type SimilaritySearcher interface {
	Search(ctx context.Context, query []float32, scope models.SearchScope, k int) ([]models.SearchMatch, error)
}

// BruteForceSearcher computes exact cosine similarity over every candidate
// in the scope. O(n*D) per query, which is fine at per-tenant document
// counts. Score is cosine similarity in [-1, 1]; ordering is strictly
// descending by score with ties broken by ascending (fileID, pageID).
type BruteForceSearcher struct {
	store   EmbeddingStore
	dim     int
	maxTopK int
}

func NewBruteForceSearcher(store EmbeddingStore, cfg *config.Config) *BruteForceSearcher {
	return &BruteForceSearcher{store: store, dim: cfg.VectorDim, maxTopK: cfg.MaxTopK}
}

func (s *BruteForceSearcher) Search(ctx context.Context, query []float32, scope models.SearchScope, k int) ([]models.SearchMatch, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	if k > s.maxTopK {
		k = s.maxTopK
	}
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, want %d",
			models.ErrDimensionMismatch, len(query), s.dim)
	}
	if scope.FileID == "" && scope.TenantID == "" {
		return nil, fmt.Errorf("%w: empty search scope", models.ErrInvalidArgument)
	}

	tracer := otel.Tracer("similarity-searcher")
	ctx, span := tracer.Start(ctx, "search.rank")
	defer span.End()

	candidates, err := s.store.ListCandidates(ctx, scope)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.candidates", len(candidates)))

	queryNorm := norm(query)
	matches := make([]models.SearchMatch, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			logger.Warn("skipping candidate with malformed vector",
				"file_id", c.FileID, "page_id", c.PageID, "dimensions", len(c.Vector))
			continue
		}
		matches = append(matches, models.SearchMatch{
			FileID:  c.FileID,
			PageID:  c.PageID,
			Score:   cosine(query, queryNorm, c.Vector),
			OCRText: c.OCRText,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].FileID != matches[j].FileID {
			return matches[i].FileID < matches[j].FileID
		}
		return matches[i].PageID < matches[j].PageID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(query []float32, queryNorm float64, v []float32) float64 {
	var dot, sum float64
	for i := range query {
		dot += float64(query[i]) * float64(v[i])
		sum += float64(v[i]) * float64(v[i])
	}
	vNorm := math.Sqrt(sum)
	if queryNorm == 0 || vNorm == 0 {
		return 0
	}
	return dot / (queryNorm * vNorm)
}
