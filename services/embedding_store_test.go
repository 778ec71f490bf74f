package services

import (
	"context"
	"errors"
	"os"
	"testing"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/models"

	"github.com/google/uuid"
)

// Needs a pgvector-enabled Postgres; skipped otherwise.
func postgresStore(t *testing.T) *PostgresEmbeddingStore {
	t.Helper()
	if os.Getenv("POSTGRES_URL") == "" {
		t.Skip("POSTGRES_URL not set")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}
	pool, err := config.ConnectPostgres(cfg)
	if err != nil {
		t.Skipf("postgres connect failed: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewPostgresEmbeddingStore(pool, newFakeFiles(), cfg.VectorDim)
}

func TestPostgresPutReplacesAtomically(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	fileID := "test-" + uuid.NewString()
	t.Cleanup(func() { store.DeleteByFile(ctx, fileID) })

	dim := store.dim
	vec := func(seed float32) []float32 {
		v := make([]float32, dim)
		v[0] = seed
		return v
	}

	if err := store.Put(ctx, fileID, []models.PageRow{
		{PageID: 1, Vector: vec(1), OCRText: "one"},
		{PageID: 2, Vector: vec(2), OCRText: "two"},
	}); err != nil {
		t.Fatalf("first Put: %v", err)
	}

	if err := store.Put(ctx, fileID, []models.PageRow{
		{PageID: 1, Vector: vec(3), OCRText: "one again"},
	}); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	pages, err := store.Get(ctx, fileID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(pages) != 1 || pages[0].PageID != 1 {
		t.Fatalf("pages = %+v, want only page 1", pages)
	}
}

func TestPostgresVectorlessRow(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	fileID := "test-" + uuid.NewString()
	t.Cleanup(func() { store.DeleteByFile(ctx, fileID) })

	if err := store.Put(ctx, fileID, []models.PageRow{{PageID: 1}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	pages, err := store.Get(ctx, fileID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(pages) != 1 || pages[0].HasVector {
		t.Fatalf("pages = %+v, want one vectorless page", pages)
	}

	// Vectorless rows never become search candidates.
	candidates, err := store.ListCandidates(ctx, models.ScopeFile(fileID))
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("candidates = %d, want 0", len(candidates))
	}
}

func TestPostgresPutRejectsBadRows(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()

	err := store.Put(ctx, "test-bad", []models.PageRow{{PageID: 0, Vector: make([]float32, store.dim)}})
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("page 0: err = %v, want ErrInvalidArgument", err)
	}

	err = store.Put(ctx, "test-bad", []models.PageRow{{PageID: 1, Vector: []float32{1}}})
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Fatalf("short vector: err = %v, want ErrDimensionMismatch", err)
	}
}

func TestPostgresDeleteByFileIsIdempotent(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()

	if err := store.DeleteByFile(ctx, "never-existed-"+uuid.NewString()); err != nil {
		t.Fatalf("DeleteByFile on absent file: %v", err)
	}
}
