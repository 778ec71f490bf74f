package services

import (
	"context"
	"fmt"

	"filerepo-extraction/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingStore is durable keyed storage of (file_id, page_id) pages.
// Put replaces the whole set for a file atomically: a concurrent reader
// observes either the full old set or the full new set, never a mix.
type EmbeddingStore interface {
	Put(ctx context.Context, fileID string, rows []models.PageRow) error
	Get(ctx context.Context, fileID string) ([]models.PageSummary, error)
	ListCandidates(ctx context.Context, scope models.SearchScope) ([]models.PageEmbedding, error)
	ListFileIDs(ctx context.Context) ([]string, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

// PostgresEmbeddingStore keeps page embeddings in a pgvector table.
// Tenant-scoped reads resolve file membership through the file
// collaborator rather than duplicating ownership locally.
type PostgresEmbeddingStore struct {
	pool  *pgxpool.Pool
	files FileService
	dim   int
}

func NewPostgresEmbeddingStore(pool *pgxpool.Pool, files FileService, dim int) *PostgresEmbeddingStore {
	return &PostgresEmbeddingStore{pool: pool, files: files, dim: dim}
}

func (s *PostgresEmbeddingStore) Put(ctx context.Context, fileID string, rows []models.PageRow) error {
	for _, r := range rows {
		if r.PageID < 1 {
			return fmt.Errorf("%w: page id %d", models.ErrInvalidArgument, r.PageID)
		}
		if r.Vector != nil && len(r.Vector) != s.dim {
			return fmt.Errorf("%w: page %d has %d dimensions, want %d",
				models.ErrDimensionMismatch, r.PageID, len(r.Vector), s.dim)
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM page_embeddings WHERE file_id = $1", fileID); err != nil {
		return fmt.Errorf("failed to clear prior pages: %w", err)
	}

	for _, r := range rows {
		var embedding interface{}
		if r.Vector != nil {
			embedding = pgvector.NewVector(r.Vector)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO page_embeddings (file_id, page_id, embedding, ocr_text)
			 VALUES ($1, $2, $3, $4)`,
			fileID, r.PageID, embedding, r.OCRText)
		if err != nil {
			return fmt.Errorf("failed to insert page %d: %w", r.PageID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace transaction: %w", err)
	}
	return nil
}

func (s *PostgresEmbeddingStore) Get(ctx context.Context, fileID string) ([]models.PageSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT page_id, ocr_text, (embedding IS NOT NULL)
		 FROM page_embeddings WHERE file_id = $1 ORDER BY page_id ASC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load page summaries: %w", err)
	}
	defer rows.Close()

	summaries := []models.PageSummary{}
	for rows.Next() {
		var p models.PageSummary
		if err := rows.Scan(&p.PageID, &p.OCRText, &p.HasVector); err != nil {
			return nil, fmt.Errorf("failed to scan page summary: %w", err)
		}
		summaries = append(summaries, p)
	}
	return summaries, rows.Err()
}

func (s *PostgresEmbeddingStore) ListCandidates(ctx context.Context, scope models.SearchScope) ([]models.PageEmbedding, error) {
	var fileIDs []string
	switch {
	case scope.FileID != "":
		fileIDs = []string{scope.FileID}
	case scope.TenantID != "":
		ids, err := s.files.ListFilesForTenant(ctx, scope.TenantID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, nil
		}
		fileIDs = ids
	default:
		return nil, fmt.Errorf("%w: empty search scope", models.ErrInvalidArgument)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT file_id, page_id, embedding, ocr_text, created_at, modified_at
		 FROM page_embeddings
		 WHERE file_id = ANY($1) AND embedding IS NOT NULL
		 ORDER BY file_id, page_id`, fileIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.PageEmbedding
	for rows.Next() {
		var (
			e   models.PageEmbedding
			vec pgvector.Vector
		)
		if err := rows.Scan(&e.FileID, &e.PageID, &vec, &e.OCRText, &e.CreatedAt, &e.ModifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		e.Vector = vec.Slice()
		candidates = append(candidates, e)
	}
	return candidates, rows.Err()
}

func (s *PostgresEmbeddingStore) ListFileIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT file_id FROM page_embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresEmbeddingStore) DeleteByFile(ctx context.Context, fileID string) error {
	// Deleting a file with no embeddings is a no-op, not an error.
	if _, err := s.pool.Exec(ctx, "DELETE FROM page_embeddings WHERE file_id = $1", fileID); err != nil {
		return fmt.Errorf("failed to delete embeddings for %s: %w", fileID, err)
	}
	return nil
}
