package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// ConnectPostgres opens the embedding store pool and ensures the schema
// exists. The page_embeddings table is the only relation this service owns;
// the file records live with the file-management service.
func ConnectPostgres(cfg *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse POSTGRES_URL: %v", err)
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping Postgres: %v", err)
	}

	if err := ensureEmbeddingSchema(ctx, pool, cfg.VectorDim); err != nil {
		return nil, fmt.Errorf("failed to ensure embedding schema: %v", err)
	}

	return pool, nil
}

func ensureEmbeddingSchema(ctx context.Context, pool *pgxpool.Pool, dim int) error {
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("unable to create vector extension: %v", err)
	}

	// The embedding column is nullable: a page whose OCR came back empty is
	// retained for transparency without a vector.
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS page_embeddings (
			file_id     text        NOT NULL,
			page_id     integer     NOT NULL,
			embedding   vector(%d),
			ocr_text    text        NOT NULL DEFAULT '',
			created_at  timestamptz NOT NULL DEFAULT now(),
			modified_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (file_id, page_id)
		)`, dim)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return err
	}

	_, err := pool.Exec(ctx,
		"CREATE INDEX IF NOT EXISTS idx_page_embeddings_file ON page_embeddings (file_id)")
	return err
}
