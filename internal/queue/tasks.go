package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/internal/logger"
	"filerepo-extraction/models"
	"filerepo-extraction/services"
)

const (
	TaskIndexEmbeddings = "embeddings:index"
)

type IndexEmbeddingsPayload struct {
	TenantID string `json:"tenant_id"`
	FileID   string `json:"file_id"`
}

// Task creators
func NewIndexEmbeddingsTask(cfg *config.Config, tenantID, fileID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexEmbeddingsPayload{
		TenantID: tenantID,
		FileID:   fileID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexEmbeddings,
		payload,
		asynq.MaxRetry(3),
		// The task outlives the pipeline's own run deadline so asynq never
		// kills a run that would have finished or timed out cleanly.
		asynq.Timeout(cfg.IndexingTimeout+time.Minute),
		asynq.Queue("critical"),
	), nil
}

// Task handlers
type TaskProcessor struct {
	pipeline *services.IndexingPipeline
}

func NewTaskProcessor(pipeline *services.IndexingPipeline) *TaskProcessor {
	return &TaskProcessor{pipeline: pipeline}
}

func (p *TaskProcessor) ProcessIndexEmbeddings(ctx context.Context, t *asynq.Task) error {
	var payload IndexEmbeddingsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Indexing embeddings", "tenant_id", payload.TenantID, "file_id", payload.FileID)

	result, err := p.pipeline.IndexFile(ctx, payload.TenantID, payload.FileID)
	if err != nil {
		// A file that no longer exists or can never be parsed will not
		// succeed on a retry either
		if errors.Is(err, models.ErrFileNotFound) ||
			errors.Is(err, models.ErrUnsupportedFormat) ||
			errors.Is(err, models.ErrCorruptDocument) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		// Another worker already holds the file; asynq will retry later
		if errors.Is(err, models.ErrAlreadyIndexing) {
			return err
		}
		logger.Error("Indexing task failed", "file_id", payload.FileID, "error", err)
		return err
	}

	logger.Info("Indexing task finished",
		"file_id", result.FileID,
		"status", result.Status,
		"pages_processed", result.PagesProcessed,
		"pages_total", result.PagesTotal)
	return nil
}
