package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/internal/logger"
	"filerepo-extraction/internal/telemetry"
	"filerepo-extraction/models"
	"filerepo-extraction/utils"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const doneGateTTL = time.Hour

// PipelineDeps bundles the collaborators of the indexing pipeline.
// Cache and Metrics are optional; nil disables them.
type PipelineDeps struct {
	Extractor  PageExtractor
	Recognizer TextRecognizer
	Embedder   Embedder
	Store      EmbeddingStore
	Files      FileService
	Locks      IndexLocker
	Cache      *redis.Client
	Metrics    *telemetry.Metrics
}

// IndexingPipeline turns one uploaded file into its set of page
// embeddings: extract pages, recognize text, embed, then atomically
// replace the file's stored set. Single-page OCR/embedding failures are
// absorbed (bounded retries, then the page is skipped); only input errors,
// the run deadline, and "every page failed" stop a run. A run that fails
// entirely leaves the file's previous index untouched.
type IndexingPipeline struct {
	cfg  *config.Config
	deps PipelineDeps
}

func NewIndexingPipeline(cfg *config.Config, deps PipelineDeps) *IndexingPipeline {
	return &IndexingPipeline{cfg: cfg, deps: deps}
}

// pageOutcome is the per-page result gathered before the replace-all.
// Exactly one field is set.
type pageOutcome struct {
	row     *models.PageRow
	failure *models.PageFailure
}

func (p *IndexingPipeline) IndexFile(ctx context.Context, tenantID, fileID string) (*models.IndexResult, error) {
	tracer := otel.Tracer("indexing-pipeline")
	ctx, span := tracer.Start(ctx, "indexing.index_file")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.id", fileID),
		attribute.String("tenant.id", tenantID),
	)
	start := time.Now()

	rec, err := p.deps.Files.GetFile(ctx, tenantID, fileID)
	if err != nil {
		return nil, err
	}
	if rec.MediaType != models.MediaTypePDF {
		return nil, fmt.Errorf("%w: media type %q", models.ErrUnsupportedFormat, rec.MediaType)
	}

	release, err := p.deps.Locks.Acquire(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.IndexingTimeout)
	defer cancel()

	content, err := p.deps.Files.GetFileBytes(runCtx, rec)
	if err != nil {
		return nil, err
	}

	// Idempotency gate: an unchanged file that is already fully indexed is
	// answered from the stored summary instead of being reprocessed.
	hash := utils.ContentHash(content)
	if res := p.checkDoneGate(runCtx, fileID, hash); res != nil {
		logger.Info("indexing skipped, content unchanged", "file_id", fileID)
		return res, nil
	}

	logger.Debug("extracting pages", "file_id", fileID)
	pages, err := p.deps.Extractor.ExtractPages(runCtx, content)
	if err != nil {
		return nil, p.runError(runCtx, err)
	}

	total := len(pages)
	span.SetAttributes(attribute.Int("indexing.pages_total", total))
	if total == 0 {
		// A genuinely empty document indexes successfully with nothing stored.
		return &models.IndexResult{FileID: fileID, Status: models.IndexStatusIndexed}, nil
	}

	outcomes := make([]pageOutcome, total)
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(p.cfg.PageConcurrency)
	for i, page := range pages {
		g.Go(func() error {
			outcome, err := p.processPage(gctx, page)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, p.runError(runCtx, err)
	}

	rows := make([]models.PageRow, 0, total)
	failures := []models.PageFailure{}
	processed := 0
	for _, o := range outcomes {
		if o.failure != nil {
			failures = append(failures, *o.failure)
			continue
		}
		rows = append(rows, *o.row)
		if o.row.Vector != nil {
			processed++
		}
	}

	result := &models.IndexResult{
		FileID:         fileID,
		PagesTotal:     total,
		PagesProcessed: processed,
		PageFailures:   failures,
	}

	if len(rows) == 0 {
		// Every page failed: a replace-all here would erase a previously
		// good index, so the run becomes a no-op.
		result.Status = models.IndexStatusFailed
		logger.Error("indexing failed for all pages, prior index preserved",
			"file_id", fileID, "pages_total", total)
		p.record(ctx, result, start)
		return result, nil
	}

	if err := p.deps.Store.Put(runCtx, fileID, rows); err != nil {
		return nil, p.runError(runCtx, err)
	}

	if len(failures) > 0 {
		result.Status = models.IndexStatusPartial
	} else {
		result.Status = models.IndexStatusIndexed
		p.setDoneGate(ctx, fileID, hash)
	}

	span.SetAttributes(
		attribute.Int("indexing.pages_processed", processed),
		attribute.Int("indexing.page_failures", len(failures)),
		attribute.String("indexing.status", result.Status),
	)
	logger.Info("file indexed",
		"file_id", fileID,
		"status", result.Status,
		"pages_processed", processed,
		"pages_total", total,
		"duration", time.Since(start).String(),
	)
	p.record(ctx, result, start)
	return result, nil
}

// processPage runs OCR and embedding for one page. Page-level failures are
// converted into outcomes; only context cancellation propagates as an
// error and aborts the whole run.
func (p *IndexingPipeline) processPage(ctx context.Context, page PageImage) (pageOutcome, error) {
	recognized, err := retryPage(ctx, p.cfg.PageRetryMax, p.cfg.PageRetryBackoff, p.cfg.OCRTimeout,
		func(callCtx context.Context) (RecognizedText, error) {
			return p.deps.Recognizer.Recognize(callCtx, page)
		})
	if err != nil {
		if ctx.Err() != nil {
			return pageOutcome{}, ctx.Err()
		}
		logger.Warn("page OCR failed after retries", "page_id", page.PageID, "error", err)
		return pageOutcome{failure: &models.PageFailure{PageID: page.PageID, Stage: "ocr"}}, nil
	}

	if strings.TrimSpace(recognized.Text) == "" {
		// Graphical or unreadable page: retained for transparency, no vector.
		return pageOutcome{row: &models.PageRow{PageID: page.PageID}}, nil
	}

	vector, err := retryPage(ctx, p.cfg.PageRetryMax, p.cfg.PageRetryBackoff, p.cfg.EmbedTimeout,
		func(callCtx context.Context) ([]float32, error) {
			return p.deps.Embedder.Embed(callCtx, recognized.Text)
		})
	if err != nil {
		if ctx.Err() != nil {
			return pageOutcome{}, ctx.Err()
		}
		logger.Warn("page embedding failed after retries", "page_id", page.PageID, "error", err)
		return pageOutcome{failure: &models.PageFailure{PageID: page.PageID, Stage: "embedding"}}, nil
	}

	return pageOutcome{row: &models.PageRow{
		PageID:  page.PageID,
		Vector:  vector,
		OCRText: recognized.Text,
	}}, nil
}

// retryPage retries a single OCR/embedding call with exponential backoff.
// Only retryable failures (backend outage, per-call timeout) are retried;
// everything else returns immediately.
func retryPage[T any](ctx context.Context, attempts int, backoff, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff << (attempt - 1)):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		v, err := call(callCtx)
		cancel()
		if err == nil {
			return v, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !models.Retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

// DeleteFileEmbeddings is the cascade hook invoked when the file
// collaborator deletes a file. Safe on files with no embeddings.
func (p *IndexingPipeline) DeleteFileEmbeddings(ctx context.Context, fileID string) error {
	if err := p.deps.Store.DeleteByFile(ctx, fileID); err != nil {
		return err
	}
	if p.deps.Cache != nil {
		p.deps.Cache.Del(ctx, doneKey(fileID))
	}
	logger.Info("embeddings deleted", "file_id", fileID)
	return nil
}

// runError maps an abort inside the run window to the timeout failure
// kind; caller cancellation and everything else pass through.
func (p *IndexingPipeline) runError(runCtx context.Context, err error) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrIndexingTimedOut, err)
	}
	return err
}

func doneKey(fileID string) string { return "embeddings:done:" + fileID }

// checkDoneGate answers a repeat request for unchanged content from the
// stored summary. Best-effort: any cache or store trouble just means the
// file is reprocessed.
func (p *IndexingPipeline) checkDoneGate(ctx context.Context, fileID, hash string) *models.IndexResult {
	if p.deps.Cache == nil {
		return nil
	}
	stored, err := p.deps.Cache.Get(ctx, doneKey(fileID)).Result()
	if err != nil || stored != hash {
		return nil
	}
	pages, err := p.deps.Store.Get(ctx, fileID)
	if err != nil || len(pages) == 0 {
		return nil
	}
	processed := 0
	for _, pg := range pages {
		if pg.HasVector {
			processed++
		}
	}
	return &models.IndexResult{
		FileID:         fileID,
		Status:         models.IndexStatusIndexed,
		PagesProcessed: processed,
		PagesTotal:     len(pages),
	}
}

func (p *IndexingPipeline) setDoneGate(ctx context.Context, fileID, hash string) {
	if p.deps.Cache == nil {
		return
	}
	p.deps.Cache.Set(ctx, doneKey(fileID), hash, doneGateTTL)
}

func (p *IndexingPipeline) record(ctx context.Context, result *models.IndexResult, start time.Time) {
	if p.deps.Metrics == nil {
		return
	}
	p.deps.Metrics.RecordIndexing(ctx,
		result.PagesProcessed, len(result.PageFailures),
		time.Since(start).Seconds(), result.Status)
}
