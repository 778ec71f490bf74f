package services

import (
	"context"
	"time"

	"filerepo-extraction/internal/logger"

	"github.com/go-co-op/gocron"
)

// OrphanSweeper periodically deletes embeddings whose owning file no
// longer exists. Deletion normally cascades through the HTTP hook; the
// sweep catches notifications lost to crashes.
type OrphanSweeper struct {
	store     EmbeddingStore
	files     FileService
	interval  time.Duration
	scheduler *gocron.Scheduler
}

func NewOrphanSweeper(store EmbeddingStore, files FileService, interval time.Duration) *OrphanSweeper {
	return &OrphanSweeper{store: store, files: files, interval: interval}
}

func (s *OrphanSweeper) Start() error {
	s.scheduler = gocron.NewScheduler(time.UTC)
	s.scheduler.TagsUnique()

	_, err := s.scheduler.Every(s.interval).Tag("orphan-sweep").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.SweepOnce(ctx); err != nil {
			logger.Error("orphan sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Info("orphan sweeper started", "interval", s.interval.String())
	return nil
}

func (s *OrphanSweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// SweepOnce removes embeddings for files the collaborator no longer
// knows about. Lookup errors skip the file rather than delete it.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) error {
	fileIDs, err := s.store.ListFileIDs(ctx)
	if err != nil {
		return err
	}

	removed := 0
	for _, fileID := range fileIDs {
		exists, err := s.files.FileExists(ctx, fileID)
		if err != nil {
			logger.Warn("orphan check failed, skipping", "file_id", fileID, "error", err)
			continue
		}
		if exists {
			continue
		}
		if err := s.store.DeleteByFile(ctx, fileID); err != nil {
			logger.Warn("orphan delete failed", "file_id", fileID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("orphan sweep removed stale embeddings", "files", removed)
	}
	return nil
}
