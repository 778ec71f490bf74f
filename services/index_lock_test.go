package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Needs a reachable Redis; skipped otherwise.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("REDIS_URL") == "" {
		t.Skip("REDIS_URL not set")
	}
	rdb, err := config.NewRedisClient(&config.Config{RedisURL: os.Getenv("REDIS_URL")})
	if err != nil {
		t.Skipf("redis connect failed: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisIndexLockerMutualExclusion(t *testing.T) {
	rdb := testRedis(t)
	locker := NewRedisIndexLocker(rdb, time.Minute)
	fileID := "test-" + uuid.NewString()

	release, err := locker.Acquire(context.Background(), fileID)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := locker.Acquire(context.Background(), fileID); !errors.Is(err, models.ErrAlreadyIndexing) {
		t.Fatalf("second Acquire err = %v, want ErrAlreadyIndexing", err)
	}

	release()

	release2, err := locker.Acquire(context.Background(), fileID)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestRedisIndexLockerReleaseKeepsForeignLock(t *testing.T) {
	rdb := testRedis(t)
	locker := NewRedisIndexLocker(rdb, time.Minute)
	fileID := "test-" + uuid.NewString()
	key := "indexing:lock:" + fileID

	release, err := locker.Acquire(context.Background(), fileID)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulate the lock expiring and another run taking it over.
	if err := rdb.Set(context.Background(), key, "other-token", time.Minute).Err(); err != nil {
		t.Fatalf("set foreign token: %v", err)
	}
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	release()

	got, err := rdb.Get(context.Background(), key).Result()
	if err != nil {
		t.Fatalf("get after release: %v", err)
	}
	if got != "other-token" {
		t.Fatalf("release removed a lock it no longer owned: %q", got)
	}
}

func TestDoneGateShortCircuitsUnchangedContent(t *testing.T) {
	rdb := testRedis(t)
	fx := newPipelineFixture(2)
	fileID := "gate-" + uuid.NewString()
	fx.files.add("tenant-1", fileID, models.MediaTypePDF, []byte("%PDF-1.4 gated"))
	t.Cleanup(func() { rdb.Del(context.Background(), "embeddings:done:"+fileID) })

	pipeline := NewIndexingPipeline(fx.cfg, PipelineDeps{
		Extractor:  fx.extractor,
		Recognizer: fx.recognizer,
		Embedder:   fx.embedder,
		Store:      fx.store,
		Files:      fx.files,
		Locks:      fx.locker,
		Cache:      rdb,
	})

	first, err := pipeline.IndexFile(context.Background(), "tenant-1", fileID)
	if err != nil {
		t.Fatalf("first IndexFile: %v", err)
	}
	if first.Status != models.IndexStatusIndexed {
		t.Fatalf("first status = %q, want %q", first.Status, models.IndexStatusIndexed)
	}
	calls := fx.recognizer.calls[1] + fx.recognizer.calls[2]

	second, err := pipeline.IndexFile(context.Background(), "tenant-1", fileID)
	if err != nil {
		t.Fatalf("second IndexFile: %v", err)
	}
	if second.Status != models.IndexStatusIndexed || second.PagesProcessed != 2 {
		t.Fatalf("second result = %+v, want indexed 2/2 from the gate", second)
	}
	if got := fx.recognizer.calls[1] + fx.recognizer.calls[2]; got != calls {
		t.Fatalf("recognizer ran again for unchanged content: %d calls, want %d", got, calls)
	}
	if fx.store.puts != 1 {
		t.Fatalf("store written %d times, want 1", fx.store.puts)
	}

	// A delete clears the gate so the next request reprocesses.
	if err := pipeline.DeleteFileEmbeddings(context.Background(), fileID); err != nil {
		t.Fatalf("DeleteFileEmbeddings: %v", err)
	}
	third, err := pipeline.IndexFile(context.Background(), "tenant-1", fileID)
	if err != nil {
		t.Fatalf("third IndexFile: %v", err)
	}
	if third.Status != models.IndexStatusIndexed {
		t.Fatalf("third status = %q, want %q", third.Status, models.IndexStatusIndexed)
	}
	if fx.store.puts != 2 {
		t.Fatalf("store written %d times after gate cleared, want 2", fx.store.puts)
	}
}
