package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"filerepo-extraction/models"
)

func searchFixture(t *testing.T) (*memStore, *BruteForceSearcher) {
	t.Helper()
	cfg := testConfig()
	store := newMemStore()
	return store, NewBruteForceSearcher(store, cfg)
}

func seedFile(store *memStore, tenantID, fileID string, vectors map[int][]float32) {
	rows := make([]models.PageRow, 0, len(vectors))
	for pageID, vec := range vectors {
		rows = append(rows, models.PageRow{PageID: pageID, Vector: vec, OCRText: "page text"})
	}
	store.Put(context.Background(), fileID, rows)
	store.tenant[fileID] = tenantID
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	store, searcher := searchFixture(t)
	seedFile(store, "t1", "f1", map[int][]float32{
		1: {1, 0, 0, 0},
		2: {0, 1, 0, 0},
		3: {0.9, 0.1, 0, 0},
	})

	matches, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeFile("f1"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(matches))
	}
	if matches[0].PageID != 1 || matches[1].PageID != 3 || matches[2].PageID != 2 {
		t.Fatalf("order = %d,%d,%d, want 1,3,2", matches[0].PageID, matches[1].PageID, matches[2].PageID)
	}
	if math.Abs(matches[0].Score-1.0) > 1e-9 {
		t.Fatalf("identical vector score = %f, want 1.0", matches[0].Score)
	}
}

func TestSearchTieBreaksByFileThenPage(t *testing.T) {
	store, searcher := searchFixture(t)
	// All candidates score identically against the query.
	seedFile(store, "t1", "fB", map[int][]float32{2: {1, 0, 0, 0}, 1: {2, 0, 0, 0}})
	seedFile(store, "t1", "fA", map[int][]float32{7: {3, 0, 0, 0}})

	matches, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeTenant("t1"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(matches))
	}
	want := []struct {
		fileID string
		pageID int
	}{{"fA", 7}, {"fB", 1}, {"fB", 2}}
	for i, w := range want {
		if matches[i].FileID != w.fileID || matches[i].PageID != w.pageID {
			t.Fatalf("match[%d] = %s/%d, want %s/%d",
				i, matches[i].FileID, matches[i].PageID, w.fileID, w.pageID)
		}
	}
}

func TestSearchClampsKToMaximum(t *testing.T) {
	store, searcher := searchFixture(t)
	vectors := map[int][]float32{}
	for i := 1; i <= 30; i++ {
		vectors[i] = []float32{float32(i), 1, 0, 0}
	}
	seedFile(store, "t1", "f1", vectors)

	matches, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeFile("f1"), 1000)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 20 {
		t.Fatalf("matches = %d, want clamp to 20", len(matches))
	}
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	_, searcher := searchFixture(t)
	for _, k := range []int{0, -3} {
		_, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeFile("f1"), k)
		if !errors.Is(err, models.ErrInvalidArgument) {
			t.Fatalf("k=%d: err = %v, want ErrInvalidArgument", k, err)
		}
	}
}

func TestSearchRejectsWrongQueryDimension(t *testing.T) {
	_, searcher := searchFixture(t)
	_, err := searcher.Search(context.Background(), []float32{1, 0}, models.ScopeFile("f1"), 5)
	if !errors.Is(err, models.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearchRejectsEmptyScope(t *testing.T) {
	_, searcher := searchFixture(t)
	_, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.SearchScope{}, 5)
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSearchScopeIsolation(t *testing.T) {
	store, searcher := searchFixture(t)
	seedFile(store, "t1", "f1", map[int][]float32{1: {1, 0, 0, 0}})
	seedFile(store, "t2", "f2", map[int][]float32{1: {1, 0, 0, 0}})

	matches, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeTenant("t1"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].FileID != "f1" {
		t.Fatalf("tenant scope leaked: matches = %+v", matches)
	}

	matches, err = searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeFile("f2"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 1 || matches[0].FileID != "f2" {
		t.Fatalf("file scope leaked: matches = %+v", matches)
	}
}

func TestSearchTenantTopKAcrossFiles(t *testing.T) {
	store, searcher := searchFixture(t)
	seedFile(store, "t1", "f1", map[int][]float32{
		1: {1, 0, 0, 0},
		2: {0, 1, 0, 0},
	})
	seedFile(store, "t1", "f2", map[int][]float32{
		1: {0.8, 0.2, 0, 0},
		2: {0, 0, 1, 0},
	})

	matches, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeTenant("t1"), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("matches = %d, want 3", len(matches))
	}
	if matches[0].FileID != "f1" || matches[0].PageID != 1 {
		t.Fatalf("best match = %s/%d, want f1/1", matches[0].FileID, matches[0].PageID)
	}
	if matches[1].FileID != "f2" || matches[1].PageID != 1 {
		t.Fatalf("second match = %s/%d, want f2/1", matches[1].FileID, matches[1].PageID)
	}
}

func TestSearchEmptyIndexReturnsNoMatches(t *testing.T) {
	_, searcher := searchFixture(t)

	matches, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeTenant("t-empty"), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("matches = %d, want 0", len(matches))
	}
}

func TestCosineZeroNormVectorScoresZero(t *testing.T) {
	store, searcher := searchFixture(t)
	seedFile(store, "t1", "f1", map[int][]float32{
		1: {0, 0, 0, 0},
		2: {1, 0, 0, 0},
	})

	matches, err := searcher.Search(context.Background(), []float32{1, 0, 0, 0}, models.ScopeFile("f1"), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if matches[len(matches)-1].PageID != 1 || matches[len(matches)-1].Score != 0 {
		t.Fatalf("zero vector should rank last with score 0, got %+v", matches)
	}
}
