package services

import (
	"context"
	"testing"
	"time"

	"filerepo-extraction/models"
)

func TestSweepOnceRemovesOrphans(t *testing.T) {
	store := newMemStore()
	files := newFakeFiles()

	files.add("t1", "kept", models.MediaTypePDF, []byte("%PDF"))
	store.Put(context.Background(), "kept", []models.PageRow{{PageID: 1, Vector: []float32{1, 0, 0, 0}}})
	store.Put(context.Background(), "orphan", []models.PageRow{{PageID: 1, Vector: []float32{0, 1, 0, 0}}})

	sweeper := NewOrphanSweeper(store, files, time.Hour)
	if err := sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}

	ids, _ := store.ListFileIDs(context.Background())
	if len(ids) != 1 || ids[0] != "kept" {
		t.Fatalf("remaining files = %v, want [kept]", ids)
	}
}
