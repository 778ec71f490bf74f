package models

import "time"

// PageEmbedding is one indexed page of a file: its OCR text and, when the
// page yielded usable text, a fixed-dimension embedding vector.
// (FileID, PageID) is unique; PageID is the 1-based page ordinal.
// Rows are only ever written in bulk via a full replace of the owning
// file's set, never updated in place.
type PageEmbedding struct {
	FileID     string
	PageID     int
	Vector     []float32 // nil for pages retained without a vector
	OCRText    string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// PageRow is the write-side shape handed to EmbeddingStore.Put.
type PageRow struct {
	PageID  int
	Vector  []float32
	OCRText string
}

// PageSummary answers "which pages of this file are indexed" without
// loading vectors.
type PageSummary struct {
	PageID    int    `json:"page_id"`
	OCRText   string `json:"ocr"`
	HasVector bool   `json:"has_vector"`
}

// SearchScope bounds a similarity search to one file or to every file of
// one tenant. Exactly one field is set.
type SearchScope struct {
	FileID   string
	TenantID string
}

func ScopeFile(fileID string) SearchScope     { return SearchScope{FileID: fileID} }
func ScopeTenant(tenantID string) SearchScope { return SearchScope{TenantID: tenantID} }

// SearchMatch is one ranked result of a similarity search. Score is cosine
// similarity in [-1, 1], the same measure at write and read time.
type SearchMatch struct {
	FileID  string  `json:"file_id"`
	PageID  int     `json:"page_id"`
	Score   float64 `json:"score"`
	OCRText string  `json:"ocr"`
}

// Indexing outcome statuses as seen by callers.
const (
	IndexStatusIndexed = "indexed" // every page accounted for
	IndexStatusPartial = "partial" // indexed with page failures absorbed
	IndexStatusFailed  = "failed"  // every page failed; no changes made
)

// PageFailure records a page the pipeline gave up on after bounded retries.
type PageFailure struct {
	PageID int    `json:"page_id"`
	Stage  string `json:"stage"` // "ocr" or "embedding"
}

// IndexResult is the structured outcome of one indexing run.
// PagesProcessed counts pages that yielded a stored embedding vector;
// PagesTotal is the page count of the document.
type IndexResult struct {
	FileID         string        `json:"file_id"`
	Status         string        `json:"status"`
	PagesProcessed int           `json:"pages_processed"`
	PagesTotal     int           `json:"pages_total"`
	PageFailures   []PageFailure `json:"page_failures,omitempty"`
}
