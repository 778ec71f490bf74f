package models

import "time"

// FileRecord mirrors the file-management collaborator's view of an
// uploaded document. The extraction service only reads these records; the
// file service owns their lifecycle.
type FileRecord struct {
	FileID    string    `bson:"_id" json:"file_id"`
	TenantID  string    `bson:"tenant_id" json:"tenant_id"`
	Filename  string    `bson:"filename" json:"filename"`
	FilePath  string    `bson:"file_path" json:"-"` // relative to the storage root
	MediaType string    `bson:"media_type" json:"media_type"`
	Size      int64     `bson:"size" json:"size"`
	FileHash  string    `bson:"file_hash,omitempty" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MediaTypePDF is the only media type the indexing pipeline accepts.
const MediaTypePDF = "application/pdf"
