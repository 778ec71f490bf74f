package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"filerepo-extraction/internal/config"
	"filerepo-extraction/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FileService is the extraction service's view of the file-management
// collaborator: file identity, ownership, bytes, and tenant membership.
type FileService interface {
	GetFile(ctx context.Context, tenantID, fileID string) (*models.FileRecord, error)
	GetFileBytes(ctx context.Context, rec *models.FileRecord) ([]byte, error)
	FileExists(ctx context.Context, fileID string) (bool, error)
	ListFilesForTenant(ctx context.Context, tenantID string) ([]string, error)
}

// MongoFileService reads the file records the file-management service
// maintains. This service never writes them.
type MongoFileService struct {
	files      *mongo.Collection
	storageDir string
}

func NewMongoFileService(client *mongo.Client, cfg *config.Config) *MongoFileService {
	return &MongoFileService{
		files:      client.Database(cfg.DBName).Collection("files"),
		storageDir: cfg.FileStorageDir,
	}
}

func (s *MongoFileService) GetFile(ctx context.Context, tenantID, fileID string) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := s.files.FindOne(ctx, bson.M{"_id": fileID, "tenant_id": tenantID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", models.ErrFileNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to load file record: %w", err)
	}
	return &rec, nil
}

func (s *MongoFileService) GetFileBytes(ctx context.Context, rec *models.FileRecord) ([]byte, error) {
	path := rec.FilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.storageDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: stored bytes missing for %s", models.ErrFileNotFound, rec.FileID)
		}
		return nil, fmt.Errorf("failed to read file bytes: %w", err)
	}
	return data, nil
}

func (s *MongoFileService) FileExists(ctx context.Context, fileID string) (bool, error) {
	count, err := s.files.CountDocuments(ctx, bson.M{"_id": fileID})
	if err != nil {
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return count > 0, nil
}

func (s *MongoFileService) ListFilesForTenant(ctx context.Context, tenantID string) ([]string, error) {
	cursor, err := s.files.Find(ctx, bson.M{"tenant_id": tenantID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant files: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode file record: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("tenant file listing interrupted: %w", err)
	}
	return ids, nil
}
