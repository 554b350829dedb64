package gcsuploader

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/recurring-tracker/internal/gcs"
	"github.com/dvloznov/recurring-tracker/internal/logger"
)

// GCSStorageService is the Cloud Storage backed gcs.StorageService used by
// the statement loader and the upload command.
type GCSStorageService struct{}

func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return UploadFile(ctx, bucketName, objectName, filePath)
}

func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return FetchFromGCS(ctx, gcsURI)
}

func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return ExtractFilenameFromGCSURI(uri)
}

// UploadStatement stores a user's export under StatementObjectName and
// returns the gs:// URI later scans can read it from.
func UploadStatement(ctx context.Context, storage gcs.StorageService, bucketName, userID, filePath string, now time.Time) (string, error) {
	object := StatementObjectName(userID, filePath, now)
	if err := storage.UploadFile(ctx, bucketName, object, filePath); err != nil {
		return "", fmt.Errorf("UploadStatement: %w", err)
	}
	uri := fmt.Sprintf("gs://%s/%s", bucketName, object)
	log := logger.FromContext(ctx)
	log.Info().
		Str("user", logger.MaskUserID(userID)).
		Str("gcs_uri", uri).
		Msg("Uploaded statement export")
	return uri, nil
}

var _ gcs.StorageService = (*GCSStorageService)(nil)
