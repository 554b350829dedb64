package gcs

import (
	"context"
)

// StorageService provides an interface for cloud storage operations on
// statement exports. It lets the importer run against a fake in tests.
type StorageService interface {
	// UploadFile uploads a local file to a bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// FetchFromGCS downloads object bytes from a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// ExtractFilenameFromGCSURI extracts the object's base name from a gs:// URI.
	ExtractFilenameFromGCSURI(uri string) string
}
