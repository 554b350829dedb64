package statement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStorage struct {
	objects map[string][]byte
	fetched []string
}

func (m *mockStorage) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return nil
}

func (m *mockStorage) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	m.fetched = append(m.fetched, gcsURI)
	data, ok := m.objects[gcsURI]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *mockStorage) ExtractFilenameFromGCSURI(uri string) string {
	return filepath.Base(uri)
}

const sampleExport = "date,description,amount,type\n" +
	"2024-01-05,SPOTIFY,9.99,expense\n" +
	"2024-02-05,SPOTIFY,9.99,expense\n"

func TestLoader_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0o600))

	res, err := NewLoader(nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
}

func TestLoader_GCS(t *testing.T) {
	storage := &mockStorage{objects: map[string][]byte{
		"gs://bucket/statements/export.csv": []byte(sampleExport),
	}}
	loader := NewLoader(storage)

	res, err := loader.Load(context.Background(), "gs://bucket/statements/export.csv")
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, []string{"gs://bucket/statements/export.csv"}, storage.fetched)

	_, err = loader.Load(context.Background(), "gs://bucket/missing.csv")
	assert.ErrorContains(t, err, "object not found")
}

func TestLoader_GCSWithoutStorage(t *testing.T) {
	_, err := NewLoader(nil).Load(context.Background(), "gs://bucket/export.csv")
	assert.Error(t, err)
}
