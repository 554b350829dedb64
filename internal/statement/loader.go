package statement

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dvloznov/recurring-tracker/internal/gcs"
	"github.com/dvloznov/recurring-tracker/internal/logger"
)

// Loader reads exports from the local filesystem or from Cloud Storage.
type Loader struct {
	storage gcs.StorageService
}

// NewLoader creates a Loader. storage may be nil when only local paths are used.
func NewLoader(storage gcs.StorageService) *Loader {
	return &Loader{storage: storage}
}

// Load reads and parses the export at src, which is either a local path or
// a gs://bucket/object URI.
func (l *Loader) Load(ctx context.Context, src string) (*Result, error) {
	log := logger.FromContext(ctx)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(src, "gs://") {
		if l.storage == nil {
			return nil, fmt.Errorf("Load: no storage service configured for %s", src)
		}
		data, err = l.storage.FetchFromGCS(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("Load: fetch: %w", err)
		}
		log.Debug().Str("file", l.storage.ExtractFilenameFromGCSURI(src)).Int("bytes", len(data)).Msg("Fetched statement from GCS")
	} else {
		data, err = os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("Load: read: %w", err)
		}
	}

	res, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	for _, skipped := range res.Skipped {
		log.Warn().Int("line", skipped.Line).Err(skipped.Err).Msg("Skipping malformed statement row")
	}
	log.Info().Int("records", len(res.Records)).Int("skipped", len(res.Skipped)).Msg("Loaded statement")
	return res, nil
}
