package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"

	"github.com/brisppy/battlelog-archiver/pkg/logging"
)

// Sink persists bundles to a blob bucket under a profile-scoped prefix.
// Any write failure is fatal for the run.
type Sink struct {
	bucket *blob.Bucket
	logger zerolog.Logger
}

// NewSink wraps an already-open bucket.
func NewSink(bucket *blob.Bucket) *Sink {
	return &Sink{
		bucket: bucket,
		logger: logging.NewLogger("archive-sink"),
	}
}

// NewLocalSink opens a sink over a local directory, creating it if missing.
func NewLocalSink(dir string) (*Sink, error) {
	// MetadataDontWrite keeps the archive tree free of .attrs sidecars;
	// the files are plain JSON and need no stored attributes.
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("open archive directory %s: %w", dir, err)
	}
	return NewSink(bucket), nil
}

// Persist writes the complete bundle under <profileName>/. Subdirectories
// are created as needed by the bucket driver.
func (s *Sink) Persist(ctx context.Context, profileName string, bundle *Bundle) error {
	for _, doc := range bundle.metadataFiles() {
		data := doc.Data
		if data == nil {
			data = json.RawMessage(`{}`)
		}
		if err := s.write(ctx, path.Join(profileName, doc.Name), data); err != nil {
			return err
		}
	}

	reportList, err := json.Marshal(bundle.ReportList)
	if err != nil {
		return fmt.Errorf("marshal report list: %w", err)
	}
	if err := s.write(ctx, path.Join(profileName, "report_list.json"), reportList); err != nil {
		return err
	}

	for _, report := range bundle.Reports {
		key := path.Join(profileName, "reports", report.ID+".json")
		if err := s.write(ctx, key, report.Body); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("profile", profileName).
		Int("stubs", len(bundle.ReportList)).
		Int("reports", len(bundle.Reports)).
		Msg("Archive written")

	return nil
}

// write stores one document.
func (s *Sink) write(ctx context.Context, key string, data []byte) error {
	if err := s.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{
		ContentType: "application/json",
	}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("Wrote archive document")
	return nil
}

// Close releases the underlying bucket.
func (s *Sink) Close() error {
	return s.bucket.Close()
}
