package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"musaix/core/analysis"
	"musaix/logger"
	"musaix/model"
	"musaix/storage"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// mimeTypes maps audio file extensions to their declared MIME type.
var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// Watcher ingests audio files dropped into a local directory: each new file
// is uploaded to the audio bucket and pushed through the same pipeline as a
// direct upload.
type Watcher struct {
	dir     string
	bucket  string
	ownerID string // user the imported files are attributed to
	ingest  *analysis.IngestService
}

// NewWatcher creates a Watcher over dir.
func NewWatcher(dir, bucket, ownerID string, ingest *analysis.IngestService) *Watcher {
	return &Watcher{dir: dir, bucket: bucket, ownerID: ownerID, ingest: ingest}
}

// Run watches the directory until the context is canceled. Files already
// present at start are not imported; only newly created ones are.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create directory watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logger.Info("Import watcher started", logger.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			mimeType, ok := mimeTypes[strings.ToLower(filepath.Ext(event.Name))]
			if !ok {
				continue
			}
			// Writers may still be flushing right after Create.
			time.Sleep(500 * time.Millisecond)
			if err := w.importFile(ctx, event.Name, mimeType); err != nil {
				logger.Error("Failed to import dropped file",
					logger.String("path", event.Name),
					logger.ErrorField(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Directory watcher error", logger.ErrorField(err))
		}
	}
}

// importFile uploads one local file and synthesizes its storage event.
func (w *Watcher) importFile(ctx context.Context, path, mimeType string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	objectName := filepath.Base(path)
	if _, err := storage.UploadAudio(ctx, w.bucket, objectName, f, stat.Size(), mimeType); err != nil {
		return err
	}

	event := &model.StorageEvent{
		Type:  "INSERT",
		Table: "objects",
		Record: model.StorageRecord{
			ID:       uuid.NewString(),
			Name:     objectName,
			Owner:    w.ownerID,
			BucketID: w.bucket,
			Metadata: model.StorageMetadata{
				MimeType: mimeType,
				Size:     stat.Size(),
			},
		},
	}

	result, err := w.ingest.ProcessStorageEvent(ctx, event)
	if err != nil {
		return err
	}

	logger.Info("Imported audio file",
		logger.String("file", objectName),
		logger.String("analysisId", result.AnalysisID))
	return nil
}
