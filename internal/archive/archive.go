// Package archive keeps a copy of every parsed connector answer on disk,
// one file per answer, grouped by entity folder.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/filestore"
	"qbwc-webhook-adapter/internal/metrics"
	"qbwc-webhook-adapter/internal/models"
)

// ErrNotFound is returned by Latest when nothing is archived for a kind.
var ErrNotFound = errors.New("no archived record")

// Writer stores answers under dir/<folder>/<folder>_<stamp>.json.
type Writer struct {
	dir   string
	clock *filestore.Clock
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, clock: filestore.NewClock()}
}

// Dir returns the archive root.
func (w *Writer) Dir() string { return w.dir }

// Write archives rec under the kind's folder and returns the file path.
// Stamps strictly increase, so a later write never sorts before an
// earlier one.
func (w *Writer) Write(kind entity.Kind, rec models.RawAnswerRecord) (string, error) {
	stamp := w.clock.Stamp(rec.ReceivedAt)
	path := filepath.Join(w.dir, kind.Folder, fmt.Sprintf("%s_%d.json", kind.Folder, stamp))
	if err := filestore.WriteJSON(path, rec); err != nil {
		metrics.ArchiveWrites.WithLabelValues(kind.Name, "error").Inc()
		return "", fmt.Errorf("archive %s: %w", kind.Name, err)
	}
	metrics.ArchiveWrites.WithLabelValues(kind.Name, "ok").Inc()
	return path, nil
}

// Latest returns the classified record with the greatest stamp for kind.
// Unclassified answers share the first kind's folder and are skipped.
func (w *Writer) Latest(kind entity.Kind) (*models.RawAnswerRecord, error) {
	paths, err := w.newestFirst(kind)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read archive %s: %w", path, err)
		}
		var rec models.RawAnswerRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode archive %s: %w", path, err)
		}
		if rec.Classified {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrNotFound, kind.Name)
}

// newestFirst lists the kind's archive files by descending stamp.
func (w *Writer) newestFirst(kind entity.Kind) ([]string, error) {
	folder := filepath.Join(w.dir, kind.Folder)
	entries, err := os.ReadDir(folder)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, kind.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("list archive %s: %w", folder, err)
	}

	type stamped struct {
		stamp int64
		path  string
	}
	prefix := kind.Folder + "_"
	var files []stamped
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		stamp, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, stamped{stamp: stamp, path: filepath.Join(folder, name)})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, kind.Name)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].stamp > files[j].stamp })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}
