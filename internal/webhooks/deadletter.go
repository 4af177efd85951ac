package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"qbwc-webhook-adapter/internal/filestore"
	"qbwc-webhook-adapter/internal/models"
)

// DeadLetters persists failed deliveries, one JSON file each, for manual
// replay.
type DeadLetters struct {
	dir   string
	clock *filestore.Clock
}

func NewDeadLetters(dir string) *DeadLetters {
	return &DeadLetters{dir: dir, clock: filestore.NewClock()}
}

// Dir returns the dead-letter directory.
func (d *DeadLetters) Dir() string { return d.dir }

// Write stores dl as <event_type>_<stamp>.json, dots in the event type
// turned into underscores.
func (d *DeadLetters) Write(dl models.DeadLetter) (string, error) {
	stamp := d.clock.Stamp(dl.FailedAt)
	name := fmt.Sprintf("%s_%d.json", strings.ReplaceAll(dl.EventType, ".", "_"), stamp)
	path := filepath.Join(d.dir, name)
	if err := filestore.WriteJSON(path, dl); err != nil {
		return "", fmt.Errorf("write dead letter: %w", err)
	}
	return path, nil
}

// StoredDeadLetter is a dead letter read back from disk.
type StoredDeadLetter struct {
	File string `json:"file" yaml:"file"`
	models.DeadLetter
}

// List reads every dead letter, oldest file name first. A missing
// directory means there are none.
func (d *DeadLetters) List() ([]StoredDeadLetter, error) {
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]StoredDeadLetter, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(d.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read dead letter %s: %w", name, err)
		}
		var dl models.DeadLetter
		if err := json.Unmarshal(data, &dl); err != nil {
			return nil, fmt.Errorf("decode dead letter %s: %w", name, err)
		}
		out = append(out, StoredDeadLetter{File: name, DeadLetter: dl})
	}
	return out, nil
}
