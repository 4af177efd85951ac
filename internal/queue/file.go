package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"qbwc-webhook-adapter/internal/filestore"
	"qbwc-webhook-adapter/internal/metrics"
)

// FileQueue keeps the queue as a JSON array in one file. Every mutation
// rewrites the whole array. The mutex serialises goroutines of one handle
// and an flock on "<path>.lock" serialises handles and processes, so the
// CLI can clear the queue next to a live server.
type FileQueue struct {
	mu    sync.Mutex
	path  string
	flock *flock.Flock
}

// NewFileQueue opens the queue at path, creating an empty one if the file
// does not exist yet.
func NewFileQueue(path string) (*FileQueue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	q := &FileQueue{path: path, flock: flock.New(path + ".lock")}
	unlock, err := q.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	items, err := q.load()
	if err != nil {
		return nil, err
	}
	if items == nil {
		if err := q.store([]string{}); err != nil {
			return nil, err
		}
	}
	metrics.QueueDepth.Set(float64(len(items)))
	return q, nil
}

func (q *FileQueue) Enqueue(_ context.Context, payload string) error {
	unlock, err := q.lock()
	if err != nil {
		return err
	}
	defer unlock()

	items, err := q.load()
	if err != nil {
		return err
	}
	return q.store(append(items, payload))
}

func (q *FileQueue) Dequeue(_ context.Context) (string, bool, error) {
	unlock, err := q.lock()
	if err != nil {
		return "", false, err
	}
	defer unlock()

	items, err := q.load()
	if err != nil {
		return "", false, err
	}
	if len(items) == 0 {
		return "", false, nil
	}
	if err := q.store(items[1:]); err != nil {
		return "", false, err
	}
	return items[0], true, nil
}

func (q *FileQueue) Peek(_ context.Context) (string, bool, error) {
	unlock, err := q.lock()
	if err != nil {
		return "", false, err
	}
	defer unlock()

	items, err := q.load()
	if err != nil || len(items) == 0 {
		return "", false, err
	}
	return items[0], true, nil
}

// Clear drops every item. A corrupt store is reset rather than reported,
// and counts as zero dropped items.
func (q *FileQueue) Clear(_ context.Context) (int, error) {
	unlock, err := q.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	items, _ := q.load()
	if err := q.store([]string{}); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (q *FileQueue) Len(_ context.Context) (int, error) {
	unlock, err := q.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()

	items, err := q.load()
	return len(items), err
}

func (q *FileQueue) List(_ context.Context) ([]string, error) {
	unlock, err := q.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	items, err := q.load()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// lock takes the in-process mutex, then the file lock.
func (q *FileQueue) lock() (func(), error) {
	q.mu.Lock()
	if err := q.flock.Lock(); err != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("lock queue %s: %w", q.path, err)
	}
	return func() {
		_ = q.flock.Unlock()
		q.mu.Unlock()
	}, nil
}

// load returns nil, nil when the file does not exist.
func (q *FileQueue) load() ([]string, error) {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue %s: %w", q.path, err)
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, q.path, err)
	}
	if items == nil {
		// A literal "null" is not a queue.
		return nil, fmt.Errorf("%w: %s: not a JSON array", ErrCorrupt, q.path)
	}
	return items, nil
}

func (q *FileQueue) store(items []string) error {
	if err := filestore.WriteJSON(q.path, items); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	metrics.QueueDepth.Set(float64(len(items)))
	return nil
}
