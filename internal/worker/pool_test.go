package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"qbwc-webhook-adapter/internal/models"
)

type recordingProcessor struct {
	mu    sync.Mutex
	raws  []string
	err   error
	block chan struct{}
}

func (p *recordingProcessor) Process(_ context.Context, job models.Job) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raws = append(p.raws, job.Raw)
	return p.err
}

func (p *recordingProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.raws...)
}

func TestPoolProcessesJobs(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	testCases := []struct {
		name         string
		processorErr error
	}{
		{name: "Success", processorErr: nil},
		{name: "Storage error is logged, not fatal", processorErr: &ErrStorage{Op: "archive", Err: errors.New("disk full")}},
		{name: "Skipped answer", processorErr: &ErrSkipped{Reason: "unclassified"}},
		{name: "Unknown error", processorErr: errors.New("boom")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &recordingProcessor{err: tc.processorErr}
			pool := NewPool(10, logger, proc)
			pool.Start(1)

			for _, raw := range []string{"a1", "a2", "a3"} {
				pool.Submit(models.Job{Raw: raw})
			}
			pool.Stop()

			got := proc.seen()
			want := []string{"a1", "a2", "a3"}
			if len(got) != len(want) {
				t.Fatalf("processed %d jobs, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("job %d: got %q, want %q (one worker keeps receipt order)", i, got[i], want[i])
				}
			}
		})
	}
}

func TestPoolRunsInlineWhenFull(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	proc := &recordingProcessor{}
	// No buffer and no workers: every send misses.
	pool := NewPool(0, logger, proc)

	pool.Submit(models.Job{Raw: "inline"})

	if got := proc.seen(); len(got) != 1 || got[0] != "inline" {
		t.Fatalf("expected the job to run inline, got %v", got)
	}
}

func TestPoolRunsInlineAfterStop(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	proc := &recordingProcessor{}
	pool := NewPool(5, logger, proc)
	pool.Start(2)
	pool.Stop()
	pool.Stop() // second call is a no-op

	pool.Submit(models.Job{Raw: "late"})

	if got := proc.seen(); len(got) != 1 || got[0] != "late" {
		t.Fatalf("expected the late job to run inline, got %v", got)
	}
}

func TestPoolStopDrainsBufferedJobs(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	proc := &recordingProcessor{block: make(chan struct{})}
	pool := NewPool(5, logger, proc)
	pool.Start(1)

	for i := 0; i < 3; i++ {
		pool.Submit(models.Job{Raw: "queued"})
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned before buffered jobs were processed")
	case <-time.After(20 * time.Millisecond):
	}
	close(proc.block)
	<-done

	if got := len(proc.seen()); got != 3 {
		t.Errorf("processed %d jobs, want 3", got)
	}
}
