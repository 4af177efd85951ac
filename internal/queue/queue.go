// Package queue is the durable FIFO of outbound qbXML requests waiting for
// the connector.
package queue

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when the backing store cannot be read as a queue.
// It is never treated as an empty queue.
var ErrCorrupt = errors.New("queue store is corrupt")

// Queue is a strict FIFO of opaque request payloads. An item leaves the
// queue only through a successful Dequeue or Clear.
type Queue interface {
	Enqueue(ctx context.Context, payload string) error
	// Dequeue removes and returns the head; ok is false when empty.
	Dequeue(ctx context.Context) (payload string, ok bool, err error)
	// Peek returns the head without removing it.
	Peek(ctx context.Context) (payload string, ok bool, err error)
	// Clear empties the queue and reports how many items it dropped.
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
	List(ctx context.Context) ([]string, error)
}
