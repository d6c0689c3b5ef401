package memory

import (
	"context"

	"github.com/bnema/upscaler/internal/domain"
	"github.com/bnema/upscaler/internal/port"
)

// Queue is a bounded FIFO of job descriptors backed by a buffered channel.
type Queue struct {
	jobs chan domain.Descriptor
}

func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{jobs: make(chan domain.Descriptor, capacity)}
}

func (q *Queue) Enqueue(d domain.Descriptor) bool {
	select {
	case q.jobs <- d:
		return true
	default:
		return false
	}
}

func (q *Queue) Dequeue(ctx context.Context) (domain.Descriptor, error) {
	// A cancelled context wins over waiting jobs.
	if err := ctx.Err(); err != nil {
		return domain.Descriptor{}, err
	}
	select {
	case d := <-q.jobs:
		return d, nil
	case <-ctx.Done():
		return domain.Descriptor{}, ctx.Err()
	}
}

func (q *Queue) Len() int { return len(q.jobs) }

func (q *Queue) Cap() int { return cap(q.jobs) }

var _ port.JobQueue = (*Queue)(nil)
