package port

import (
	"context"

	"github.com/bnema/upscaler/internal/domain"
)

type JobQueue interface {
	// Enqueue never blocks. It returns false when the queue is full.
	Enqueue(d domain.Descriptor) bool
	// Dequeue blocks until a descriptor is available or ctx is done.
	Dequeue(ctx context.Context) (domain.Descriptor, error)
	Len() int
	Cap() int
}
