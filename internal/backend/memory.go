package backend

import (
	"context"
	"sync"
)

// MemoryBackend accepts every run and remembers it. Dev mode and tests use
// it in place of a real orchestrator; tests can queue failures to exercise
// the retry path.
type MemoryBackend struct {
	mu       sync.Mutex
	accepted []Run
	failures []error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// FailNext queues errors returned by subsequent Submit calls, in order,
// before accepting again.
func (b *MemoryBackend) FailNext(errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, errs...)
}

func (b *MemoryBackend) Submit(_ context.Context, run Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.failures) > 0 {
		err := b.failures[0]
		b.failures = b.failures[1:]
		return err
	}
	b.accepted = append(b.accepted, run)
	return nil
}

// Accepted returns a snapshot of the runs the backend admitted.
func (b *MemoryBackend) Accepted() []Run {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Run, len(b.accepted))
	copy(out, b.accepted)
	return out
}
