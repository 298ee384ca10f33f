package core

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// BatchResult collects per-item failures from a parallel fan-out so that
// one bad contract does not abort the rest of a bulk load. The run id ties
// log lines from the same batch together.
type BatchResult struct {
	RunID string

	mu   sync.Mutex
	errs []error
}

func newBatchResult() *BatchResult {
	return &BatchResult{RunID: uuid.NewString()}
}

// Record stores a failure for one item of the batch.
func (b *BatchResult) Record(itemID int64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, fmt.Errorf("item %d: %w", itemID, err))
}

func (b *BatchResult) Failed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.errs)
}

// Errors returns the recorded failures in arrival order.
func (b *BatchResult) Errors() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]error, len(b.errs))
	copy(out, b.errs)
	return out
}
