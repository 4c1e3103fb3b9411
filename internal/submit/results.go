package submit

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"garmentstudio/internal/domain"
)

// Results accumulates produced output references for display, newest first.
// Records live until the process exits; there is no removal operation.
type Results struct {
	mu      sync.Mutex
	records []domain.OutputRecord
}

func NewResults() *Results {
	return &Results{}
}

// Add prepends a record with a fresh unique id.
func (r *Results) Add(url string) domain.OutputRecord {
	record := domain.OutputRecord{
		ID:        uuid.NewString(),
		URL:       url,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append([]domain.OutputRecord{record}, r.records...)
	return record
}

// All returns a snapshot of the records, most recent first.
func (r *Results) All() []domain.OutputRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.OutputRecord, len(r.records))
	copy(out, r.records)
	return out
}
