package sink

import (
	"time"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
	"github.com/hotgluexyz/target-sendgrid/internal/sendgrid"
)

// UpsertResult describes the upsert and polling phase of a batch.
// Err is set when the phase failed; the batch still proceeds.
type UpsertResult struct {
	Submitted int
	ListIDs   []string
	JobID     string
	Status    *sendgrid.ImportStatus
	Waited    time.Duration
	Entries   []domain.StateEntry
	Err       error
}

// UnsubscribeResult describes the global suppression sub-call.
type UnsubscribeResult struct {
	Requested int
	Confirmed int
	Entries   []domain.StateEntry
	Err       error
}

// BatchReport is returned by ProcessBatch.
type BatchReport struct {
	ID          string
	Kind        Kind
	Records     int
	Upsert      *UpsertResult
	Unsubscribe *UnsubscribeResult
	Entries     []domain.StateEntry
}

// Failed reports whether any remote phase of the batch failed.
func (r *BatchReport) Failed() bool {
	if r == nil {
		return false
	}
	return (r.Upsert != nil && r.Upsert.Err != nil) ||
		(r.Unsubscribe != nil && r.Unsubscribe.Err != nil)
}

// countedEntries converts aggregate import counts into positional state
// entries: successes (created + deleted), then failures, then updates.
func countedEntries(r sendgrid.ImportResults) []domain.StateEntry {
	success := r.CreatedCount + r.DeletedCount
	entries := make([]domain.StateEntry, 0, success+r.ErroredCount+r.UpdatedCount)
	for i := 0; i < success; i++ {
		entries = append(entries, domain.SuccessEntry())
	}
	for i := 0; i < r.ErroredCount; i++ {
		entries = append(entries, domain.FailEntry())
	}
	for i := 0; i < r.UpdatedCount; i++ {
		entries = append(entries, domain.UpdatedEntry())
	}
	return entries
}
