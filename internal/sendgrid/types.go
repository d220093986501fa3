package sendgrid

import (
	"fmt"
	"strings"
	"time"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
)

// Import job statuses reported by GET /v3/marketing/contacts/imports/{id}.
const (
	ImportPending   = "pending"
	ImportCompleted = "completed"
	ImportFailed    = "failed"
	ImportErrored   = "errored"
)

// UpsertRequest is the body of PUT /v3/marketing/contacts.
type UpsertRequest struct {
	ListIDs  []string         `json:"list_ids,omitempty"`
	Contacts []domain.Contact `json:"contacts"`
}

// UpsertResponse carries the asynchronous import job id.
type UpsertResponse struct {
	JobID string `json:"job_id"`
}

// ImportResults holds the aggregate counts of a finished import job.
type ImportResults struct {
	RequestedCount int    `json:"requested_count"`
	CreatedCount   int    `json:"created_count"`
	UpdatedCount   int    `json:"updated_count"`
	DeletedCount   int    `json:"deleted_count"`
	ErroredCount   int    `json:"errored_count"`
	ErrorsURL      string `json:"errors_url,omitempty"`
}

// ImportStatus is the polled state of an import job.
type ImportStatus struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	JobType    string        `json:"job_type"`
	Results    ImportResults `json:"results"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// Completed reports whether the job finished successfully.
func (s ImportStatus) Completed() bool { return s.Status == ImportCompleted }

// Terminal reports whether polling can stop.
func (s ImportStatus) Terminal() bool {
	switch s.Status {
	case ImportCompleted, ImportFailed, ImportErrored:
		return true
	}
	return false
}

// SuppressionRequest is the body of POST /v3/asm/suppressions/global.
type SuppressionRequest struct {
	RecipientEmails []string `json:"recipient_emails"`
}

// SuppressionResponse echoes the emails that were suppressed.
type SuppressionResponse struct {
	RecipientEmails []string `json:"recipient_emails"`
}

// List is a marketing contact list.
type List struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactCount int    `json:"contact_count"`
}

// ListsResponse is one page of GET /v3/marketing/lists.
type ListsResponse struct {
	Result   []List       `json:"result"`
	Metadata ListMetadata `json:"_metadata"`
}

// ListMetadata holds pagination links.
type ListMetadata struct {
	Self  string `json:"self,omitempty"`
	Next  string `json:"next,omitempty"`
	Count int    `json:"count,omitempty"`
}

// APIError is a non-2xx response from SendGrid.
type APIError struct {
	StatusCode int
	Body       string
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("sendgrid API error (status %d): %s", e.StatusCode, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("sendgrid API error (status %d): %s", e.StatusCode, e.Body)
}

// errorEnvelope is SendGrid's standard error body.
type errorEnvelope struct {
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}
