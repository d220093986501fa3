// Package sink writes batches of contact records to SendGrid Marketing
// Contacts and reports one checkpoint entry per affected record.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
	"github.com/hotgluexyz/target-sendgrid/internal/metrics"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/logger"
	"github.com/hotgluexyz/target-sendgrid/internal/sendgrid"
)

// Kind names the stream a sink serves. All kinds behave the same.
type Kind string

const (
	KindContacts  Kind = "Contacts"
	KindCustomers Kind = "Customers"
)

// API is the subset of the SendGrid client a sink calls.
type API interface {
	ListFetcher
	UpsertContacts(ctx context.Context, req sendgrid.UpsertRequest) (*sendgrid.UpsertResponse, error)
	SuppressGlobal(ctx context.Context, emails []string) (*sendgrid.SuppressionResponse, error)
}

// ImportWaiter blocks until an import job settles.
type ImportWaiter interface {
	WaitForImport(ctx context.Context, jobID string) (*sendgrid.ImportStatus, error)
}

// Checkpointer is the checkpoint store as seen by a sink.
type Checkpointer interface {
	Latest(ctx context.Context, stream string) (*domain.StreamState, error)
	Init(ctx context.Context, stream string) error
	Update(ctx context.Context, stream string, entries ...domain.StateEntry) error
}

// Options wires a sink's collaborators.
type Options struct {
	API     API
	Poller  ImportWaiter
	Store   Checkpointer
	Metrics *metrics.Metrics

	// ListName and ListID select the target list. Both empty means no list.
	ListName string
	ListID   string
}

// ContactSink processes contact batches for one stream.
type ContactSink struct {
	kind     Kind
	api      API
	poller   ImportWaiter
	store    Checkpointer
	metrics  *metrics.Metrics
	listName string
	listID   string
	now      func() time.Time
}

// New creates a sink for the given stream kind.
func New(kind Kind, opts Options) (*ContactSink, error) {
	if kind == "" {
		return nil, errors.New("sink kind is required")
	}
	if opts.API == nil || opts.Poller == nil || opts.Store == nil {
		return nil, errors.New("sink requires an API client, a poller and a state store")
	}
	return &ContactSink{
		kind:     kind,
		api:      opts.API,
		poller:   opts.Poller,
		store:    opts.Store,
		metrics:  opts.Metrics,
		listName: opts.ListName,
		listID:   opts.ListID,
		now:      time.Now,
	}, nil
}

// Stream returns the checkpoint stream name.
func (s *ContactSink) Stream() string { return string(s.kind) }

// ProcessBatch writes one batch and flushes its state entries.
//
// Remote upsert and unsubscribe failures are recorded in the report and do
// not fail the batch. An error is returned only for list resolution,
// cancellation and checkpoint store failures; nothing is flushed then.
func (s *ContactSink) ProcessBatch(ctx context.Context, records []domain.RawContact) (*BatchReport, error) {
	report := &BatchReport{ID: uuid.New().String(), Kind: s.kind, Records: len(records)}
	log := logger.With("stream", s.Stream(), "batch_id", report.ID)

	if err := s.ensureState(ctx); err != nil {
		s.metrics.ObserveFailure(s.Stream(), metrics.PhaseState)
		return report, err
	}
	if len(records) == 0 {
		log.Debug("empty batch, nothing to send")
		return report, nil
	}

	contacts := TransformAll(records)

	var listIDs []string
	if s.listName != "" || s.listID != "" {
		id, err := ResolveListID(ctx, s.api, s.listName, s.listID)
		if err != nil {
			s.metrics.ObserveFailure(s.Stream(), metrics.PhaseListResolve)
			return report, err
		}
		listIDs = []string{id}
	}

	unsubscribe, subscribed := Partition(contacts)

	report.Upsert = s.upsert(ctx, log, SubmissionOrder(unsubscribe, subscribed), listIDs)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	report.Entries = append(report.Entries, report.Upsert.Entries...)

	if len(unsubscribe) > 0 {
		report.Unsubscribe = s.unsubscribe(ctx, log, unsubscribe)
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Entries = append(report.Entries, report.Unsubscribe.Entries...)
	}

	if len(report.Entries) > 0 {
		if err := s.store.Update(ctx, s.Stream(), report.Entries...); err != nil {
			s.metrics.ObserveFailure(s.Stream(), metrics.PhaseState)
			return report, fmt.Errorf("flushing state for %s: %w", s.Stream(), err)
		}
	}
	s.metrics.ObserveBatch(s.Stream(), len(records), report.Entries)

	log.Info("batch processed",
		"records", len(records),
		"unsubscribes", len(unsubscribe),
		"state_entries", len(report.Entries),
	)
	return report, nil
}

func (s *ContactSink) ensureState(ctx context.Context) error {
	latest, err := s.store.Latest(ctx, s.Stream())
	if err != nil {
		return fmt.Errorf("reading state for %s: %w", s.Stream(), err)
	}
	if latest != nil {
		return nil
	}
	if err := s.store.Init(ctx, s.Stream()); err != nil {
		return fmt.Errorf("initializing state for %s: %w", s.Stream(), err)
	}
	return nil
}

func (s *ContactSink) upsert(ctx context.Context, log *logger.Entry, contacts []domain.Contact, listIDs []string) *UpsertResult {
	result := &UpsertResult{Submitted: len(contacts), ListIDs: listIDs}

	resp, err := s.api.UpsertContacts(ctx, sendgrid.UpsertRequest{ListIDs: listIDs, Contacts: contacts})
	if err != nil {
		s.metrics.ObserveFailure(s.Stream(), metrics.PhaseUpsert)
		log.Error("contact upsert failed", "contacts", len(contacts), "error", err)
		result.Err = err
		return result
	}
	result.JobID = resp.JobID
	log.Info("contacts submitted", "contacts", len(contacts), "job_id", resp.JobID)

	started := s.now()
	status, err := s.poller.WaitForImport(ctx, resp.JobID)
	result.Waited = s.now().Sub(started)
	s.metrics.ObserveImportWait(s.Stream(), result.Waited)
	result.Status = status

	if err != nil {
		s.metrics.ObserveFailure(s.Stream(), metrics.PhasePoll)
		result.Err = err
		if status == nil {
			log.Error("import job did not settle", "job_id", resp.JobID, "error", err)
			return result
		}
		log.Error("import job failed", "job_id", resp.JobID, "status", status.Status, "error", err)
	}

	result.Entries = countedEntries(status.Results)
	log.Info("import job settled",
		"job_id", resp.JobID,
		"status", status.Status,
		"created", status.Results.CreatedCount,
		"updated", status.Results.UpdatedCount,
		"deleted", status.Results.DeletedCount,
		"errored", status.Results.ErroredCount,
	)
	return result
}

func (s *ContactSink) unsubscribe(ctx context.Context, log *logger.Entry, unsubscribe []domain.Contact) *UnsubscribeResult {
	emails := suppressionEmails(unsubscribe)
	result := &UnsubscribeResult{Requested: len(emails)}
	if len(emails) == 0 {
		log.Warn("unsubscribe records carry no email, skipping suppression", "records", len(unsubscribe))
		return result
	}

	resp, err := s.api.SuppressGlobal(ctx, emails)
	if err != nil {
		s.metrics.ObserveFailure(s.Stream(), metrics.PhaseUnsubscribe)
		log.Error("global suppression failed", "emails", len(emails), "error", err)
		result.Err = err
		return result
	}

	result.Confirmed = len(resp.RecipientEmails)
	log.Info("contacts unsubscribed", "requested", len(emails), "confirmed", result.Confirmed)

	result.Entries = make([]domain.StateEntry, len(unsubscribe))
	for i := range result.Entries {
		result.Entries[i] = domain.SuccessEntry()
	}
	return result
}
