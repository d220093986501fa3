// Package target drives the sinks from a newline-delimited JSON message
// stream and reports checkpoint state back on its output.
package target

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/distlock"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/logger"
	"github.com/hotgluexyz/target-sendgrid/internal/sink"
	"github.com/hotgluexyz/target-sendgrid/internal/state"
)

// LockKey guards against two runners sharing one state store.
const LockKey = "target-sendgrid"

const maxLineBytes = 16 << 20

var (
	// ErrLockHeld is returned when another runner holds the process lock.
	ErrLockHeld = errors.New("another target-sendgrid run holds the lock")

	// ErrBatchFailed is returned in strict mode when any batch reported a
	// failed remote phase.
	ErrBatchFailed = errors.New("one or more batches failed")
)

// BatchProcessor is a sink as seen by the runner.
type BatchProcessor interface {
	Stream() string
	ProcessBatch(ctx context.Context, records []domain.RawContact) (*sink.BatchReport, error)
}

// Options configures a Runner.
type Options struct {
	Sinks     []BatchProcessor
	Store     state.Store
	Lock      distlock.DistLock
	Output    io.Writer
	BatchSize int
	Strict    bool
}

// Summary totals one run.
type Summary struct {
	Batches       int
	Records       int
	Dropped       int
	FailedBatches int
	StateEntries  int
}

// Runner reads messages, buffers records per stream and drains full
// buffers through the matching sink, one batch at a time.
type Runner struct {
	sinks     map[string]BatchProcessor
	streams   []string
	store     state.Store
	lock      distlock.DistLock
	out       io.Writer
	batchSize int
	strict    bool
}

// NewRunner validates options and builds a runner.
func NewRunner(opts Options) (*Runner, error) {
	if len(opts.Sinks) == 0 {
		return nil, errors.New("at least one sink is required")
	}
	if opts.Store == nil || opts.Output == nil {
		return nil, errors.New("runner requires a state store and an output writer")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	r := &Runner{
		sinks:     make(map[string]BatchProcessor, len(opts.Sinks)),
		store:     opts.Store,
		lock:      opts.Lock,
		out:       opts.Output,
		batchSize: opts.BatchSize,
		strict:    opts.Strict,
	}
	if r.lock == nil {
		r.lock = distlock.NopLock{}
	}
	for _, s := range opts.Sinks {
		if _, dup := r.sinks[s.Stream()]; dup {
			return nil, fmt.Errorf("duplicate sink for stream %s", s.Stream())
		}
		r.sinks[s.Stream()] = s
		r.streams = append(r.streams, s.Stream())
	}
	sort.Strings(r.streams)
	return r, nil
}

// Run consumes in until EOF. Buffers are drained when they reach the batch
// size and once more at end of input.
func (r *Runner) Run(ctx context.Context, in io.Reader) (*Summary, error) {
	ok, err := r.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("releasing run lock failed", "error", err)
		}
	}()

	if ka, ok := r.lock.(interface{ KeepAlive(context.Context) }); ok {
		kaCtx, stop := context.WithCancel(ctx)
		defer stop()
		go ka.KeepAlive(kaCtx)
	}

	summary := &Summary{}
	buffers := make(map[string][]domain.RawContact)
	warned := make(map[string]bool)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		msg, err := ParseMessage(raw)
		if err != nil {
			return summary, fmt.Errorf("line %d: %w", line, err)
		}

		switch msg.Type {
		case TypeRecord:
			if _, ok := r.sinks[msg.Stream]; !ok {
				summary.Dropped++
				if !warned[msg.Stream] {
					logger.Warn("no sink for stream, dropping its records", "stream", msg.Stream)
					warned[msg.Stream] = true
				}
				continue
			}
			summary.Records++
			buffers[msg.Stream] = append(buffers[msg.Stream], msg.Record)
			if len(buffers[msg.Stream]) >= r.batchSize {
				if err := r.drain(ctx, msg.Stream, buffers, summary); err != nil {
					return summary, err
				}
			}
		case TypeSchema:
			logger.Debug("schema received", "stream", msg.Stream, "key_properties", msg.KeyProperties)
		case TypeActivateVersion:
			logger.Debug("activate version received", "stream", msg.Stream, "version", msg.Version)
		case TypeState:
			logger.Debug("upstream state received", "bytes", len(msg.Value))
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("reading input: %w", err)
	}

	for _, stream := range r.streams {
		if len(buffers[stream]) == 0 {
			continue
		}
		if err := r.drain(ctx, stream, buffers, summary); err != nil {
			return summary, err
		}
	}

	logger.Info("run finished",
		"batches", summary.Batches,
		"records", summary.Records,
		"dropped", summary.Dropped,
		"failed_batches", summary.FailedBatches,
	)
	if r.strict && summary.FailedBatches > 0 {
		return summary, fmt.Errorf("%w: %d of %d", ErrBatchFailed, summary.FailedBatches, summary.Batches)
	}
	return summary, nil
}

func (r *Runner) drain(ctx context.Context, stream string, buffers map[string][]domain.RawContact, summary *Summary) error {
	batch := buffers[stream]
	delete(buffers, stream)

	report, err := r.sinks[stream].ProcessBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("processing %s batch: %w", stream, err)
	}
	summary.Batches++
	summary.StateEntries += len(report.Entries)
	if report.Failed() {
		summary.FailedBatches++
	}
	return r.emitState(ctx)
}

func (r *Runner) emitState(ctx context.Context) error {
	snap, err := r.store.Snapshot(ctx, r.streams)
	if err != nil {
		return fmt.Errorf("building state snapshot: %w", err)
	}
	if err := json.NewEncoder(r.out).Encode(stateMessage{Type: TypeState, Value: snap}); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}
