package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hotgluexyz/target-sendgrid/internal/config"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/logger"
)

var (
	// ErrPollTimeout is returned when the configured timeout or attempt
	// budget runs out before the job reaches a terminal status.
	ErrPollTimeout = errors.New("import job did not finish in time")

	// ErrImportFailed is returned with the final status of a job that ended
	// as failed or errored.
	ErrImportFailed = errors.New("import job failed")
)

// DefaultPollInterval matches the fixed wait between status checks.
const DefaultPollInterval = 5 * time.Second

// ImportStatusFetcher is the subset of Client used by the Poller.
type ImportStatusFetcher interface {
	GetImportStatus(ctx context.Context, jobID string) (*ImportStatus, error)
}

// Poller waits for asynchronous import jobs. The zero Timeout and zero
// MaxAttempts keep waiting until the job completes or ctx is canceled.
type Poller struct {
	fetcher     ImportStatusFetcher
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int
}

// NewPoller creates a poller from the polling config.
func NewPoller(fetcher ImportStatusFetcher, cfg config.PollingConfig) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		Interval:    cfg.Interval(),
		Timeout:     cfg.Timeout(),
		MaxAttempts: cfg.MaxAttempts,
	}
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	return p
}

// WaitForImport polls the job until it reaches a terminal status.
//
// A transient fetch error is logged and counts as an attempt; the loop keeps
// going. A failed or errored job returns its status together with
// ErrImportFailed so callers can still account its counts.
func (p *Poller) WaitForImport(ctx context.Context, jobID string) (*ImportStatus, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		status, err := p.fetcher.GetImportStatus(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, p.stopped(ctx, jobID, attempt, err)
			}
			lastErr = err
			logger.Warn("import status check failed", "job_id", jobID, "attempt", attempt, "error", err)
		case status.Completed():
			logger.Debug("import job completed", "job_id", jobID, "attempts", attempt)
			return status, nil
		case status.Terminal():
			return status, fmt.Errorf("%w: job %s ended with status %q", ErrImportFailed, jobID, status.Status)
		default:
			logger.Debug("import job still running", "job_id", jobID, "status", status.Status, "attempt", attempt)
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			if lastErr != nil {
				return nil, fmt.Errorf("%w: job %s after %d attempts (last error: %v)", ErrPollTimeout, jobID, attempt, lastErr)
			}
			return nil, fmt.Errorf("%w: job %s after %d attempts", ErrPollTimeout, jobID, attempt)
		}

		timer := time.NewTimer(p.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, p.stopped(ctx, jobID, attempt, ctx.Err())
		case <-timer.C:
		}
	}
}

func (p *Poller) stopped(ctx context.Context, jobID string, attempt int, cause error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && p.Timeout > 0 {
		return fmt.Errorf("%w: job %s after %s (%d attempts)", ErrPollTimeout, jobID, p.Timeout, attempt)
	}
	return fmt.Errorf("waiting for import %s: %w", jobID, cause)
}
