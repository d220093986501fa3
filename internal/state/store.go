// Package state persists per-stream checkpoint state: the ordered outcome
// entries of every processed batch plus running summaries.
package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/distlock"
)

// ErrPingUnsupported is returned by Ping when the backend has no remote
// dependency to check.
var ErrPingUnsupported = errors.New("state backend does not support ping")

// Store is the checkpoint contract used by sinks and the runner.
type Store interface {
	// Latest returns the stream's state, or nil when it was never
	// initialized.
	Latest(ctx context.Context, stream string) (*domain.StreamState, error)

	// Init creates empty state for the stream. Idempotent.
	Init(ctx context.Context, stream string) error

	// Update appends entries in order and persists them in one write.
	Update(ctx context.Context, stream string, entries ...domain.StateEntry) error

	// Snapshot combines the named streams into one STATE value.
	Snapshot(ctx context.Context, streams []string) (*domain.TargetState, error)
}

// Backend loads and saves one stream's state. Load returns nil, nil when
// nothing is stored.
type Backend interface {
	Load(ctx context.Context, stream string) (*domain.StreamState, error)
	Save(ctx context.Context, stream string, s *domain.StreamState) error
}

// Pinger is implemented by backends with a remote dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Locker is implemented by backends shared across hosts.
type Locker interface {
	Lock(key string, ttl time.Duration) distlock.DistLock
}

// Checkpoint implements Store over a Backend. Updates are serialized so a
// read-modify-write never interleaves within one process.
type Checkpoint struct {
	backend      Backend
	name         string
	maxBookmarks int
	mu           sync.Mutex
}

// Option configures a Checkpoint.
type Option func(*Checkpoint)

// WithMaxBookmarks caps the stored bookmark history per stream. An update
// never trims below the entries it just appended. Zero keeps everything.
func WithMaxBookmarks(n int) Option {
	return func(c *Checkpoint) { c.maxBookmarks = n }
}

// NewCheckpoint wraps a backend. name labels it in logs and health output.
func NewCheckpoint(name string, backend Backend, opts ...Option) *Checkpoint {
	c := &Checkpoint{backend: backend, name: name}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the backend label.
func (c *Checkpoint) Name() string { return c.name }

func (c *Checkpoint) Latest(ctx context.Context, stream string) (*domain.StreamState, error) {
	s, err := c.backend.Load(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", stream, err)
	}
	return s, nil
}

func (c *Checkpoint) Init(ctx context.Context, stream string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.backend.Load(ctx, stream)
	if err != nil {
		return fmt.Errorf("load state %s: %w", stream, err)
	}
	if s != nil {
		return nil
	}
	if err := c.backend.Save(ctx, stream, &domain.StreamState{Bookmarks: []domain.StateEntry{}}); err != nil {
		return fmt.Errorf("init state %s: %w", stream, err)
	}
	return nil
}

func (c *Checkpoint) Update(ctx context.Context, stream string, entries ...domain.StateEntry) error {
	if len(entries) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.backend.Load(ctx, stream)
	if err != nil {
		return fmt.Errorf("load state %s: %w", stream, err)
	}
	if s == nil {
		s = &domain.StreamState{}
	}
	s.Append(entries...)
	if c.maxBookmarks > 0 {
		s.Trim(max(c.maxBookmarks, len(entries)))
	}
	if err := c.backend.Save(ctx, stream, s); err != nil {
		return fmt.Errorf("save state %s: %w", stream, err)
	}
	return nil
}

func (c *Checkpoint) Snapshot(ctx context.Context, streams []string) (*domain.TargetState, error) {
	out := domain.NewTargetState()
	for _, stream := range streams {
		s, err := c.backend.Load(ctx, stream)
		if err != nil {
			return nil, fmt.Errorf("load state %s: %w", stream, err)
		}
		out.Set(stream, s)
	}
	return out, nil
}

// Ping checks the backend's remote dependency.
func (c *Checkpoint) Ping(ctx context.Context) error {
	p, ok := c.backend.(Pinger)
	if !ok {
		return ErrPingUnsupported
	}
	return p.Ping(ctx)
}

// Close releases the backend's connections, if any.
func (c *Checkpoint) Close() error {
	if cl, ok := c.backend.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// Lock returns a process lock scoped to the backend's shared storage.
// Single-host backends get a lock that always succeeds.
func (c *Checkpoint) Lock(key string, ttl time.Duration) distlock.DistLock {
	if l, ok := c.backend.(Locker); ok {
		return l.Lock(key, ttl)
	}
	return distlock.NopLock{}
}
