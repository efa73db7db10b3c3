// Package persist saves a document to disk in the background.
//
// A [Scheduler] owns one goroutine that coalesces bursts of change
// notifications into a single write once the document has been quiet for a
// debounce period. Each write replaces the file atomically (see [WriteFile]).
// A failed attempt is reported, retried once after a short delay, and then the
// round is abandoned; the loop keeps running and tries again on the next
// change.
//
// The loop is the only writer of the file. [Scheduler.Flush] and the final
// write done by [Scheduler.Close] take the same write lock, so writes never
// race each other.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// State is the state of the background loop.
type State int32

const (
	// Idle means nothing is pending.
	Idle State = iota
	// Debouncing means a change is pending and the loop waits for quiet.
	Debouncing
	// Writing means a snapshot is being written.
	Writing
	// Disposed means Close was called.
	Disposed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Writing:
		return "writing"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	// DefaultDebounce is the default quiet period before a write.
	DefaultDebounce = 200 * time.Millisecond
	// DefaultRetryDelay is the default delay before retrying a failed write.
	DefaultRetryDelay = 100 * time.Millisecond

	// maxAttempts is the number of attempts per round: the first one and a
	// single retry.
	maxAttempts = 2
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("scheduler is closed")

// WriteError describes a failed write attempt.
type WriteError struct {
	Err     error
	Attempt int
	Path    string
	Size    int
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write attempt %d of %s (%d bytes) failed: %v", e.Attempt, e.Path, e.Size, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Config configures a Scheduler.
type Config struct {
	// Path is the file to replace.
	Path string
	// Snapshot returns the serialized document and clears the caller's dirty
	// flag. It returns ok=false when nothing changed since the last snapshot.
	Snapshot func() (data []byte, ok bool, err error)
	// MarkDirty sets the caller's dirty flag again after a round failed, so
	// the next Flush or change retries it.
	MarkDirty func()

	// Debounce is the quiet period after the last change. Default: DefaultDebounce.
	Debounce time.Duration
	// MaxDelay bounds how long a stream of changes can postpone a write.
	// Default: 10 times Debounce.
	MaxDelay time.Duration
	// RetryDelay is the wait before the retry. Default: DefaultRetryDelay.
	RetryDelay time.Duration
	// FileMode is used when creating the file. Default: 0o644.
	FileMode os.FileMode
	// Limiter throttles background write rounds. Flush is not throttled.
	Limiter *rate.Limiter
	// Metrics is optional.
	Metrics *Metrics
	// Logger is expected to identify the file. It defaults to slog.Default()
	// with a "path" attribute.
	Logger *slog.Logger

	// OnError is called from the writing goroutine for every failed attempt,
	// including a Snapshot that failed. It must not call Flush.
	OnError func(WriteError)
	// OnWritten is called with the content after each successful write.
	OnWritten func(data []byte)
}

// Scheduler runs the background save loop.
type Scheduler struct {
	cfg Config

	wake    chan struct{}
	writeMu sync.Mutex
	state   atomic.Int32

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and starts the loop.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Path == "" {
		return nil, errors.New("path is required")
	}
	if cfg.Snapshot == nil {
		return nil, errors.New("snapshot function is required")
	}
	if cfg.MarkDirty == nil {
		cfg.MarkDirty = func() {}
	}
	if cfg.Debounce < 0 || cfg.MaxDelay < 0 || cfg.RetryDelay < 0 {
		return nil, errors.New("delays must be non-negative")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 10 * cfg.Debounce
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("path", cfg.Path)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:    cfg,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// State returns the current state of the loop.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Signal tells the loop the document changed. Signals coalesce: signaling
// while a write is already pending is a no-op.
func (s *Scheduler) Signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush writes the document now if it changed, bypassing the debounce. It
// returns the error of the last attempt when the round failed.
//
// Every change whose lock was released before Flush took its snapshot is
// included.
func (s *Scheduler) Flush(ctx context.Context) error {
	if s.State() == Disposed {
		return ErrClosed
	}
	return s.round(ctx, false)
}

// Close stops the loop and writes pending changes one last time. The final
// write is not cancelable. Close is idempotent.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
		s.setState(Disposed)
		s.closeErr = s.round(context.WithoutCancel(s.ctx), false)
	})
	return s.closeErr
}

// Exclusive runs f while no write is in progress. f must not call Flush.
func (s *Scheduler) Exclusive(f func()) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	f()
}

func (s *Scheduler) setState(st State) {
	if State(s.state.Swap(int32(st))) != st {
		s.cfg.Logger.Debug("Scheduler state", "state", st.String())
	}
	s.cfg.Metrics.setState(st)
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		s.setState(Idle)
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		for again := true; again; {
			if !s.debounce() {
				return
			}
			s.setState(Writing)
			_ = s.round(s.ctx, true)
			if s.ctx.Err() != nil {
				return
			}
			// A change that arrived during the write starts a new quiet period.
			select {
			case <-s.wake:
			default:
				again = false
			}
		}
	}
}

// debounce waits until no signal arrived for Debounce, or MaxDelay elapsed.
// It returns false when the loop is stopping.
func (s *Scheduler) debounce() bool {
	s.setState(Debouncing)
	deadline := time.Now().Add(s.cfg.MaxDelay)
	t := time.NewTimer(s.cfg.Debounce)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return false
		case <-s.wake:
			d := min(s.cfg.Debounce, time.Until(deadline))
			if d <= 0 {
				return true
			}
			t.Reset(d)
		case <-t.C:
			return true
		}
	}
}

// round snapshots and writes the document if it is dirty.
func (s *Scheduler) round(ctx context.Context, throttled bool) error {
	if throttled && s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	data, ok, err := s.cfg.Snapshot()
	if err != nil {
		s.cfg.MarkDirty()
		s.cfg.Logger.Error("Failed to serialize document", "err", err)
		we := &WriteError{Err: fmt.Errorf("failed to serialize document: %w", err), Attempt: 1, Path: s.cfg.Path}
		if s.cfg.OnError != nil {
			s.cfg.OnError(*we)
		}
		return we
	}
	if !ok {
		return nil
	}
	if err := s.write(ctx, data); err != nil {
		s.cfg.MarkDirty()
		s.cfg.Metrics.abandon()
		s.cfg.Logger.Error("Abandoning write", "bytes", len(data), "err", err)
		return err
	}
	return nil
}

func (s *Scheduler) write(ctx context.Context, data []byte) error {
	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := WriteFile(s.cfg.Path, data, s.cfg.FileMode)
		s.cfg.Metrics.attempt(time.Since(start).Seconds(), len(data), err)
		if err == nil {
			s.cfg.Logger.Debug("Wrote file", "bytes", len(data), "attempt", attempt)
			if s.cfg.OnWritten != nil {
				s.cfg.OnWritten(data)
			}
			return nil
		}
		we := &WriteError{Err: err, Attempt: attempt, Path: s.cfg.Path, Size: len(data)}
		s.cfg.Logger.Warn("Failed to write file", "attempt", attempt, "bytes", len(data), "err", err)
		if s.cfg.OnError != nil {
			s.cfg.OnError(*we)
		}
		if attempt >= maxAttempts {
			return we
		}
		t := time.NewTimer(s.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return we
		case <-t.C:
		}
	}
}
