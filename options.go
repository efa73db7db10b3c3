package jsonkv

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/maruel/jsonkv/internal/persist"
	"github.com/maruel/jsonkv/internal/watch"
)

// Options configures a Provider. Zero values select the defaults.
type Options struct {
	// Optional makes a missing file an empty document instead of an error.
	Optional bool

	// Debounce is the quiet period after the last change before the document
	// is written.
	Debounce time.Duration

	// RetryDelay is the wait before retrying a failed write.
	RetryDelay time.Duration

	// FileMode is used when the file is created. An existing file keeps its
	// mode.
	FileMode os.FileMode

	// MaxWritesPerSecond caps background writes under sustained changes.
	// 0 means unlimited. Flush is never throttled.
	MaxWritesPerSecond float64

	// ReloadOnChange reloads the document when another process replaces the
	// file.
	ReloadOnChange bool

	// ReloadDelay is how long file events must settle before reloading.
	ReloadDelay time.Duration

	// MaxArrayGrowth is how many elements past its end a single mutation may
	// grow an array by. Default: DefaultMaxArrayGrowth.
	MaxArrayGrowth int

	// Encoder converts values passed to Set. Default: JSONEncoder.
	Encoder Encoder

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Registerer receives the persistence metrics. nil disables them.
	Registerer prometheus.Registerer
}

// DefaultMaxArrayGrowth is the default of Options.MaxArrayGrowth.
const DefaultMaxArrayGrowth = 1 << 16

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		Debounce:       persist.DefaultDebounce,
		RetryDelay:     persist.DefaultRetryDelay,
		FileMode:       0o644,
		ReloadDelay:    watch.DefaultDelay,
		MaxArrayGrowth: DefaultMaxArrayGrowth,
		Encoder:        JSONEncoder{},
	}
}

// Validate checks that values are in range.
func (o *Options) Validate() error {
	if o.Debounce < 0 {
		return errors.New("debounce must be non-negative")
	}
	if o.RetryDelay < 0 {
		return errors.New("retry delay must be non-negative")
	}
	if o.ReloadDelay < 0 {
		return errors.New("reload delay must be non-negative")
	}
	if o.MaxWritesPerSecond < 0 {
		return errors.New("max writes per second must be non-negative")
	}
	if o.MaxArrayGrowth < 0 {
		return errors.New("max array growth must be non-negative")
	}
	if o.FileMode&^os.ModePerm != 0 {
		return errors.New("file mode must only contain permission bits")
	}
	return nil
}

// withDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Debounce == 0 {
		o.Debounce = d.Debounce
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.FileMode == 0 {
		o.FileMode = d.FileMode
	}
	if o.ReloadDelay == 0 {
		o.ReloadDelay = d.ReloadDelay
	}
	if o.MaxArrayGrowth == 0 {
		o.MaxArrayGrowth = d.MaxArrayGrowth
	}
	if o.Encoder == nil {
		o.Encoder = d.Encoder
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o *Options) limiter() *rate.Limiter {
	limit := rate.Inf
	if o.MaxWritesPerSecond > 0 {
		limit = rate.Limit(o.MaxWritesPerSecond)
	}
	return rate.NewLimiter(limit, 1)
}
