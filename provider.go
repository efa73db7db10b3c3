package jsonkv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/maruel/jsonkv/internal/flatmap"
	"github.com/maruel/jsonkv/internal/persist"
	"github.com/maruel/jsonkv/internal/watch"
	"github.com/maruel/jsonkv/jsontree"
	"github.com/maruel/jsonkv/keypath"
)

// Provider is a JSON document kept in memory and saved in the background.
//
// All methods are safe for concurrent use.
type Provider struct {
	path    string
	opts    Options
	logger  *slog.Logger
	sched   *persist.Scheduler
	watcher *watch.Watcher

	watchOnce sync.Once
	watchErr  error

	// mu guards root, flat and closed.
	mu     sync.RWMutex
	root   *jsontree.Node
	flat   *flatmap.Map
	closed bool

	// dirty is set under the write lock and cleared under the read lock by
	// the snapshot about to be written.
	dirty atomic.Bool

	obsMu     sync.Mutex
	nextObs   int
	writeObs  map[int]func(WriteError)
	reloadObs map[int]func(error)
}

// Open loads the document from src and starts saving changes back to it.
//
// A nil opts uses DefaultOptions. The document must parse and its root must
// be an object.
func Open(src Source, opts *Options) (*Provider, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	o = o.withDefaults()
	path, err := src.PhysicalPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	data, err := readSource(src)
	if err != nil {
		if !o.Optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		data = nil
	}
	root := jsontree.NewObject()
	if data != nil {
		if root, err = parseRoot(data); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	p := &Provider{
		path:      path,
		opts:      o,
		logger:    o.Logger.With("path", path),
		root:      root,
		flat:      flatmap.Build(root),
		writeObs:  make(map[int]func(WriteError)),
		reloadObs: make(map[int]func(error)),
	}
	if o.ReloadOnChange {
		if p.watcher, err = watch.New(path, o.ReloadDelay, p.logger, p.reload); err != nil {
			return nil, err
		}
		if data != nil {
			p.watcher.Known(data)
		}
	}
	var metrics *persist.Metrics
	if o.Registerer != nil {
		if metrics, err = persist.NewMetrics(o.Registerer, path); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to register metrics: %w", err), p.closeWatcher())
		}
	}
	var onWritten func([]byte)
	if p.watcher != nil {
		onWritten = p.watcher.Known
	}
	p.sched, err = persist.New(persist.Config{
		Path:       path,
		Snapshot:   p.snapshot,
		MarkDirty:  func() { p.dirty.Store(true) },
		Debounce:   o.Debounce,
		RetryDelay: o.RetryDelay,
		FileMode:   o.FileMode,
		Limiter:    o.limiter(),
		Metrics:    metrics,
		Logger:     p.logger,
		OnError:    p.publishWriteError,
		OnWritten:  onWritten,
	})
	if err != nil {
		return nil, errors.Join(err, p.closeWatcher())
	}
	if p.watcher != nil {
		p.watcher.Start()
	}
	p.logger.Debug("Opened document", "keys", p.flat.Len())
	return p, nil
}

func readSource(src Source) ([]byte, error) {
	r, err := src.OpenForRead()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	return data, errors.Join(err, r.Close())
}

func parseRoot(data []byte) (*jsontree.Node, error) {
	root, err := jsontree.Parse(data)
	if err != nil {
		return nil, err
	}
	if root.Kind != jsontree.Object {
		return nil, fmt.Errorf("%w, got %s", ErrInvalidRootShape, root.Kind)
	}
	return root, nil
}

// Path returns the file the document is saved to.
func (p *Provider) Path() string {
	return p.path
}

// TryGet returns the value of the leaf at key. A nil value with found set is
// a null or an empty container.
//
// key is looked up as written first, then with index segments in their
// shortest form, so "a:007" reads element 7 of an array a but still reads a
// member named "007".
func (p *Provider) TryGet(key string) (value *string, found bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.flat.Get(key); ok {
		return v, true
	}
	if c := keypath.Canonical(key); c != key {
		return p.flat.Get(c)
	}
	return nil, false
}

// ChildKeys returns the distinct immediate child segments below prefix, index
// segments first in numeric order, then names. prefix is resolved like the
// key of TryGet.
func (p *Provider) ChildKeys(prefix string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if out := p.flat.Children(prefix); len(out) != 0 {
		return out
	}
	if c := keypath.Canonical(prefix); c != prefix {
		return p.flat.Children(c)
	}
	return []string{}
}

// Keys returns the keys of all leaves, sorted.
func (p *Provider) Keys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.flat.Keys()
}

// Snapshot returns a copy of the whole document.
func (p *Provider) Snapshot() *jsontree.Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.root.Clone()
}

// Subtree returns a copy of the node at key.
func (p *Provider) Subtree(key string) (*jsontree.Node, bool) {
	segs := keypath.Parse(key)
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := p.root
	for _, s := range segs {
		switch jsontree.KindOf(n) {
		case jsontree.Object:
			n, _ = n.Lookup(s.Name)
			if n == nil {
				return nil, false
			}
		case jsontree.Array:
			if !s.IsIndex || s.Index >= len(n.Items) {
				return nil, false
			}
			n = n.Items[s.Index]
		default:
			return nil, false
		}
	}
	if n == nil {
		return jsontree.NewNull(), true
	}
	return n.Clone(), true
}

// Unmarshal decodes the subtree at key into v with encoding/json.
func (p *Provider) Unmarshal(key string, v any) error {
	n, ok := p.Subtree(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	data, err := jsontree.Encode(n)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return nil
}

// Load replaces the whole document with the content of r. The previous
// content is kept when r does not hold a valid document.
//
// Load does not schedule a write: the source of r is assumed to be the file.
func (p *Provider) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	return p.load(data, false)
}

// load replaces the document with data. An external load is refused while
// local changes are not saved yet.
func (p *Provider) load(data []byte, external bool) error {
	if external && p.dirty.Load() {
		return ErrReloadConflict
	}
	root, err := parseRoot(data)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	flat := flatmap.Build(root)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if external && p.dirty.Load() {
		p.mu.Unlock()
		return ErrReloadConflict
	}
	p.root, p.flat = root, flat
	p.mu.Unlock()
	if p.watcher != nil {
		p.watcher.Known(data)
	}
	return nil
}

// Flush writes pending changes now and returns the error of the last attempt
// if the write failed. All mutations that returned before Flush was called
// are included.
func (p *Provider) Flush(ctx context.Context) error {
	if err := p.sched.Flush(ctx); err != nil {
		if errors.Is(err, persist.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Close stops the background writer after saving pending changes. It returns
// the error of that final write. Close is idempotent.
func (p *Provider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return errors.Join(p.closeWatcher(), p.sched.Close())
}

func (p *Provider) closeWatcher() error {
	if p.watcher == nil {
		return nil
	}
	p.watchOnce.Do(func() { p.watchErr = p.watcher.Close() })
	return p.watchErr
}

// OnWriteError registers f to be called from the background writer for every
// failed write attempt. f must not call Flush or Close. The returned function
// removes f.
func (p *Provider) OnWriteError(f func(WriteError)) (remove func()) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	id := p.nextObs
	p.nextObs++
	p.writeObs[id] = f
	return func() {
		p.obsMu.Lock()
		delete(p.writeObs, id)
		p.obsMu.Unlock()
	}
}

// OnReload registers f to be called after each reload triggered by an
// external change of the file, with the error of the reload. The error is
// ErrReloadConflict when the change was ignored because local changes were
// not saved yet; they overwrite the file on the next write. The returned
// function removes f.
func (p *Provider) OnReload(f func(error)) (remove func()) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	id := p.nextObs
	p.nextObs++
	p.reloadObs[id] = f
	return func() {
		p.obsMu.Lock()
		delete(p.reloadObs, id)
		p.obsMu.Unlock()
	}
}

func (p *Provider) publishWriteError(we WriteError) {
	p.obsMu.Lock()
	obs := make([]func(WriteError), 0, len(p.writeObs))
	for _, f := range p.writeObs {
		obs = append(obs, f)
	}
	p.obsMu.Unlock()
	for _, f := range obs {
		f(we)
	}
}

// reload loads content written by another process. It runs between writes:
// content that a write of ours replaced meanwhile is dropped, and local
// changes not saved yet win over the external ones.
func (p *Provider) reload(data []byte) {
	var err error
	stale := false
	p.sched.Exclusive(func() {
		if stale = !p.watcher.IsCurrent(data); !stale {
			err = p.load(data, true)
		}
	})
	switch {
	case stale:
		p.logger.Debug("Ignoring external change, overwritten by a later write")
		return
	case errors.Is(err, ErrReloadConflict):
		p.logger.Warn("Ignoring external change, local changes pending")
	case err != nil:
		p.logger.Warn("Failed to reload document", "err", err)
	default:
		p.logger.Info("Reloaded document")
	}
	p.obsMu.Lock()
	obs := make([]func(error), 0, len(p.reloadObs))
	for _, f := range p.reloadObs {
		obs = append(obs, f)
	}
	p.obsMu.Unlock()
	for _, f := range obs {
		f(err)
	}
}

// snapshot serializes the document if it changed since the last call.
func (p *Provider) snapshot() ([]byte, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.dirty.Swap(false) {
		return nil, false, nil
	}
	data, err := jsontree.Encode(p.root)
	if err != nil {
		return nil, false, err
	}
	if p.watcher != nil {
		p.watcher.Expect(data)
	}
	return data, true, nil
}

// changed marks the document dirty and wakes the writer. It must be called
// with the write lock held.
func (p *Provider) changed() {
	p.dirty.Store(true)
	p.sched.Signal()
}
