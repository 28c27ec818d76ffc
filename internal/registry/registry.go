// Package registry keeps the open libraries of the process, one per root directory.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mediashelf/internal/importer"
	"mediashelf/internal/library"
	"mediashelf/internal/logging"
	"mediashelf/internal/media"
	"mediashelf/internal/metrics"
	"mediashelf/internal/storage"
)

// ErrClosed is returned by Open after Close
var ErrClosed = errors.New("registry is closed")

// Options configures every library opened through a Registry
type Options struct {
	DocumentFormat string
	AuditLogMax    int
	HostNickname   string
	Provider       media.Provider
	MoveTimeout    time.Duration
	Metrics        *metrics.Metrics
}

// Library is the handle of one open library
type Library struct {
	Root     string
	Store    *library.Store
	Importer *importer.Pipeline

	lock *storage.RootLock
}

// Registry opens each library root at most once
type Registry struct {
	opts  Options
	codec storage.Codec

	mu     sync.RWMutex
	libs   map[string]*Library
	closed bool
	group  singleflight.Group
}

// New creates an empty registry
func New(opts Options) (*Registry, error) {
	codec, err := storage.CodecFor(opts.DocumentFormat)
	if err != nil {
		return nil, err
	}
	if opts.Provider == nil {
		return nil, errors.New("registry needs a media provider")
	}
	return &Registry{
		opts:  opts,
		codec: codec,
		libs:  make(map[string]*Library),
	}, nil
}

func normalize(root string) (string, error) {
	if root == "" {
		return "", errors.New("library path is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve library path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// Open returns the library at root, loading it on first use. Concurrent callers
// for the same root share one construction.
func (r *Registry) Open(ctx context.Context, root string) (*Library, error) {
	key, err := normalize(root)
	if err != nil {
		return nil, err
	}
	if lib, ok := r.Get(key); ok {
		return lib, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if lib, ok := r.Get(key); ok {
			return lib, nil
		}
		lib, err := r.load(ctx, key)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			lib.lock.Release()
			return nil, ErrClosed
		}
		r.libs[key] = lib
		return lib, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Library), nil
}

func (r *Registry) load(ctx context.Context, root string) (*Library, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	layout := storage.NewLayout(root, r.codec)
	lock, err := storage.AcquireRootLock(layout)
	if err != nil {
		return nil, err
	}

	store := library.NewStore(library.Options{
		Layout:       layout,
		AuditLogMax:  r.opts.AuditLogMax,
		HostNickname: r.opts.HostNickname,
	})
	if err := store.Load(ctx); err != nil {
		lock.Release()
		return nil, fmt.Errorf("load library %s: %w", root, err)
	}

	stats := store.Stats()
	logging.WithLibrary(root).Info().
		Int("media", stats.Media).
		Int("tags", stats.Tags).
		Int("folders", stats.Folders).
		Msg("Library opened")

	return &Library{
		Root:  root,
		Store: store,
		Importer: importer.New(store, r.opts.Provider, importer.Config{
			MoveTimeout: r.opts.MoveTimeout,
			Metrics:     r.opts.Metrics,
		}),
		lock: lock,
	}, nil
}

// Get returns an already open library without constructing one
func (r *Registry) Get(root string) (*Library, bool) {
	key, err := normalize(root)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.libs[key]
	return lib, ok
}

// Libraries returns the open libraries ordered by root
func (r *Registry) Libraries() []*Library {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Library, 0, len(r.libs))
	for _, lib := range r.libs {
		out = append(out, lib)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root < out[j].Root })
	return out
}

// Close releases every library lock. Open fails afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true

	var errs []error
	for key, lib := range r.libs {
		if err := lib.lock.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", key, err))
		}
		delete(r.libs, key)
	}
	return errors.Join(errs...)
}
