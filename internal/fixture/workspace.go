package fixture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/dbzero-software/dbzero-engine/internal/cache"
	"github.com/dbzero-software/dbzero-engine/internal/config"
	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/pager"
)

// Workspace is a set of named fixtures plus a shared CacheRecycler and an
// inter-process lock (spec §4.11). Opening a workspace resolves a
// directory of prefix files: each fixture lives in its own subdirectory
// named after it, the way the teacher's single-file Pager maps onto one
// root directory generalized here to one directory per fixture.
type Workspace struct {
	mu       sync.Mutex
	dir      string
	cfg      config.Config
	log      *zap.Logger
	recycler *cache.Recycler
	iplock   *InterProcessLock
	fixtures map[string]*Fixture
}

// OpenWorkspace resolves dir as a workspace root, acquiring the
// inter-process lock at `dir/.lock` per lockFlags before any fixture may
// be opened (spec: "opening a workspace resolves a directory of prefix
// files ... may acquire an exclusive file lock").
func OpenWorkspace(dir string, cfg config.Config, lockFlags LockFlags, log *zap.Logger) (*Workspace, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.New(errs.KindInput, "fixture.OpenWorkspace", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New(errs.KindIO, "fixture.OpenWorkspace", err)
	}

	var iplock *InterProcessLock
	if cfg.AccessType == config.AccessReadWrite {
		l, err := AcquireInterProcessLock(filepath.Join(dir, ".lock"), lockFlags)
		if err != nil {
			return nil, err
		}
		iplock = l
	}

	return &Workspace{
		dir:      dir,
		cfg:      cfg,
		log:      log.Named("workspace"),
		recycler: cache.NewRecycler(cfg.CacheBytes, nil),
		iplock:   iplock,
		fixtures: make(map[string]*Fixture),
	}, nil
}

// Open returns the named fixture, opening its prefix directory
// (dir/name) on first access. Repeat calls for the same name return the
// already-open Fixture.
//
// pager.Prefix does not yet read through a bounded in-memory page frame
// cache for its block-file/version-store I/O — every ReadPage/WritePage
// call hits the filesystem directly — so the PrefixCache wired in here
// only accelerates lock construction (reusing an already-built
// ResourceLock across MapRange callers within a commit window), not disk
// I/O itself. Routing raw page reads through PrefixCache as well would
// require Prefix to hold cached page bytes independent of any lock, which
// is a larger restructuring left for a dedicated change; the current
// wiring still gives every fixture in the workspace the shared byte
// ceiling and eviction spec §4.3 describes.
func (w *Workspace) Open(name string) (*Fixture, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if f, ok := w.fixtures[name]; ok {
		return f, nil
	}

	fixtureDir := filepath.Join(w.dir, name)
	prefix, err := pager.OpenPrefix(fixtureDir, w.cfg, w.log)
	if err != nil {
		return nil, err
	}
	prefix.SetCache(cache.NewPrefixCache(w.recycler))

	f := Open(prefix, w.cfg, w.log)
	w.fixtures[name] = f
	return f, nil
}

// Names lists every fixture name currently open in this workspace.
func (w *Workspace) Names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.fixtures))
	for n := range w.fixtures {
		names = append(names, n)
	}
	return names
}

// Close closes every open fixture and releases the inter-process lock.
func (w *Workspace) Close() error {
	w.mu.Lock()
	fixtures := w.fixtures
	w.fixtures = make(map[string]*Fixture)
	w.mu.Unlock()

	var firstErr error
	for name, f := range fixtures {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fixture %q: %w", name, err)
		}
	}
	if w.iplock != nil {
		if err := w.iplock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
