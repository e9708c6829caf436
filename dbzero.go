// Package dbzero is a persistent, copy-on-write, multi-version
// object-graph storage engine.
//
// A Workspace groups a set of named Fixtures under one directory, a
// shared page-cache byte budget, and an inter-process lock. Each Fixture
// is a transactional context over one Prefix (a versioned block file):
// it exposes mapRange-style access to v-objects, maintains the GC0
// reference-counting collector, the tag index, and the resource
// catalogue, and commits new states atomically.
//
// # Basic usage
//
//	ws, err := dbzero.OpenWorkspace("/var/lib/myapp/data", dbzero.DefaultConfig(), dbzero.LockFlags{Blocking: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ws.Close()
//
//	fx, err := ws.Open("main")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	handle, err := dbzero.OpenObject(fx, addr, size, true)
//	if err != nil {
//		log.Fatal(err)
//	}
//	buf, _ := handle.Modify()
//	copy(buf, payload)
//	handle.Detach()
//	fx.Commit()
//
// # Snapshots
//
// A read-only view pinned to a historical state number is obtained with
// Fixture.Snapshot or Fixture.SnapshotAt; its v-objects refuse writes.
package dbzero

import (
	"github.com/dbzero-software/dbzero-engine/internal/config"
	"github.com/dbzero-software/dbzero-engine/internal/fixture"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
	"github.com/dbzero-software/dbzero-engine/internal/object"
	"github.com/dbzero-software/dbzero-engine/internal/reslock"
	"github.com/dbzero-software/dbzero-engine/internal/vobject"
)

// ============================================================================
// Core types — re-exported from internal packages for the public API
// ============================================================================

// Config holds the tunables enumerated by spec §6: page size, cache
// bytes, slab size, access type, sort threshold, and meta-stream stride.
type Config = config.Config

// AccessType is the workspace-level open mode (read-only or read-write).
type AccessType = config.AccessType

const (
	// AccessRead opens a workspace read-only.
	AccessRead = config.AccessRead
	// AccessReadWrite opens a workspace for read and write.
	AccessReadWrite = config.AccessReadWrite
)

// DefaultConfig returns a Config populated with the documented defaults.
func DefaultConfig() Config { return config.DefaultConfig() }

// Workspace is a set of named fixtures sharing a page-cache byte budget
// and an inter-process lock.
type Workspace = fixture.Workspace

// Fixture is the per-prefix transactional context: v-object access,
// reference counting, the tag index, and commit/refresh.
type Fixture = fixture.Fixture

// Snapshot is a read-only workspace-view pinned to a state number.
type Snapshot = fixture.Snapshot

// LockFlags controls inter-process lock acquisition at workspace open:
// blocking vs. timed, and whether to clear a stale lock file first.
type LockFlags = fixture.LockFlags

// Address is a logical v-object address: offset plus an instance
// disambiguator packed into one uint64 (spec §6).
type Address = memspace.Address

// Object is the runtime handle onto a mapped byte range — mapRange's
// return value, spec §4.5.
type Object = vobject.Handle

// AccessMode is the flag set passed to mapRange: read, write, create,
// no-flush, no-cache, rely.
type AccessMode = reslock.AccessMode

const (
	AccessModeRead    = reslock.AccessRead
	AccessModeWrite   = reslock.AccessWrite
	AccessModeCreate  = reslock.AccessCreate
	AccessModeNoFlush = reslock.AccessNoFlush
	AccessModeNoCache = reslock.AccessNoCache
	AccessModeRely    = reslock.AccessRely
)

// Header is the fixed-size ref-counting prologue every managed object
// carries (spec §4.9).
type Header = object.Header

// GCOps is the per-type vtable GC0 consults for a live instance.
type GCOps = object.GCOps

// ============================================================================
// Top-level functions
// ============================================================================

// OpenWorkspace resolves dir as a workspace root, acquiring the
// inter-process lock per lockFlags before any fixture may be opened.
func OpenWorkspace(dir string, cfg Config, lockFlags LockFlags) (*Workspace, error) {
	return fixture.OpenWorkspace(dir, cfg, lockFlags, nil)
}

// OpenObject maps addr for size bytes against store (a *Fixture or a
// *Snapshot), returning a handle for reading and, if write is true,
// modifying the range.
func OpenObject(store vobject.Store, addr Address, size int, write bool) (*Object, error) {
	return vobject.Open(store, addr, size, write)
}
