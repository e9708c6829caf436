package object

import (
	"sync"

	"github.com/dbzero-software/dbzero-engine/internal/errs"
	"github.com/dbzero-software/dbzero-engine/internal/memspace"
)

// Class is a registered overlaid type: a name, and the factory that
// constructs a fresh instance at a given address.
type Class struct {
	Name string
	New  func(memspace.Address) any
}

// ObjectCatalogue is the fixture's type-name -> address singleton
// registry (spec §4.11: "a resource catalogue (type-name -> address)
// singleton registry"), plus the ClassFactory mapping of type names to
// their Class descriptor. Grounded on tinySQL's system Catalog
// (name -> root-page-id map, persisted and consulted on every lookup),
// simplified here to an in-memory map since singleton registration only
// happens once per fixture lifetime, not per-row.
type ObjectCatalogue struct {
	mu        sync.RWMutex
	classes   map[string]*Class
	singletons map[string]memspace.Address
}

// NewObjectCatalogue creates an empty catalogue.
func NewObjectCatalogue() *ObjectCatalogue {
	return &ObjectCatalogue{
		classes:    make(map[string]*Class),
		singletons: make(map[string]memspace.Address),
	}
}

// RegisterClass adds a type to the ClassFactory.
func (c *ObjectCatalogue) RegisterClass(class *Class) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes[class.Name] = class
}

// ClassByName looks up a registered type, returning a ClassNotFound error
// if it was never registered.
func (c *ObjectCatalogue) ClassByName(name string) (*Class, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.classes[name]
	if !ok {
		return nil, errs.New(errs.KindClassNotFound, "object.ObjectCatalogue.ClassByName", errs.ErrUnknownStorageClass)
	}
	return cl, nil
}

// RegisterSingleton binds a well-known name (e.g. "FT_BaseIndex",
// "TagIndex", "GC0") to the address of its root object, run once at
// fixture initialization.
func (c *ObjectCatalogue) RegisterSingleton(name string, addr memspace.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = addr
}

// Singleton resolves a well-known name to its root address.
func (c *ObjectCatalogue) Singleton(name string) (memspace.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	addr, ok := c.singletons[name]
	return addr, ok
}
