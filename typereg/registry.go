package typereg

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
	"golang.org/x/sync/singleflight"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
	"github.com/pjrmi/pjrmi-go/cmn/nlog"
)

// Source builds a TypeDescriptor the first time a type is requested. The
// registry never re-reflects a type once built: Build is called at most
// once per type per process (concurrent callers are collapsed via
// singleflight), and the result is cached forever.
type Source interface {
	// Build returns a type descriptor for name with the given ID, or an
	// error if name is unknown to this source. reg is the registry the
	// descriptor is being built into, for Source implementations that need
	// to look up other already-known types (e.g. to fill in a specificity
	// matrix).
	Build(reg *Registry, id TypeID, name string) (*TypeDescriptor, error)
}

// Registry owns the process-wide map from TypeID/name to TypeDescriptor.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byID     map[TypeID]*TypeDescriptor
	byName   map[string]TypeID
	nextID   int32
	source   Source
	sf       singleflight.Group
	warmdb   *buntdb.DB // optional on-disk warm-start cache, see WithWarmStartCache

	// well-known IDs used by the overload resolver's Pythonic tie-breaks.
	stringID    TypeID
	charArrayID TypeID
	byteArrayID TypeID

	// well-known IDs of the framework's own structural/wrapper types,
	// recognised by name in the marshaller.
	listID, setID, mapID, clientObjID, ndArrayID TypeID

	// well-known IDs of the single-method interfaces the callback engine
	// synthesises a direct proxy for.
	runnableID, functionID, biFunctionID                 TypeID
	consumerID, biConsumerID, predicateID, biPredicateID TypeID
	unaryOperatorID, keywordFunctionID                   TypeID
}

// New creates a registry seeded with the built-in types that bootstrap
// defines, backed by source for every other type.
func New(source Source) *Registry {
	r := &Registry{
		byID:   make(map[TypeID]*TypeDescriptor),
		byName: make(map[string]TypeID),
		nextID: 1, // 0 is reserved for void
		source: source,
	}
	r.bootstrap()
	return r
}

// WithWarmStartCache opens (creating if needed) a buntdb-backed warm-start
// cache at path: every descriptor GetByName builds from then on is written
// there as JSON, keyed by type name. Nothing in this package reads the
// cache back; GetByName always builds through Source, so a fresh process
// skips no build because of it.
func (r *Registry) WithWarmStartCache(path string) (*Registry, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return r, errors.Wrapf(err, "typereg: opening warm-start cache %s", path)
	}
	r.mu.Lock()
	r.warmdb = db
	r.mu.Unlock()
	return r, nil
}

func (r *Registry) nextTypeID() TypeID {
	id := TypeID(r.nextID)
	r.nextID++
	return id
}

func (r *Registry) define(td *TypeDescriptor) *TypeDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if td.ID == 0 && td.Name != "void" {
		td.ID = r.nextTypeID()
	}
	r.byID[td.ID] = td
	r.byName[td.Name] = td.ID
	return td
}

// GetByID returns the descriptor for id, if already built.
func (r *Registry) GetByID(id TypeID) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	td, ok := r.byID[id]
	return td, ok
}

// GetByName returns the descriptor for name, building it via Source on
// first request. Concurrent callers requesting the same name are
// collapsed into a single build (type registry idempotence).
func (r *Registry) GetByName(name string) (*TypeDescriptor, error) {
	r.mu.RLock()
	if id, ok := r.byName[name]; ok {
		td := r.byID[id]
		r.mu.RUnlock()
		return td, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.sf.Do(name, func() (any, error) {
		// re-check: another singleflight generation may have just finished
		r.mu.RLock()
		if id, ok := r.byName[name]; ok {
			td := r.byID[id]
			r.mu.RUnlock()
			return td, nil
		}
		r.mu.RUnlock()

		if r.source == nil {
			return nil, cos.NewErrNotFound("type %q", name)
		}
		id := r.reserveID()
		td, err := r.source.Build(r, id, name)
		if err != nil {
			r.releaseID(id)
			return nil, err
		}
		if td.Name != name {
			r.releaseID(id)
			return nil, errors.Errorf("typereg: source built %q for requested name %q", td.Name, name)
		}
		td.ID = id
		r.define(td)
		r.persistWarm(td)
		nlog.Infof("typereg: built descriptor %s (id=%d)", td.Name, td.ID)
		return td, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TypeDescriptor), nil
}

// reserveID/releaseID let GetByName allocate an ID before Source.Build
// returns (some sources need to know their own ID to fill in self-
// referential supertype lists), while still being able to give it back if
// the build fails.
func (r *Registry) reserveID() TypeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextTypeID()
}

func (r *Registry) releaseID(id TypeID) {
	// IDs are monotonic and never reused within a process; a failed build
	// simply leaves a gap. Nothing to release.
	_ = id
}

func (r *Registry) persistWarm(td *TypeDescriptor) {
	r.mu.RLock()
	db := r.warmdb
	r.mu.RUnlock()
	if db == nil {
		return
	}
	b, err := jsoniter.Marshal(td)
	if err != nil {
		nlog.Errorf("typereg: warm-start marshal %s: %v", td.Name, err)
		return
	}
	if err := db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(td.Name, string(b), nil)
		return err
	}); err != nil {
		nlog.Errorf("typereg: warm-start persist %s: %v", td.Name, err)
	}
}

// DumpJSON renders every built descriptor as a JSON array, for the
// diagnostics /debug/types endpoint.
func (r *Registry) DumpJSON() ([]byte, error) {
	r.mu.RLock()
	all := make([]*TypeDescriptor, 0, len(r.byID))
	for _, td := range r.byID {
		all = append(all, td)
	}
	r.mu.RUnlock()
	return jsoniter.Marshal(all)
}

func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fmt.Sprintf("typereg.Registry{types=%d}", len(r.byID))
}
