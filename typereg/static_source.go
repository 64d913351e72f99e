package typereg

import (
	"sync"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
)

// BuildFunc constructs a type descriptor given the ID the registry has
// reserved for it. It is responsible for the method/field collection rules
// from the component design: for an interface, declared methods plus every
// inherited method not overridden; for a non-public class, the first
// occurrence of each (name, parameter-types) signature along the
// shadowing order; for a public class, the natural accessible method set;
// fields resolved by keeping, per name, the most-derived declaration.
// BuildFunc does not need to fill in ConstructorSpecificity/
// MethodSpecificity: StaticSource computes those via BuildSpecificityMatrix
// once the descriptor's callables are known.
type BuildFunc func(id TypeID) *TypeDescriptor

// StaticSource is a Source backed by an explicit name -> BuildFunc table.
// Host applications register every type they expose through this table at
// startup (there is no open-ended classpath to walk, unlike a JVM host);
// this is the registry's only supported way to introduce a type other than
// the bootstrapped primitives/String/arrays.
type StaticSource struct {
	mu    sync.RWMutex
	build map[string]BuildFunc
}

// NewStaticSource creates an empty source; call Register before any
// GetByName(name) that should resolve against it.
func NewStaticSource() *StaticSource {
	return &StaticSource{build: make(map[string]BuildFunc)}
}

// Register associates name with a BuildFunc. Re-registering an existing
// name replaces it; callers normally do this once at startup, before any
// GetByName(name) can have run.
func (s *StaticSource) Register(name string, f BuildFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.build[name] = f
}

// Build implements Source.
func (s *StaticSource) Build(reg *Registry, id TypeID, name string) (*TypeDescriptor, error) {
	s.mu.RLock()
	f, ok := s.build[name]
	s.mu.RUnlock()
	if !ok {
		return nil, cos.NewErrNotFound("type %q", name)
	}

	td := f(id)
	td.ID = id
	td.Name = name
	if len(td.Constructors) > 0 && td.ConstructorSpecificity == nil {
		td.ConstructorSpecificity = BuildSpecificityMatrix(reg, td.Constructors)
	}
	if len(td.Methods) > 0 && td.MethodSpecificity == nil {
		td.MethodSpecificity = BuildSpecificityMatrix(reg, td.Methods)
	}
	return td, nil
}
