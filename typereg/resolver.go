package typereg

// Compare is the overload resolver's signed pairwise comparator: it returns
// a negative value if a is strictly more specific than b, positive for the
// converse, and zero if they are incomparable (common, not an error).
// Exactly the rules from the component design:
//
//  1. Different names or different arities => 0.
//  2. Per-parameter comparison with host-specific numeric/boxing rules.
//  3. A direction conflict across parameter positions => 0.
//  4. All parameters equivalent => break ties on return type.
//  5. Otherwise the single non-zero direction found wins.
func Compare(reg *Registry, a, b *CallableDescriptor) int8 {
	if a.Name != b.Name || len(a.ArgTypes) != len(b.ArgTypes) {
		return 0
	}

	var dir int8
	allEquivalent := true
	for i := range a.ArgTypes {
		c := paramCompare(reg, a.ArgTypes[i], b.ArgTypes[i])
		if c == 0 {
			continue
		}
		allEquivalent = false
		if dir == 0 {
			dir = c
		} else if dir != c {
			return 0 // strictly-more in one direction, strictly-less in another: incomparable
		}
	}

	if allEquivalent {
		return paramCompare(reg, a.ReturnType, b.ReturnType)
	}
	return dir
}

// BuildSpecificityMatrix computes the antisymmetric, zero-diagonal
// specificity matrix for a set of same-category callables (all
// constructors, or all methods, of one type).
func BuildSpecificityMatrix(reg *Registry, callables []CallableDescriptor) [][]int8 {
	n := len(callables)
	m := make([][]int8, n)
	for i := range m {
		m[i] = make([]int8, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := Compare(reg, &callables[i], &callables[j])
			m[i][j] = c
			m[j][i] = -c
		}
	}
	return m
}

// paramCompare is the per-parameter three-valued relation: -1 if aID is
// strictly more specific (narrower) than bID, +1 for the converse, 0 if
// equivalent or incomparable.
func paramCompare(reg *Registry, aID, bID TypeID) int8 {
	if aID == bID {
		return 0
	}

	tdA, okA := reg.GetByID(aID)
	tdB, okB := reg.GetByID(bID)
	if !okA || !okB {
		return 0
	}

	// boxed numeric and its own primitive are equivalent for this comparison
	if tdA.Flags.Has(FlagPrimitive) && tdB.BoxedOf == tdA.Primitive {
		return 0
	}
	if tdB.Flags.Has(FlagPrimitive) && tdA.BoxedOf == tdB.Primitive {
		return 0
	}

	if tdA.Flags.Has(FlagPrimitive) && tdB.Flags.Has(FlagPrimitive) {
		switch {
		case widensTo(tdA.Primitive, tdB.Primitive):
			return -1 // a is narrower/more specific: assignable into b's wider slot
		case widensTo(tdB.Primitive, tdA.Primitive):
			return +1
		default:
			return 0 // e.g. boolean/void stand alone
		}
	}

	// Pythonic tie-breaks among the three reference-shaped receivers a
	// Python string literal can bind to.
	if tb, ok := pythonicTieBreak(reg, aID, bID); ok {
		return tb
	}

	// Ordinary reference-type subtype assignability.
	aToB := isAssignable(reg, aID, bID)
	bToA := isAssignable(reg, bID, aID)
	switch {
	case aToB && !bToA:
		return -1
	case bToA && !aToB:
		return +1
	default:
		return 0
	}
}

func pythonicTieBreak(reg *Registry, aID, bID TypeID) (int8, bool) {
	str, ch, by := reg.StringTypeID(), reg.CharArrayTypeID(), reg.ByteArrayTypeID()
	rank := func(id TypeID) int {
		switch id {
		case str:
			return 2
		case ch:
			return 1
		case by:
			return 0
		default:
			return -1
		}
	}
	ra, rb := rank(aID), rank(bID)
	if ra < 0 || rb < 0 || ra == rb {
		return 0, false
	}
	if ra > rb {
		return -1, true
	}
	return +1, true
}

// widensTo reports whether a value of kind from can widen to kind to
// (from ⊆ to) via the host's primitive widening chain: byte ⊆ short ⊆ int
// ⊆ long ⊆ float ⊆ double, and char ⊆ int (and transitively int's chain).
// boolean and void participate in no widening.
func widensTo(from, to PrimitiveKind) bool {
	if from == to {
		return true
	}
	visited := map[PrimitiveKind]bool{}
	var dfs func(PrimitiveKind) bool
	dfs = func(k PrimitiveKind) bool {
		if k == to {
			return true
		}
		if visited[k] {
			return false
		}
		visited[k] = true
		for _, n := range wideningEdges[k] {
			if dfs(n) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

var wideningEdges = map[PrimitiveKind][]PrimitiveKind{
	PrimByte:  {PrimShort},
	PrimShort: {PrimInt},
	PrimInt:   {PrimLong},
	PrimLong:  {PrimFloat},
	PrimFloat: {PrimDouble},
	PrimChar:  {PrimInt},
}

// IsAssignable reports whether a value of type fromID may be used where
// toID is expected (ordinary, possibly multi-step, reference supertype
// assignability). Exported for the dispatcher's object-cast handler.
func IsAssignable(reg *Registry, fromID, toID TypeID) bool { return isAssignable(reg, fromID, toID) }

func isAssignable(reg *Registry, fromID, toID TypeID) bool {
	if fromID == toID {
		return true
	}
	td, ok := reg.GetByID(fromID)
	if !ok {
		return false
	}
	visited := map[TypeID]bool{fromID: true}
	queue := append([]TypeID(nil), td.Supertypes...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == toID {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true
		if std, ok := reg.GetByID(id); ok {
			queue = append(queue, std.Supertypes...)
		}
	}
	return false
}
