package typereg

// bootstrap seeds the registry with void, the eight primitives, Object,
// Number, the boxed wrappers, String, the byte[]/char[] array types the
// overload resolver's Pythonic tie-breaks reference by ID, the List/Set/Map
// containers, the ClientObject and NDArray wrappers, and the well-known
// functional interfaces. All other types come from the registry's Source.
func (r *Registry) bootstrap() {
	voidTD := &TypeDescriptor{ID: VoidTypeID, Name: "void", Flags: FlagPrimitive, Primitive: PrimVoid}
	r.byID[VoidTypeID] = voidTD
	r.byName["void"] = VoidTypeID

	prims := []struct {
		kind PrimitiveKind
		name string
	}{
		{PrimBoolean, "boolean"},
		{PrimByte, "byte"},
		{PrimShort, "short"},
		{PrimChar, "char"},
		{PrimInt, "int"},
		{PrimLong, "long"},
		{PrimFloat, "float"},
		{PrimDouble, "double"},
	}
	primID := make(map[PrimitiveKind]TypeID, len(prims))
	for _, p := range prims {
		td := r.define(&TypeDescriptor{Name: p.name, Flags: FlagPrimitive, Primitive: p.kind})
		primID[p.kind] = td.ID
	}

	boxedNames := map[PrimitiveKind]string{
		PrimBoolean: "java.lang.Boolean",
		PrimByte:    "java.lang.Byte",
		PrimShort:   "java.lang.Short",
		PrimChar:    "java.lang.Character",
		PrimInt:     "java.lang.Integer",
		PrimLong:    "java.lang.Long",
		PrimFloat:   "java.lang.Float",
		PrimDouble:  "java.lang.Double",
	}
	objectTD := r.define(&TypeDescriptor{Name: "java.lang.Object"})
	numberTD := r.define(&TypeDescriptor{Name: "java.lang.Number", Supertypes: []TypeID{objectTD.ID}})
	for kind, name := range boxedNames {
		supers := []TypeID{objectTD.ID}
		switch kind {
		case PrimByte, PrimShort, PrimInt, PrimLong, PrimFloat, PrimDouble:
			supers = []TypeID{numberTD.ID}
		}
		r.define(&TypeDescriptor{Name: name, BoxedOf: kind, Supertypes: supers})
	}

	stringTD := r.define(&TypeDescriptor{Name: "java.lang.String", Supertypes: []TypeID{objectTD.ID}})
	r.stringID = stringTD.ID

	byteArrTD := r.define(&TypeDescriptor{
		Name: "byte[]", Flags: FlagArray, ElementType: primID[PrimByte],
	})
	r.byteArrayID = byteArrTD.ID

	charArrTD := r.define(&TypeDescriptor{
		Name: "char[]", Flags: FlagArray, ElementType: primID[PrimChar],
	})
	r.charArrayID = charArrTD.ID

	r.listID = r.define(&TypeDescriptor{Name: "java.util.List", Flags: FlagInterface, Supertypes: []TypeID{objectTD.ID}}).ID
	r.setID = r.define(&TypeDescriptor{Name: "java.util.Set", Flags: FlagInterface, Supertypes: []TypeID{objectTD.ID}}).ID
	r.mapID = r.define(&TypeDescriptor{Name: "java.util.Map", Flags: FlagInterface, Supertypes: []TypeID{objectTD.ID}}).ID
	r.clientObjID = r.define(&TypeDescriptor{Name: "pjrmi.ClientObject", Supertypes: []TypeID{objectTD.ID}}).ID
	r.ndArrayID = r.define(&TypeDescriptor{Name: "pjrmi.NDArray", Supertypes: []TypeID{objectTD.ID}}).ID

	// Well-known single-method interfaces the callback engine synthesises a
	// direct proxy for, keyed by arity, without reflection-filtering a
	// caller-supplied interface's method set.
	mkFunctional := func(name string, arity int) TypeID {
		args := make([]TypeID, arity)
		for i := range args {
			args[i] = objectTD.ID
		}
		return r.define(&TypeDescriptor{
			Name:  name,
			Flags: FlagInterface | FlagFunctional,
			Supertypes: []TypeID{objectTD.ID},
			Methods: []CallableDescriptor{
				{Index: 0, Name: "call", ReturnType: objectTD.ID, ArgTypes: args},
			},
		}).ID
	}
	r.runnableID = mkFunctional("pjrmi.Runnable", 0)
	r.functionID = mkFunctional("pjrmi.Function", 1)
	r.biFunctionID = mkFunctional("pjrmi.BiFunction", 2)
	r.consumerID = mkFunctional("pjrmi.Consumer", 1)
	r.biConsumerID = mkFunctional("pjrmi.BiConsumer", 2)
	r.predicateID = mkFunctional("pjrmi.Predicate", 1)
	r.biPredicateID = mkFunctional("pjrmi.BiPredicate", 2)
	r.unaryOperatorID = mkFunctional("pjrmi.UnaryOperator", 1)
	r.keywordFunctionID = mkFunctional("pjrmi.KeywordFunction", 1)
}

// ListTypeID returns the well-known ID of the List/Collection container type.
func (r *Registry) ListTypeID() TypeID { return r.listID }

// SetTypeID returns the well-known ID of the Set container type.
func (r *Registry) SetTypeID() TypeID { return r.setID }

// MapTypeID returns the well-known ID of the Map container type.
func (r *Registry) MapTypeID() TypeID { return r.mapID }

// ClientObjectTypeID returns the well-known ID of the client-object wrapper
// type.
func (r *Registry) ClientObjectTypeID() TypeID { return r.clientObjID }

// NDArrayTypeID returns the well-known ID of the typed n-dimensional array
// wrapper type.
func (r *Registry) NDArrayTypeID() TypeID { return r.ndArrayID }

// PrimitiveTypeID looks up the TypeID of a bootstrapped primitive kind.
func (r *Registry) PrimitiveTypeID(kind PrimitiveKind) (TypeID, bool) {
	name := kind.String()
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// StringTypeID returns the well-known ID of java.lang.String.
func (r *Registry) StringTypeID() TypeID { return r.stringID }

// ByteArrayTypeID returns the well-known ID of byte[].
func (r *Registry) ByteArrayTypeID() TypeID { return r.byteArrayID }

// CharArrayTypeID returns the well-known ID of char[].
func (r *Registry) CharArrayTypeID() TypeID { return r.charArrayID }

// RunnableTypeID returns the well-known ID of the nullary callable interface.
func (r *Registry) RunnableTypeID() TypeID { return r.runnableID }

// FunctionTypeID returns the well-known ID of the unary function interface.
func (r *Registry) FunctionTypeID() TypeID { return r.functionID }

// BiFunctionTypeID returns the well-known ID of the binary function interface.
func (r *Registry) BiFunctionTypeID() TypeID { return r.biFunctionID }

// ConsumerTypeID returns the well-known ID of the unary consumer interface.
func (r *Registry) ConsumerTypeID() TypeID { return r.consumerID }

// BiConsumerTypeID returns the well-known ID of the binary consumer interface.
func (r *Registry) BiConsumerTypeID() TypeID { return r.biConsumerID }

// PredicateTypeID returns the well-known ID of the unary predicate interface.
func (r *Registry) PredicateTypeID() TypeID { return r.predicateID }

// BiPredicateTypeID returns the well-known ID of the binary predicate interface.
func (r *Registry) BiPredicateTypeID() TypeID { return r.biPredicateID }

// UnaryOperatorTypeID returns the well-known ID of the unary operator interface.
func (r *Registry) UnaryOperatorTypeID() TypeID { return r.unaryOperatorID }

// KeywordFunctionTypeID returns the well-known ID of the keyword-accepting
// function interface, also used as the generic fallback for arities beyond
// the binary well-known interfaces.
func (r *Registry) KeywordFunctionTypeID() TypeID { return r.keywordFunctionID }
