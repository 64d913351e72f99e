// Package typereg is the type registry: it assigns stable small integer IDs
// to introspected host types, memoises field/constructor/method descriptors,
// and the per-class overload-specificity matrices the client consults to
// pick a callable. Entries are created lazily on first request and are
// immutable and process-wide thereafter.
package typereg

import "fmt"

// TypeID is a dense, non-negative, per-process-stable integer identifying a
// type descriptor. 0 is reserved for the void type.
type TypeID int32

// VoidTypeID is the reserved ID of the void pseudo-type.
const VoidTypeID TypeID = 0

// Flag is a bit-set of type-level properties.
type Flag uint16

const (
	FlagPrimitive Flag = 1 << iota
	FlagThrowable
	FlagInterface
	FlagEnum
	FlagArray
	FlagFunctional
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// PrimitiveKind enumerates the host's primitive kinds. PrimNone marks a
// reference (non-primitive) type.
type PrimitiveKind int8

const (
	PrimNone PrimitiveKind = iota
	PrimVoid
	PrimBoolean
	PrimByte
	PrimShort
	PrimChar
	PrimInt
	PrimLong
	PrimFloat
	PrimDouble
)

func (p PrimitiveKind) String() string {
	switch p {
	case PrimNone:
		return "<none>"
	case PrimVoid:
		return "void"
	case PrimBoolean:
		return "boolean"
	case PrimByte:
		return "byte"
	case PrimShort:
		return "short"
	case PrimChar:
		return "char"
	case PrimInt:
		return "int"
	case PrimLong:
		return "long"
	case PrimFloat:
		return "float"
	case PrimDouble:
		return "double"
	default:
		return fmt.Sprintf("primitive(%d)", int8(p))
	}
}

// FieldDescriptor names and types one field of a type.
type FieldDescriptor struct {
	Name   string
	TypeID TypeID
	Static bool
}

// CallableFlag is a bit-set of callable-level properties.
type CallableFlag uint16

const (
	CallableStatic CallableFlag = 1 << iota
	CallableDeprecated
	CallableDefault
	CallableExplicitBinding
	CallableHasKeywordArgs
)

func (f CallableFlag) Has(bit CallableFlag) bool { return f&bit != 0 }

// CallableDescriptor describes one constructor or method. Constructors and
// methods share this shape; a constructor's Name is its declaring type's
// name and its ReturnType is the declaring type itself.
type CallableDescriptor struct {
	Index         int // stable index within its category and type
	Name          string
	Flags         CallableFlag
	ReturnType    TypeID
	ReturnGeneric bool // true if ReturnType should be reported as the runtime class of the result
	ArgTypes      []TypeID
	ArgNames      []string
	KeywordArgs   []string // optional enumerated accepted keyword-argument names
}

// TypeDescriptor is the full, lazily-built, immutable description of one
// host type.
type TypeDescriptor struct {
	ID          TypeID
	Name        string
	Flags       Flag
	Primitive   PrimitiveKind // PrimNone unless Flags.Has(FlagPrimitive)
	BoxedOf     PrimitiveKind // PrimNone unless this type is the boxed wrapper of a primitive
	Supertypes  []TypeID      // direct supertypes: superclass + interfaces
	ElementType TypeID        // valid iff Flags.Has(FlagArray)

	Fields       []FieldDescriptor
	Constructors []CallableDescriptor
	Methods      []CallableDescriptor

	// ConstructorSpecificity[i][j] and MethodSpecificity[i][j] give the
	// signed pairwise specificity of Constructors[i] vs Constructors[j]
	// (respectively Methods[i] vs Methods[j]): antisymmetric, zero diagonal.
	ConstructorSpecificity [][]int8
	MethodSpecificity      [][]int8
}
