// Package typegraph is the uniform, in-memory representation of a parsed
// IDL type graph: type lookup by qualified name and structural inspection
// of records, variants, lists, and the other constructors of §3. Parsing
// IDL text itself is an external collaborator's job (see spec §6); this
// package only defines the data structure that collaborator populates, plus
// a Builder any such parser can drive.
package typegraph

import "fmt"

// Kind enumerates the recognised type constructors. Anything else is
// rejected at registration time with UnsupportedKind.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindF32
	KindF64
	KindChar
	KindString
	KindList
	KindRecord
	KindTuple
	KindVariant
	KindEnum
	KindOption
	KindResult
	KindFlags
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindS8:
		return "s8"
	case KindS16:
		return "s16"
	case KindS32:
		return "s32"
	case KindS64:
		return "s64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	case KindTuple:
		return "tuple"
	case KindVariant:
		return "variant"
	case KindEnum:
		return "enum"
	case KindOption:
		return "option"
	case KindResult:
		return "result"
	case KindFlags:
		return "flags"
	case KindAlias:
		return "alias"
	default:
		return "invalid"
	}
}

// IsPrimitive reports whether k is a scalar with no declared-type index.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindBool, KindU8, KindU16, KindU32, KindU64,
		KindS8, KindS16, KindS32, KindS64, KindF32, KindF64, KindChar, KindString:
		return true
	default:
		return false
	}
}

// TypeRef is an immutable reference into a Graph: either a primitive tag
// (index == primitiveIndex) or an index into Graph.defs for a declared
// type. TypeRefs from different Graphs must never be mixed.
type TypeRef struct {
	kind  Kind
	index int // -1 for primitives; index into the owning Graph's defs otherwise
}

const primitiveIndex = -1

func primitiveRef(k Kind) TypeRef { return TypeRef{kind: k, index: primitiveIndex} }

// Kind returns the shallow kind of the reference (KindAlias for an
// unresolved alias — use Graph.Resolve to see through it).
func (r TypeRef) Kind() Kind { return r.kind }

// Field is one named member of a record, in declaration order.
type Field struct {
	Name string
	Type TypeRef
}

// Case is one named arm of a variant/enum/option/result, in declaration
// order. Payload is nil for enum cases and for variant cases with no
// payload.
type Case struct {
	Name    string
	Payload *TypeRef
}

// Def is the structural definition of one declared (non-primitive,
// non-alias) type, or an alias's target.
type Def struct {
	Kind Kind
	Name string // qualified name, per §4.7

	Elem *TypeRef // list<T>, alias target

	Fields []Field // record, tuple (Name == "" for tuple positions)
	Cases  []Case  // variant, enum, option, result
	Flags  []string
}

// NamedType pairs a declared type's qualified name with its reference, as
// returned by Graph.ListTypes.
type NamedType struct {
	Name string
	Ref  TypeRef
}

// Graph is an immutable, shareable type graph built once from IDL text at
// registration time (spec §9: "TypeGraph is read-only and shared").
type Graph struct {
	defs   []Def
	byName map[string]int
}

// Lookup resolves a qualified name to a TypeRef.
func (g *Graph) Lookup(qualifiedName string) (TypeRef, bool) {
	idx, ok := g.byName[qualifiedName]
	if !ok {
		return TypeRef{}, false
	}
	return TypeRef{kind: g.defs[idx].Kind, index: idx}, true
}

// ListTypes returns every declared type in the graph, in declaration
// order.
func (g *Graph) ListTypes() []NamedType {
	out := make([]NamedType, len(g.defs))
	for i, d := range g.defs {
		out[i] = NamedType{Name: d.Name, Ref: TypeRef{kind: d.Kind, index: i}}
	}
	return out
}

// Def returns the structural definition behind ref. It returns an error
// for a primitive ref, which has no definition, and for an index outside
// this Graph's declared types.
func (g *Graph) Def(ref TypeRef) (Def, error) {
	if ref.kind.IsPrimitive() {
		return Def{}, fmt.Errorf("typegraph: %s is a primitive, not a declared type", ref.kind)
	}
	if ref.index < 0 || ref.index >= len(g.defs) {
		return Def{}, fmt.Errorf("typegraph: type index %d out of range (graph has %d declared types)", ref.index, len(g.defs))
	}
	return g.defs[ref.index], nil
}

// Resolve follows `type alias = T` chains transparently and returns the
// first non-alias TypeRef plus its Def (or a zero Def for primitives).
func (g *Graph) Resolve(ref TypeRef) (TypeRef, Def, error) {
	seen := map[int]bool{}
	for {
		if ref.kind.IsPrimitive() {
			return ref, Def{}, nil
		}
		if ref.kind != KindAlias {
			d, err := g.Def(ref)
			return ref, d, err
		}
		if seen[ref.index] {
			return TypeRef{}, Def{}, fmt.Errorf("typegraph: alias cycle detected at index %d", ref.index)
		}
		seen[ref.index] = true
		d, err := g.Def(ref)
		if err != nil {
			return TypeRef{}, Def{}, err
		}
		ref = *d.Elem
	}
}
