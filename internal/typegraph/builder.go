package typegraph

import "fmt"

// Builder constructs an immutable Graph. An external IDL parser (or a
// test's hand-written fixture, or go.uber.org/mock-based test double of
// the parser collaborator) drives a Builder one declaration at a time and
// calls Build once at the end; Graphs themselves are never mutated after
// that, per §9's ownership note.
type Builder struct {
	defs   []Def
	byName map[string]int
}

// NewBuilder starts an empty graph under construction.
func NewBuilder() *Builder {
	return &Builder{byName: make(map[string]int)}
}

// Primitive returns the TypeRef for a built-in scalar kind; it requires no
// declaration and is valid without calling Build.
func Primitive(k Kind) (TypeRef, error) {
	if !k.IsPrimitive() {
		return TypeRef{}, fmt.Errorf("typegraph: %s is not a primitive kind", k)
	}
	return primitiveRef(k), nil
}

func (b *Builder) declare(def Def) (TypeRef, error) {
	if def.Name == "" {
		return TypeRef{}, fmt.Errorf("typegraph: declared type must have a non-empty qualified name")
	}
	if _, exists := b.byName[def.Name]; exists {
		return TypeRef{}, fmt.Errorf("typegraph: type %q already declared in this graph", def.Name)
	}
	idx := len(b.defs)
	b.defs = append(b.defs, def)
	b.byName[def.Name] = idx
	return TypeRef{kind: def.Kind, index: idx}, nil
}

// DeclareRecord adds a record type with fields in the given order.
func (b *Builder) DeclareRecord(name string, fields []Field) (TypeRef, error) {
	return b.declare(Def{Kind: KindRecord, Name: name, Fields: fields})
}

// DeclareTuple adds a tuple type; fields should have empty Names.
func (b *Builder) DeclareTuple(name string, elems []TypeRef) (TypeRef, error) {
	fields := make([]Field, len(elems))
	for i, e := range elems {
		fields[i] = Field{Type: e}
	}
	return b.declare(Def{Kind: KindTuple, Name: name, Fields: fields})
}

// DeclareVariant adds a variant type; cases are ordered, discriminant is
// the case index.
func (b *Builder) DeclareVariant(name string, cases []Case) (TypeRef, error) {
	if len(cases) == 0 {
		return TypeRef{}, fmt.Errorf("typegraph: variant %q must have at least one case", name)
	}
	return b.declare(Def{Kind: KindVariant, Name: name, Cases: cases})
}

// DeclareEnum adds a variant with no payloads.
func (b *Builder) DeclareEnum(name string, caseNames []string) (TypeRef, error) {
	cases := make([]Case, len(caseNames))
	for i, c := range caseNames {
		cases[i] = Case{Name: c}
	}
	return b.declare(Def{Kind: KindEnum, Name: name, Cases: cases})
}

// DeclareList adds a list<T> type under its own qualified name (most IDLs
// expose list<T> anonymously via a field's type rather than a top-level
// declaration, but registering it lets EnvelopeCodec-style fixed types
// name it directly).
func (b *Builder) DeclareList(name string, elem TypeRef) (TypeRef, error) {
	return b.declare(Def{Kind: KindList, Name: name, Elem: &elem})
}

// DeclareOption adds `option<T>`: cases (none, some(T)).
func (b *Builder) DeclareOption(name string, elem TypeRef) (TypeRef, error) {
	return b.declare(Def{Kind: KindOption, Name: name, Cases: []Case{
		{Name: "none"},
		{Name: "some", Payload: &elem},
	}})
}

// DeclareResult adds `result<T?, E?>`: cases (ok(T?), err(E?)). Either
// payload may be nil for a unit ok/err arm.
func (b *Builder) DeclareResult(name string, ok, errT *TypeRef) (TypeRef, error) {
	return b.declare(Def{Kind: KindResult, Name: name, Cases: []Case{
		{Name: "ok", Payload: ok},
		{Name: "err", Payload: errT},
	}})
}

// DeclareFlags adds a flags type; count > 32 is rejected per §4.2.
func (b *Builder) DeclareFlags(name string, names []string) (TypeRef, error) {
	if len(names) > 32 {
		return TypeRef{}, fmt.Errorf("typegraph: flags %q declares %d flags, max is 32", name, len(names))
	}
	return b.declare(Def{Kind: KindFlags, Name: name, Flags: names})
}

// DeclareAlias adds `type alias = T`, resolved transparently by Graph.Resolve.
func (b *Builder) DeclareAlias(name string, target TypeRef) (TypeRef, error) {
	return b.declare(Def{Kind: KindAlias, Name: name, Elem: &target})
}

// Build finalises the graph. The Builder must not be reused afterwards.
func (b *Builder) Build() *Graph {
	defs := make([]Def, len(b.defs))
	copy(defs, b.defs)
	byName := make(map[string]int, len(b.byName))
	for k, v := range b.byName {
		byName[k] = v
	}
	return &Graph{defs: defs, byName: byName}
}
