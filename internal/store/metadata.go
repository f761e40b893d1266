package store

import (
	"github.com/canonkv/canonkv/internal/arena"
	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/envelope"
	"github.com/canonkv/canonkv/internal/layout"
	"github.com/canonkv/canonkv/internal/typegraph"
	"github.com/canonkv/canonkv/internal/witerrors"
)

// KeyspaceMetadata is spec §3's KeyspaceMetadata record: everything the
// store remembers about a keyspace's registered type.
type KeyspaceMetadata struct {
	Name          string
	QualifiedName string
	IDLDefinition string
	TypeName      string
	TypeVersion   envelope.SemanticVersion
	TypeHash      uint32
	CreatedAt     int64
}

// metaGraph/metaRef are a second fixed, compiled-in TypeGraph (alongside
// the envelope package's own), so KeyspaceMetadata is persisted with the
// same Lower/Lift machinery every stored value uses instead of a separate
// bespoke serialisation format.
var (
	metaGraph *typegraph.Graph
	metaRef   typegraph.TypeRef
)

func init() {
	b := typegraph.NewBuilder()
	str := must1(typegraph.Primitive(typegraph.KindString))
	u32 := must1(typegraph.Primitive(typegraph.KindU32))
	u64 := must1(typegraph.Primitive(typegraph.KindU64))

	semver := must2(b.DeclareRecord("canonkv:store/meta#semantic-version", []typegraph.Field{
		{Name: "major", Type: u32},
		{Name: "minor", Type: u32},
		{Name: "patch", Type: u32},
	}))
	meta := must2(b.DeclareRecord("canonkv:store/meta#keyspace-metadata", []typegraph.Field{
		{Name: "name", Type: str},
		{Name: "qualified_name", Type: str},
		{Name: "idl_definition", Type: str},
		{Name: "type_name", Type: str},
		{Name: "type_version", Type: semver},
		{Name: "type_hash", Type: u32},
		{Name: "created_at", Type: u64},
	}))

	metaGraph = b.Build()
	metaRef = meta
}

func must1(ref typegraph.TypeRef, err error) typegraph.TypeRef {
	if err != nil {
		panic("store: compiled-in metadata type graph: " + err.Error())
	}
	return ref
}

func must2(ref typegraph.TypeRef, err error) typegraph.TypeRef { return must1(ref, err) }

func encodeMetadata(m KeyspaceMetadata, limits codec.Limits) ([]byte, error) {
	v := typegraph.Record([]typegraph.FieldValue{
		{Name: "name", Value: typegraph.Str(m.Name)},
		{Name: "qualified_name", Value: typegraph.Str(m.QualifiedName)},
		{Name: "idl_definition", Value: typegraph.Str(m.IDLDefinition)},
		{Name: "type_name", Value: typegraph.Str(m.TypeName)},
		{Name: "type_version", Value: typegraph.Record([]typegraph.FieldValue{
			{Name: "major", Value: typegraph.Uint(typegraph.KindU32, uint64(m.TypeVersion.Major))},
			{Name: "minor", Value: typegraph.Uint(typegraph.KindU32, uint64(m.TypeVersion.Minor))},
			{Name: "patch", Value: typegraph.Uint(typegraph.KindU32, uint64(m.TypeVersion.Patch))},
		})},
		{Name: "type_hash", Value: typegraph.Uint(typegraph.KindU32, uint64(m.TypeHash))},
		{Name: "created_at", Value: typegraph.Uint(typegraph.KindU64, uint64(m.CreatedAt))},
	})

	main, mem, err := codec.Lower(metaGraph, metaRef, v, limits)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(main)+len(mem.Bytes()))
	out = append(out, main...)
	out = append(out, mem.Bytes()...)
	return out, nil
}

func decodeMetadata(data []byte) (KeyspaceMetadata, error) {
	const op = "store.decodeMetadata"

	l, err := layout.Of(metaGraph, metaRef)
	if err != nil {
		panic("store: compiled-in metadata type graph: " + err.Error())
	}
	if uint64(len(data)) < uint64(l.Size) {
		return KeyspaceMetadata{}, witerrors.New(witerrors.MemoryBounds, op, "persisted keyspace metadata shorter than its fixed layout size")
	}

	main := data[:l.Size]
	mem := arena.FromBytes(data[l.Size:])
	v, err := codec.Lift(metaGraph, metaRef, main, mem)
	if err != nil {
		return KeyspaceMetadata{}, err
	}

	typeVersion, _ := field(v, "type_version")
	major, _ := field(typeVersion, "major")
	minor, _ := field(typeVersion, "minor")
	patch, _ := field(typeVersion, "patch")
	name, _ := field(v, "name")
	qualifiedName, _ := field(v, "qualified_name")
	idlDefinition, _ := field(v, "idl_definition")
	typeName, _ := field(v, "type_name")
	typeHash, _ := field(v, "type_hash")
	createdAt, _ := field(v, "created_at")

	return KeyspaceMetadata{
		Name:          name.Str,
		QualifiedName: qualifiedName.Str,
		IDLDefinition: idlDefinition.Str,
		TypeName:      typeName.Str,
		TypeVersion: envelope.SemanticVersion{
			Major: uint32(major.Uint),
			Minor: uint32(minor.Uint),
			Patch: uint32(patch.Uint),
		},
		TypeHash:  uint32(typeHash.Uint),
		CreatedAt: int64(createdAt.Uint),
	}, nil
}

func field(v typegraph.Value, name string) (typegraph.Value, bool) {
	for _, fv := range v.Fields {
		if fv.Name == name {
			return fv.Value, true
		}
	}
	return typegraph.Value{}, false
}
