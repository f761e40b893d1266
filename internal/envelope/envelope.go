// Package envelope implements StoredEnvelope (spec §3/§4.5): the
// self-describing wrapper every value is persisted as, carrying its own
// format version and the type version it was written against so a later
// schema change can be detected before Lift ever runs.
package envelope

import (
	"fmt"

	"github.com/canonkv/canonkv/internal/arena"
	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/layout"
	"github.com/canonkv/canonkv/internal/typegraph"
	"github.com/canonkv/canonkv/internal/witerrors"
)

// CurrentFormatVersion is the only envelope wire format this build can
// decode. A persisted envelope with a higher format_version was written by
// a newer build and is rejected outright.
const CurrentFormatVersion = 1

// SemanticVersion mirrors spec §3's SemanticVersion record.
type SemanticVersion struct {
	Major uint32
	Minor uint32
	Patch uint32
}

func (v SemanticVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Envelope is the decoded form of a StoredEnvelope. Memory is nil when the
// value required no variable-length payload (the `none` arm of the
// envelope's `memory: option<list<u8>>` field).
type Envelope struct {
	FormatVersion uint8
	TypeVersion   SemanticVersion
	Value         []byte
	Memory        []byte
}

// graph and envelopeRef are the fixed, compiled-in TypeGraph for the
// envelope record itself (spec §4.5): built once at package init and never
// mutated, same ownership rule as any other TypeGraph (§9).
var (
	graph       *typegraph.Graph
	envelopeRef typegraph.TypeRef
)

func init() {
	b := typegraph.NewBuilder()
	u8 := must1(typegraph.Primitive(typegraph.KindU8))
	u32 := must1(typegraph.Primitive(typegraph.KindU32))

	semver := must2(b.DeclareRecord("canonkv:envelope/meta#semantic-version", []typegraph.Field{
		{Name: "major", Type: u32},
		{Name: "minor", Type: u32},
		{Name: "patch", Type: u32},
	}))
	byteList := must2(b.DeclareList("canonkv:envelope/meta#byte-list", u8))
	optBytes := must2(b.DeclareOption("canonkv:envelope/meta#opt-byte-list", byteList))
	env := must2(b.DeclareRecord("canonkv:envelope/meta#envelope", []typegraph.Field{
		{Name: "format_version", Type: u8},
		{Name: "type_version", Type: semver},
		{Name: "value", Type: byteList},
		{Name: "memory", Type: optBytes},
	}))

	graph = b.Build()
	envelopeRef = env
}

func must1(ref typegraph.TypeRef, err error) typegraph.TypeRef {
	if err != nil {
		panic("envelope: compiled-in type graph: " + err.Error())
	}
	return ref
}

func must2(ref typegraph.TypeRef, err error) typegraph.TypeRef { return must1(ref, err) }

// Encode lowers e against the compiled-in envelope type and concatenates
// the resulting main buffer with its linear memory. No length framing is
// added: the caller (TypedStore, backed by the engine) already knows the
// total blob length for a given key.
func Encode(e Envelope, limits codec.Limits) ([]byte, error) {
	if e.FormatVersion == 0 {
		e.FormatVersion = CurrentFormatVersion
	}
	main, mem, err := codec.Lower(graph, envelopeRef, toValue(e), limits)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(main)+len(mem.Bytes()))
	out = append(out, main...)
	out = append(out, mem.Bytes()...)
	return out, nil
}

// Decode splits persisted back into (main, memory) using the envelope
// type's fixed layout size, lifts it, and enforces the format-version
// gate.
func Decode(persisted []byte) (Envelope, error) {
	const op = "envelope.Decode"

	l, err := layout.Of(graph, envelopeRef)
	if err != nil {
		panic("envelope: compiled-in type graph: " + err.Error())
	}
	if uint64(len(persisted)) < uint64(l.Size) {
		return Envelope{}, witerrors.New(witerrors.MemoryBounds, op, "persisted envelope shorter than its fixed layout size")
	}

	main := persisted[:l.Size]
	mem := arena.FromBytes(persisted[l.Size:])

	v, err := codec.Lift(graph, envelopeRef, main, mem)
	if err != nil {
		return Envelope{}, err
	}
	e, err := fromValue(v)
	if err != nil {
		return Envelope{}, err
	}
	if e.FormatVersion > CurrentFormatVersion {
		return Envelope{}, witerrors.New(witerrors.UnsupportedEnvelopeVersion, op,
			fmt.Sprintf("format_version %d is newer than the %d this build supports", e.FormatVersion, CurrentFormatVersion))
	}
	return e, nil
}

func toValue(e Envelope) typegraph.Value {
	var memValue typegraph.Value
	if e.Memory == nil {
		memValue = typegraph.None()
	} else {
		listVal := typegraph.List(bytesToItems(e.Memory))
		memValue = typegraph.Some(listVal)
	}
	return typegraph.Record([]typegraph.FieldValue{
		{Name: "format_version", Value: typegraph.Uint(typegraph.KindU8, uint64(e.FormatVersion))},
		{Name: "type_version", Value: typegraph.Record([]typegraph.FieldValue{
			{Name: "major", Value: typegraph.Uint(typegraph.KindU32, uint64(e.TypeVersion.Major))},
			{Name: "minor", Value: typegraph.Uint(typegraph.KindU32, uint64(e.TypeVersion.Minor))},
			{Name: "patch", Value: typegraph.Uint(typegraph.KindU32, uint64(e.TypeVersion.Patch))},
		})},
		{Name: "value", Value: typegraph.List(bytesToItems(e.Value))},
		{Name: "memory", Value: memValue},
	})
}

func fromValue(v typegraph.Value) (Envelope, error) {
	const op = "envelope.Decode"

	formatVersion, ok := field(v, "format_version")
	if !ok {
		return Envelope{}, witerrors.New(witerrors.GraphError, op, "envelope value missing format_version field")
	}
	typeVersion, ok := field(v, "type_version")
	if !ok {
		return Envelope{}, witerrors.New(witerrors.GraphError, op, "envelope value missing type_version field")
	}
	major, _ := field(typeVersion, "major")
	minor, _ := field(typeVersion, "minor")
	patch, _ := field(typeVersion, "patch")

	valueField, ok := field(v, "value")
	if !ok {
		return Envelope{}, witerrors.New(witerrors.GraphError, op, "envelope value missing value field")
	}
	memoryField, ok := field(v, "memory")
	if !ok {
		return Envelope{}, witerrors.New(witerrors.GraphError, op, "envelope value missing memory field")
	}

	e := Envelope{
		FormatVersion: uint8(formatVersion.Uint),
		TypeVersion: SemanticVersion{
			Major: uint32(major.Uint),
			Minor: uint32(minor.Uint),
			Patch: uint32(patch.Uint),
		},
		Value: itemsToBytes(valueField.Items),
	}
	if memoryField.Case == "some" && memoryField.Payload != nil {
		e.Memory = itemsToBytes(memoryField.Payload.Items)
	}
	return e, nil
}

func field(v typegraph.Value, name string) (typegraph.Value, bool) {
	for _, fv := range v.Fields {
		if fv.Name == name {
			return fv.Value, true
		}
	}
	return typegraph.Value{}, false
}

func bytesToItems(b []byte) []typegraph.Value {
	items := make([]typegraph.Value, len(b))
	for i, by := range b {
		items[i] = typegraph.Uint(typegraph.KindU8, uint64(by))
	}
	return items
}

func itemsToBytes(items []typegraph.Value) []byte {
	if len(items) == 0 {
		return nil
	}
	out := make([]byte, len(items))
	for i, it := range items {
		out[i] = byte(it.Uint)
	}
	return out
}
