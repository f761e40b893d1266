package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/canonkv/canonkv/internal/arena"
	"github.com/canonkv/canonkv/internal/layout"
	"github.com/canonkv/canonkv/internal/typegraph"
	"github.com/canonkv/canonkv/internal/witerrors"
)

const opLift = "codec.Lift"

// Lift decodes main (and whatever variable-length payload mem holds) back
// into a typegraph.Value of type ref. It is Lower's inverse: for any v
// producible from ref, Lift(Lower(v)) deep-equals v, except that flags come
// back in declaration order and an empty list comes back as a non-nil empty
// Items slice.
func Lift(g *typegraph.Graph, ref typegraph.TypeRef, main []byte, mem *arena.LinearMemory) (typegraph.Value, error) {
	l, err := layout.Of(g, ref)
	if err != nil {
		return typegraph.Value{}, graphErr(opLift, "$", err)
	}
	if uint64(len(main)) < uint64(l.Size) {
		return typegraph.Value{}, witerrors.New(witerrors.MemoryBounds, opLift, "$: main buffer shorter than type's layout size")
	}
	return liftFrom(g, ref, main, 0, mem, "$")
}

func liftFrom(g *typegraph.Graph, ref typegraph.TypeRef, buf []byte, offset uint32, mem *arena.LinearMemory, path string) (typegraph.Value, error) {
	resolved, def, err := g.Resolve(ref)
	if err != nil {
		return typegraph.Value{}, graphErr(opLift, path, err)
	}

	switch resolved.Kind() {
	case typegraph.KindBool, typegraph.KindU8, typegraph.KindU16, typegraph.KindU32, typegraph.KindU64,
		typegraph.KindS8, typegraph.KindS16, typegraph.KindS32, typegraph.KindS64,
		typegraph.KindF32, typegraph.KindF64, typegraph.KindChar:
		return liftScalar(resolved.Kind(), buf, offset, path)
	case typegraph.KindString:
		return liftString(buf, offset, mem, path)
	case typegraph.KindList:
		return liftList(g, def, buf, offset, mem, path)
	case typegraph.KindRecord, typegraph.KindTuple:
		return liftRecord(g, def, buf, offset, mem, path)
	case typegraph.KindVariant, typegraph.KindEnum, typegraph.KindOption, typegraph.KindResult:
		return liftVariant(g, def, buf, offset, mem, path)
	case typegraph.KindFlags:
		return liftFlags(def, buf, offset, path)
	default:
		return typegraph.Value{}, unsupportedKind(opLift, path, resolved.Kind())
	}
}

func liftScalar(k typegraph.Kind, buf []byte, offset uint32, path string) (typegraph.Value, error) {
	switch k {
	case typegraph.KindBool:
		b := buf[offset]
		if b != 0 && b != 1 {
			return typegraph.Value{}, witerrors.New(witerrors.InvalidBool, opLift, fmt.Sprintf("%s: byte %d is not a valid bool", path, b))
		}
		return typegraph.Bool(b == 1), nil
	case typegraph.KindU8:
		return typegraph.Uint(k, uint64(buf[offset])), nil
	case typegraph.KindU16:
		return typegraph.Uint(k, uint64(binary.LittleEndian.Uint16(buf[offset:]))), nil
	case typegraph.KindU32:
		return typegraph.Uint(k, uint64(binary.LittleEndian.Uint32(buf[offset:]))), nil
	case typegraph.KindU64:
		return typegraph.Uint(k, binary.LittleEndian.Uint64(buf[offset:])), nil
	case typegraph.KindS8:
		return typegraph.Int(k, int64(int8(buf[offset]))), nil
	case typegraph.KindS16:
		return typegraph.Int(k, int64(int16(binary.LittleEndian.Uint16(buf[offset:])))), nil
	case typegraph.KindS32:
		return typegraph.Int(k, int64(int32(binary.LittleEndian.Uint32(buf[offset:])))), nil
	case typegraph.KindS64:
		return typegraph.Int(k, int64(binary.LittleEndian.Uint64(buf[offset:]))), nil
	case typegraph.KindF32:
		return typegraph.Float(k, float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:])))), nil
	case typegraph.KindF64:
		return typegraph.Float(k, math.Float64frombits(binary.LittleEndian.Uint64(buf[offset:]))), nil
	case typegraph.KindChar:
		u := binary.LittleEndian.Uint32(buf[offset:])
		if u > 0x10FFFF || (u >= 0xD800 && u <= 0xDFFF) || !utf8.ValidRune(rune(u)) {
			return typegraph.Value{}, witerrors.New(witerrors.InvalidChar, opLift, fmt.Sprintf("%s: %d is not a valid scalar value", path, u))
		}
		return typegraph.Chr(rune(u)), nil
	default:
		return typegraph.Value{}, unsupportedKind(opLift, path, k)
	}
}

func liftString(buf []byte, offset uint32, mem *arena.LinearMemory, path string) (typegraph.Value, error) {
	off := binary.LittleEndian.Uint32(buf[offset:])
	n := binary.LittleEndian.Uint32(buf[offset+4:])
	data, err := mem.Read(off, n)
	if err != nil {
		return typegraph.Value{}, witerrors.Wrap(witerrors.MemoryBounds, opLift, path, err)
	}
	if !utf8.Valid(data) {
		return typegraph.Value{}, witerrors.New(witerrors.InvalidUtf8, opLift, fmt.Sprintf("%s: invalid UTF-8", path))
	}
	return typegraph.Str(string(data)), nil
}

func liftList(g *typegraph.Graph, def typegraph.Def, buf []byte, offset uint32, mem *arena.LinearMemory, path string) (typegraph.Value, error) {
	off := binary.LittleEndian.Uint32(buf[offset:])
	n := binary.LittleEndian.Uint32(buf[offset+4:])

	elem := *def.Elem
	el, err := layout.Of(g, elem)
	if err != nil {
		return typegraph.Value{}, graphErr(opLift, path, err)
	}

	total := uint64(el.Size) * uint64(n)
	if total > math.MaxUint32 {
		return typegraph.Value{}, witerrors.New(witerrors.MemoryBounds, opLift, fmt.Sprintf("%s: list byte length overflows u32", path))
	}
	data, err := mem.Read(off, uint32(total))
	if err != nil {
		return typegraph.Value{}, witerrors.Wrap(witerrors.MemoryBounds, opLift, path, err)
	}

	items := make([]typegraph.Value, n)
	for i := uint32(0); i < n; i++ {
		v, err := liftFrom(g, elem, data, i*el.Size, mem, listElemPath(path, int(i)))
		if err != nil {
			return typegraph.Value{}, err
		}
		items[i] = v
	}
	return typegraph.List(items), nil
}

func liftRecord(g *typegraph.Graph, def typegraph.Def, buf []byte, offset uint32, mem *arena.LinearMemory, path string) (typegraph.Value, error) {
	offsets, _, err := layout.RecordLayout(g, def.Fields)
	if err != nil {
		return typegraph.Value{}, graphErr(opLift, path, err)
	}

	if def.Kind == typegraph.KindTuple {
		items := make([]typegraph.Value, len(def.Fields))
		for i, f := range def.Fields {
			v, err := liftFrom(g, f.Type, buf, offset+offsets[i], mem, tuplePath(path, i))
			if err != nil {
				return typegraph.Value{}, err
			}
			items[i] = v
		}
		return typegraph.Tuple(items), nil
	}

	fields := make([]typegraph.FieldValue, len(def.Fields))
	for i, f := range def.Fields {
		v, err := liftFrom(g, f.Type, buf, offset+offsets[i], mem, fieldPath(path, f.Name))
		if err != nil {
			return typegraph.Value{}, err
		}
		fields[i] = typegraph.FieldValue{Name: f.Name, Value: v}
	}
	return typegraph.Record(fields), nil
}

func liftVariant(g *typegraph.Graph, def typegraph.Def, buf []byte, offset uint32, mem *arena.LinearMemory, path string) (typegraph.Value, error) {
	shape, err := layout.VariantLayout(g, def.Cases)
	if err != nil {
		return typegraph.Value{}, graphErr(opLift, path, err)
	}

	idx := readDiscriminant(buf, offset, shape.DiscSize)
	if int(idx) >= len(def.Cases) {
		return typegraph.Value{}, witerrors.New(witerrors.UnknownDiscriminant, opLift, fmt.Sprintf("%s: discriminant %d has no matching case", path, idx))
	}
	c := def.Cases[idx]

	var payload *typegraph.Value
	if c.Payload != nil {
		pv, err := liftFrom(g, *c.Payload, buf, offset+shape.PayloadOffset, mem, fieldPath(path, c.Name))
		if err != nil {
			return typegraph.Value{}, err
		}
		payload = &pv
	}

	switch def.Kind {
	case typegraph.KindEnum:
		return typegraph.Enum(c.Name), nil
	case typegraph.KindOption:
		if c.Name == "some" {
			return typegraph.Some(*payload), nil
		}
		return typegraph.None(), nil
	case typegraph.KindResult:
		if c.Name == "ok" {
			return typegraph.Ok(payload), nil
		}
		return typegraph.Err(payload), nil
	default:
		return typegraph.Variant(c.Name, payload), nil
	}
}

func liftFlags(def typegraph.Def, buf []byte, offset uint32, path string) (typegraph.Value, error) {
	l, err := layout.FlagsLayout(len(def.Flags))
	if err != nil {
		return typegraph.Value{}, graphErr(opLift, path, err)
	}

	var bits uint64
	switch l.Size {
	case 1:
		bits = uint64(buf[offset])
	case 2:
		bits = uint64(binary.LittleEndian.Uint16(buf[offset:]))
	default:
		bits = uint64(binary.LittleEndian.Uint32(buf[offset:]))
	}

	n := len(def.Flags)
	var mask uint64
	if n >= 64 {
		mask = ^uint64(0)
	} else {
		mask = (uint64(1) << uint(n)) - 1
	}
	if bits&^mask != 0 {
		return typegraph.Value{}, witerrors.New(witerrors.UnknownFlagBit, opLift, fmt.Sprintf("%s: bits outside declared flag count are set", path))
	}

	var names []string
	for i, name := range def.Flags {
		if bits&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return typegraph.FlagSet(names), nil
}
