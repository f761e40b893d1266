// Package codec implements the Canonical ABI lowering and lifting described
// in spec §4.3/§4.4: converting between a typegraph.Value and the flat
// (main buffer, linear memory) binary representation fixed by a type's
// Layout. Both directions walk the type graph with an explicit frame-by-
// frame recursion (no VM or bytecode — the "stack of frames" design note in
// spec §9 is realised here simply as Go call-stack recursion, one frame per
// nested type) rather than building any intermediate tree.
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

const opLower = "codec.Lower"

// Lower encodes v as ref's flat binary representation: a fixed-size main
// buffer plus whatever variable-length payload (string bytes, list
// elements) spills into a freshly allocated LinearMemory. v is cloned
// before encoding so the caller's value can never alias the result.
func Lower(g *typegraph.Graph, ref typegraph.TypeRef, v typegraph.Value, limits Limits) ([]byte, *arena.LinearMemory, error) {
	cv, err := cloneValue(v)
	if err != nil {
		return nil, nil, err
	}

	l, err := layout.Of(g, ref)
	if err != nil {
		return nil, nil, graphErr(opLower, "$", err)
	}

	mem := arena.New(0)
	buf := make([]byte, l.Size)
	if err := lowerInto(g, ref, cv, buf, 0, mem, limits, "$"); err != nil {
		return nil, nil, err
	}
	if uint64(mem.Len()) > limits.MaxMemoryBytes {
		return nil, nil, limitExceeded(opLower, "$", "linear memory size")
	}
	return buf, mem, nil
}

func lowerInto(g *typegraph.Graph, ref typegraph.TypeRef, v typegraph.Value, buf []byte, offset uint32, mem *arena.LinearMemory, limits Limits, path string) error {
	resolved, def, err := g.Resolve(ref)
	if err != nil {
		return graphErr(opLower, path, err)
	}

	switch resolved.Kind() {
	case typegraph.KindBool, typegraph.KindU8, typegraph.KindU16, typegraph.KindU32, typegraph.KindU64,
		typegraph.KindS8, typegraph.KindS16, typegraph.KindS32, typegraph.KindS64,
		typegraph.KindF32, typegraph.KindF64, typegraph.KindChar:
		return lowerScalar(resolved.Kind(), v, buf, offset, path)
	case typegraph.KindString:
		return lowerString(v, buf, offset, mem, limits, path)
	case typegraph.KindList:
		return lowerList(g, def, v, buf, offset, mem, limits, path)
	case typegraph.KindRecord, typegraph.KindTuple:
		return lowerRecord(g, def, v, buf, offset, mem, limits, path)
	case typegraph.KindVariant, typegraph.KindEnum, typegraph.KindOption, typegraph.KindResult:
		return lowerVariant(g, def, v, buf, offset, mem, limits, path)
	case typegraph.KindFlags:
		return lowerFlags(def, v, buf, offset, path)
	default:
		return unsupportedKind(opLower, path, resolved.Kind())
	}
}

func lowerScalar(k typegraph.Kind, v typegraph.Value, buf []byte, offset uint32, path string) error {
	if v.Kind != k {
		return mismatch(opLower, path, k, v.Kind)
	}
	switch k {
	case typegraph.KindBool:
		if v.Bool {
			buf[offset] = 1
		} else {
			buf[offset] = 0
		}
	case typegraph.KindU8:
		if v.Uint > math.MaxUint8 {
			return outOfRange(opLower, path, "u8", v.Uint)
		}
		buf[offset] = byte(v.Uint)
	case typegraph.KindU16:
		if v.Uint > math.MaxUint16 {
			return outOfRange(opLower, path, "u16", v.Uint)
		}
		binary.LittleEndian.PutUint16(buf[offset:], uint16(v.Uint))
	case typegraph.KindU32:
		if v.Uint > math.MaxUint32 {
			return outOfRange(opLower, path, "u32", v.Uint)
		}
		binary.LittleEndian.PutUint32(buf[offset:], uint32(v.Uint))
	case typegraph.KindU64:
		binary.LittleEndian.PutUint64(buf[offset:], v.Uint)
	case typegraph.KindS8:
		if v.Int < math.MinInt8 || v.Int > math.MaxInt8 {
			return outOfRange(opLower, path, "s8", v.Int)
		}
		buf[offset] = byte(int8(v.Int))
	case typegraph.KindS16:
		if v.Int < math.MinInt16 || v.Int > math.MaxInt16 {
			return outOfRange(opLower, path, "s16", v.Int)
		}
		binary.LittleEndian.PutUint16(buf[offset:], uint16(int16(v.Int)))
	case typegraph.KindS32:
		if v.Int < math.MinInt32 || v.Int > math.MaxInt32 {
			return outOfRange(opLower, path, "s32", v.Int)
		}
		binary.LittleEndian.PutUint32(buf[offset:], uint32(int32(v.Int)))
	case typegraph.KindS64:
		binary.LittleEndian.PutUint64(buf[offset:], uint64(v.Int))
	case typegraph.KindF32:
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(float32(v.Float)))
	case typegraph.KindF64:
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(v.Float))
	case typegraph.KindChar:
		r := v.Char
		if r < 0 || r > 0x10FFFF || (r >= 0xD800 && r <= 0xDFFF) || !utf8.ValidRune(r) {
			return outOfRange(opLower, path, "char", r)
		}
		binary.LittleEndian.PutUint32(buf[offset:], uint32(r))
	}
	return nil
}

func lowerString(v typegraph.Value, buf []byte, offset uint32, mem *arena.LinearMemory, limits Limits, path string) error {
	if v.Kind != typegraph.KindString {
		return mismatch(opLower, path, typegraph.KindString, v.Kind)
	}
	if !utf8.ValidString(v.Str) {
		return outOfRange(opLower, path, "string", "invalid UTF-8")
	}
	data := []byte(v.Str)
	if uint64(len(data)) > limits.MaxMemoryBytes {
		return limitExceeded(opLower, path, "string byte length")
	}
	off, err := mem.Allocate(uint64(len(data)), 1)
	if err != nil {
		return outOfRange(opLower, path, "string allocation", err)
	}
	if err := mem.Write(off, data); err != nil {
		return graphErr(opLower, path, err)
	}
	binary.LittleEndian.PutUint32(buf[offset:], off)
	binary.LittleEndian.PutUint32(buf[offset+4:], uint32(len(data)))
	return nil
}

func lowerList(g *typegraph.Graph, def typegraph.Def, v typegraph.Value, buf []byte, offset uint32, mem *arena.LinearMemory, limits Limits, path string) error {
	if v.Kind != typegraph.KindList {
		return mismatch(opLower, path, typegraph.KindList, v.Kind)
	}
	n := len(v.Items)
	if uint64(n) > limits.MaxListElements {
		return limitExceeded(opLower, path, "list element count")
	}

	elem := *def.Elem
	el, err := layout.Of(g, elem)
	if err != nil {
		return graphErr(opLower, path, err)
	}

	total := uint64(el.Size) * uint64(n)
	if total > limits.MaxMemoryBytes {
		return limitExceeded(opLower, path, "list byte length")
	}

	elemBuf := make([]byte, total)
	for i, item := range v.Items {
		if err := lowerInto(g, elem, item, elemBuf, uint32(i)*el.Size, mem, limits, listElemPath(path, i)); err != nil {
			return err
		}
	}

	off, err := mem.Allocate(total, uint64(el.Align))
	if err != nil {
		return outOfRange(opLower, path, "list allocation", err)
	}
	if err := mem.Write(off, elemBuf); err != nil {
		return graphErr(opLower, path, err)
	}

	binary.LittleEndian.PutUint32(buf[offset:], off)
	binary.LittleEndian.PutUint32(buf[offset+4:], uint32(n))
	return nil
}

func lowerRecord(g *typegraph.Graph, def typegraph.Def, v typegraph.Value, buf []byte, offset uint32, mem *arena.LinearMemory, limits Limits, path string) error {
	offsets, _, err := layout.RecordLayout(g, def.Fields)
	if err != nil {
		return graphErr(opLower, path, err)
	}

	if def.Kind == typegraph.KindTuple {
		if v.Kind != typegraph.KindTuple {
			return mismatch(opLower, path, typegraph.KindTuple, v.Kind)
		}
		if len(v.Items) != len(def.Fields) {
			return outOfRange(opLower, path, "tuple arity", len(v.Items))
		}
		for i, f := range def.Fields {
			if err := lowerInto(g, f.Type, v.Items[i], buf, offset+offsets[i], mem, limits, tuplePath(path, i)); err != nil {
				return err
			}
		}
		return nil
	}

	if v.Kind != typegraph.KindRecord {
		return mismatch(opLower, path, typegraph.KindRecord, v.Kind)
	}
	byName := make(map[string]typegraph.Value, len(v.Fields))
	for _, fv := range v.Fields {
		byName[fv.Name] = fv.Value
	}
	for i, f := range def.Fields {
		fv, ok := byName[f.Name]
		if !ok {
			return witerrors.New(witerrors.TypeMismatch, opLower, fieldPath(path, f.Name)+": missing field")
		}
		if err := lowerInto(g, f.Type, fv, buf, offset+offsets[i], mem, limits, fieldPath(path, f.Name)); err != nil {
			return err
		}
	}
	return nil
}

func listElemPath(path string, i int) string { return fmt.Sprintf("%s[%d]", path, i) }
func tuplePath(path string, i int) string    { return fmt.Sprintf("%s.%d", path, i) }
func fieldPath(path, name string) string     { return path + "." + name }

func lowerVariant(g *typegraph.Graph, def typegraph.Def, v typegraph.Value, buf []byte, offset uint32, mem *arena.LinearMemory, limits Limits, path string) error {
	if v.Kind != def.Kind {
		return mismatch(opLower, path, def.Kind, v.Kind)
	}

	shape, err := layout.VariantLayout(g, def.Cases)
	if err != nil {
		return graphErr(opLower, path, err)
	}

	idx := -1
	for i, c := range def.Cases {
		if c.Name == v.Case {
			idx = i
			break
		}
	}
	if idx < 0 {
		return witerrors.New(witerrors.UnknownCase, opLower, fmt.Sprintf("%s: unknown case %q", path, v.Case))
	}

	writeDiscriminant(buf, offset, shape.DiscSize, uint32(idx))

	c := def.Cases[idx]
	if c.Payload == nil {
		return nil
	}
	if v.Payload == nil {
		return witerrors.New(witerrors.TypeMismatch, opLower, fmt.Sprintf("%s: case %q requires a payload", path, c.Name))
	}
	return lowerInto(g, *c.Payload, *v.Payload, buf, offset+shape.PayloadOffset, mem, limits, fieldPath(path, c.Name))
}

func lowerFlags(def typegraph.Def, v typegraph.Value, buf []byte, offset uint32, path string) error {
	if v.Kind != typegraph.KindFlags {
		return mismatch(opLower, path, typegraph.KindFlags, v.Kind)
	}

	idxByName := make(map[string]int, len(def.Flags))
	for i, n := range def.Flags {
		idxByName[n] = i
	}

	var bits uint64
	for _, name := range v.Flags {
		i, ok := idxByName[name]
		if !ok {
			return witerrors.New(witerrors.UnknownCase, opLower, fmt.Sprintf("%s: unknown flag %q", path, name))
		}
		bits |= 1 << uint(i)
	}

	l, err := layout.FlagsLayout(len(def.Flags))
	if err != nil {
		return graphErr(opLower, path, err)
	}
	switch l.Size {
	case 1:
		buf[offset] = byte(bits)
	case 2:
		binary.LittleEndian.PutUint16(buf[offset:], uint16(bits))
	default:
		binary.LittleEndian.PutUint32(buf[offset:], uint32(bits))
	}
	return nil
}
