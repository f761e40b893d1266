// Package layout computes the flat size and alignment of any TypeRef in a
// typegraph.Graph, following the canonical rules of spec §4.2. It mirrors
// the fixed-size/alignment bookkeeping pattern used across this codebase's
// teacher lineage (bump arenas, flat record layouts) but generalises it to
// the full closed set of type constructors in §3.
package layout

import (
	"fmt"

	"github.com/canonkv/canonkv/internal/typegraph"
)

// Layout is a type's flat size and alignment, in bytes.
type Layout struct {
	Size  uint32
	Align uint32
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// primitiveLayout returns the layout of a kind whose slot size never
// depends on resolving a declared Def: the true scalar primitives, plus
// string and list, whose own slot is always an (offset, length) pair
// regardless of element type.
func primitiveLayout(k typegraph.Kind) (Layout, bool) {
	switch k {
	case typegraph.KindBool, typegraph.KindU8, typegraph.KindS8:
		return Layout{Size: 1, Align: 1}, true
	case typegraph.KindU16, typegraph.KindS16:
		return Layout{Size: 2, Align: 2}, true
	case typegraph.KindU32, typegraph.KindS32, typegraph.KindF32, typegraph.KindChar:
		return Layout{Size: 4, Align: 4}, true
	case typegraph.KindU64, typegraph.KindS64, typegraph.KindF64:
		return Layout{Size: 8, Align: 8}, true
	case typegraph.KindString, typegraph.KindList:
		// offset: u32 + length: u32, 4-byte aligned (spec §6).
		return Layout{Size: 8, Align: 4}, true
	default:
		return Layout{}, false
	}
}

// DiscriminantSize returns the smallest of {u8, u16, u32} that fits
// caseCount distinct values, per spec §6.
func DiscriminantSize(caseCount int) uint32 {
	switch {
	case caseCount <= 1<<8:
		return 1
	case caseCount <= 1<<16:
		return 2
	default:
		return 4
	}
}

// Of computes the flat (size, align) of ref within g.
func Of(g *typegraph.Graph, ref typegraph.TypeRef) (Layout, error) {
	if l, ok := primitiveLayout(ref.Kind()); ok {
		return l, nil
	}

	resolved, def, err := g.Resolve(ref)
	if err != nil {
		return Layout{}, err
	}
	if resolved.Kind().IsPrimitive() {
		l, _ := primitiveLayout(resolved.Kind())
		return l, nil
	}

	switch def.Kind {
	case typegraph.KindRecord, typegraph.KindTuple:
		_, l, err := RecordLayout(g, def.Fields)
		return l, err
	case typegraph.KindVariant, typegraph.KindEnum, typegraph.KindOption, typegraph.KindResult:
		shape, err := VariantLayout(g, def.Cases)
		if err != nil {
			return Layout{}, err
		}
		return shape.Layout(), nil
	case typegraph.KindFlags:
		return FlagsLayout(len(def.Flags))
	default:
		return Layout{}, fmt.Errorf("layout: unsupported type kind %s", def.Kind)
	}
}

// RecordLayout computes each field's byte offset plus the record/tuple's
// overall layout: walk fields in order, align each to its own alignment,
// add its size, then pad the final size up to the record's alignment
// (the max of field alignments, minimum 1).
func RecordLayout(g *typegraph.Graph, fields []typegraph.Field) ([]uint32, Layout, error) {
	offsets := make([]uint32, len(fields))
	var cursor uint32
	var maxAlign uint32 = 1

	for i, f := range fields {
		fl, err := Of(g, f.Type)
		if err != nil {
			return nil, Layout{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		cursor = alignUp(cursor, fl.Align)
		offsets[i] = cursor
		cursor += fl.Size
		maxAlign = maxU32(maxAlign, fl.Align)
	}

	total := alignUp(cursor, maxAlign)
	return offsets, Layout{Size: total, Align: maxAlign}, nil
}

// VariantShape is the computed layout of a variant/enum/option/result:
// the discriminant width, the payload block's alignment/offset/size, and
// the type's overall (size, align).
type VariantShape struct {
	DiscSize      uint32
	PayloadAlign  uint32
	PayloadOffset uint32
	PayloadSize   uint32 // the padded block size every case's payload is padded into
	Size          uint32
	Align         uint32
}

// Layout returns the (size, align) pair of the variant shape.
func (s VariantShape) Layout() Layout { return Layout{Size: s.Size, Align: s.Align} }

// VariantLayout computes the shape shared by variant, enum, option, and
// result types, per spec §4.2: discriminant size is the smallest fitting
// width; payload block size is the max payload size across cases, aligned
// to the max payload alignment; total size is the aligned payload offset
// plus the payload block, padded to the variant's own alignment
// (max(discSize, payloadAlign)).
func VariantLayout(g *typegraph.Graph, cases []typegraph.Case) (VariantShape, error) {
	discSize := DiscriminantSize(len(cases))

	var payloadAlign uint32 = 1
	var payloadSize uint32

	for _, c := range cases {
		if c.Payload == nil {
			continue
		}
		pl, err := Of(g, *c.Payload)
		if err != nil {
			return VariantShape{}, fmt.Errorf("case %q: %w", c.Name, err)
		}
		payloadAlign = maxU32(payloadAlign, pl.Align)
		payloadSize = maxU32(payloadSize, pl.Size)
	}

	payloadBlock := alignUp(payloadSize, payloadAlign)
	payloadOffset := alignUp(discSize, payloadAlign)
	variantAlign := maxU32(discSize, payloadAlign)
	total := alignUp(payloadOffset+payloadBlock, variantAlign)

	return VariantShape{
		DiscSize:      discSize,
		PayloadAlign:  payloadAlign,
		PayloadOffset: payloadOffset,
		PayloadSize:   payloadBlock,
		Size:          total,
		Align:         variantAlign,
	}, nil
}

// FlagsLayout computes a flags type's layout: size is ceil(flagCount/8)
// rounded up to the next power of two in {1,2,4}; align equals size.
// flagCount > 32 is rejected (also checked earlier, at registration).
func FlagsLayout(flagCount int) (Layout, error) {
	if flagCount > 32 {
		return Layout{}, fmt.Errorf("layout: flags count %d exceeds max of 32", flagCount)
	}
	bytesNeeded := (flagCount + 7) / 8
	var size uint32
	switch {
	case bytesNeeded <= 1:
		size = 1
	case bytesNeeded <= 2:
		size = 2
	default:
		size = 4
	}
	return Layout{Size: size, Align: size}, nil
}
