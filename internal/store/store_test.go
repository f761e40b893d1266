package store

import (
	"context"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/engine"
	"github.com/canonkv/canonkv/internal/typegraph"
	"github.com/canonkv/canonkv/internal/witerrors"
)

const pointIDL = "record point { x: u32, y: u32 }"

func pointGraph(t *testing.T, qualifiedName string) (*typegraph.Graph, typegraph.TypeRef) {
	t.Helper()
	b := typegraph.NewBuilder()
	u32, err := typegraph.Primitive(typegraph.KindU32)
	if err != nil {
		t.Fatalf("Primitive: %v", err)
	}
	ref, err := b.DeclareRecord(qualifiedName, []typegraph.Field{
		{Name: "x", Type: u32},
		{Name: "y", Type: u32},
	})
	if err != nil {
		t.Fatalf("DeclareRecord: %v", err)
	}
	return b.Build(), ref
}

func pointValue(x, y uint32) typegraph.Value {
	return typegraph.Record([]typegraph.FieldValue{
		{Name: "x", Value: typegraph.Uint(typegraph.KindU32, uint64(x))},
		{Name: "y", Value: typegraph.Uint(typegraph.KindU32, uint64(y))},
	})
}

// passthroughValues is a ValueTextCodec whose ParseValue/PrintValue treat
// text as an opaque token stashed directly on a pre-built Value, letting
// tests exercise TypedStore without a real value-text grammar.
type passthroughValues struct {
	values map[string]typegraph.Value
}

func newPassthroughValues() *passthroughValues {
	return &passthroughValues{values: map[string]typegraph.Value{}}
}

func (p *passthroughValues) register(text string, v typegraph.Value) {
	p.values[text] = v
}

func (p *passthroughValues) ParseValue(_ *typegraph.Graph, _ typegraph.TypeRef, text string) (typegraph.Value, error) {
	v, ok := p.values[text]
	if !ok {
		return typegraph.Value{}, witerrors.New(witerrors.TypeMismatch, "test", "unknown fixture text "+text)
	}
	return v, nil
}

func (p *passthroughValues) PrintValue(_ *typegraph.Graph, _ typegraph.TypeRef, v typegraph.Value) (string, error) {
	for text, want := range p.values {
		if valuesEqual(want, v) {
			return text, nil
		}
	}
	return "", witerrors.New(witerrors.TypeMismatch, "test", "no fixture text for value")
}

func valuesEqual(a, b typegraph.Value) bool {
	if a.Kind != b.Kind || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name || a.Fields[i].Value.Uint != b.Fields[i].Value.Uint {
			return false
		}
	}
	return true
}

func newTestStore(t *testing.T) (*TypedStore, *MockTypeGraphParser) {
	t.Helper()
	ctrl := gomock.NewController(t)
	parser := NewMockTypeGraphParser(ctrl)
	return New(engine.NewMemEngine(), parser, newPassthroughValues(), codec.DefaultLimits(), nil), parser
}

func TestRegisterTypeSoleExport(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	g, _ := pointGraph(t, "canonkv:test@0.1.0/fixtures#point")
	parser.EXPECT().Parse(pointIDL).Return(g, nil)

	meta, err := s.RegisterType(ctx, "ks", pointIDL, "", false)
	if err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if meta.TypeName != "point" || meta.TypeVersion.Major != 0 || meta.TypeVersion.Minor != 1 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	got, err := s.GetType(ctx, "ks")
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	if got.QualifiedName != meta.QualifiedName {
		t.Fatalf("GetType returned %+v, want %+v", got, meta)
	}
}

func TestRegisterTypeRequiresForce(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	g, _ := pointGraph(t, "fixtures#point")
	parser.EXPECT().Parse(pointIDL).Return(g, nil).Times(3)

	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); err != nil {
		t.Fatalf("first RegisterType: %v", err)
	}
	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); !witerrors.HasKind(err, witerrors.KeyspaceExists) {
		t.Fatalf("expected KeyspaceExists, got %v", err)
	}
	meta, err := s.RegisterType(ctx, "ks", pointIDL, "", true)
	if err != nil {
		t.Fatalf("forced RegisterType: %v", err)
	}
	got, err := s.GetType(ctx, "ks")
	if err != nil || got.CreatedAt != meta.CreatedAt {
		t.Fatalf("GetType after force re-register = %+v, %v", got, err)
	}
}

func TestRegisterTypeRejectsTooManyFlags(t *testing.T) {
	ctrl := gomock.NewController(t)
	parser := NewMockTypeGraphParser(ctrl)
	limits := codec.DefaultLimits()
	limits.MaxFlagCount = 2
	s := New(engine.NewMemEngine(), parser, newPassthroughValues(), limits, nil)
	ctx := context.Background()

	const flagsIDL = "flags perms { read, write, exec }"
	b := typegraph.NewBuilder()
	if _, err := b.DeclareFlags("fixtures#perms", []string{"read", "write", "exec"}); err != nil {
		t.Fatalf("DeclareFlags: %v", err)
	}
	g := b.Build()
	parser.EXPECT().Parse(flagsIDL).Return(g, nil)

	if _, err := s.RegisterType(ctx, "ks", flagsIDL, "", false); !witerrors.HasKind(err, witerrors.LimitExceeded) {
		t.Fatalf("expected LimitExceeded, got %v", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	g, _ := pointGraph(t, "fixtures#point")
	parser.EXPECT().Parse(pointIDL).Return(g, nil).AnyTimes()

	values := s.values.(*passthroughValues)
	want := pointValue(3, 4)
	values.register("p(3,4)", want)

	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if err := s.Set(ctx, "ks", "a", "p(3,4)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "ks", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !valuesEqual(got, want) {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
}

func TestGetKeyNotFound(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	g, _ := pointGraph(t, "fixtures#point")
	parser.EXPECT().Parse(pointIDL).Return(g, nil).AnyTimes()

	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if _, err := s.Get(ctx, "ks", "missing"); !witerrors.HasKind(err, witerrors.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestSetKeyspaceNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "missing-ks", "a", "p(1,2)"); !witerrors.HasKind(err, witerrors.KeyspaceNotFound) {
		t.Fatalf("expected KeyspaceNotFound, got %v", err)
	}
}

func TestSetRejectsInvalidKey(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	g, _ := pointGraph(t, "fixtures#point")
	parser.EXPECT().Parse(pointIDL).Return(g, nil).AnyTimes()
	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if err := s.Set(ctx, "ks", "", "p(1,2)"); !witerrors.HasKind(err, witerrors.KeyInvalid) {
		t.Fatalf("expected KeyInvalid for empty key, got %v", err)
	}
	if err := s.Set(ctx, "ks", "a\x00b", "p(1,2)"); !witerrors.HasKind(err, witerrors.KeyInvalid) {
		t.Fatalf("expected KeyInvalid for key with separator, got %v", err)
	}
}

func TestDeleteTypeRemovesData(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	g, _ := pointGraph(t, "fixtures#point")
	parser.EXPECT().Parse(pointIDL).Return(g, nil).AnyTimes()
	values := s.values.(*passthroughValues)
	values.register("p(1,1)", pointValue(1, 1))

	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if err := s.Set(ctx, "ks", "a", "p(1,1)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.DeleteType(ctx, "ks", true); err != nil {
		t.Fatalf("DeleteType: %v", err)
	}
	if _, err := s.GetType(ctx, "ks"); !witerrors.HasKind(err, witerrors.KeyspaceNotFound) {
		t.Fatalf("expected KeyspaceNotFound after DeleteType, got %v", err)
	}
	if err := s.DeleteType(ctx, "ks", true); !witerrors.HasKind(err, witerrors.KeyspaceNotFound) {
		t.Fatalf("second DeleteType should fail KeyspaceNotFound, got %v", err)
	}
}

func TestListKeysPrefixAndOrdering(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	g, _ := pointGraph(t, "fixtures#point")
	parser.EXPECT().Parse(pointIDL).Return(g, nil).AnyTimes()
	values := s.values.(*passthroughValues)
	values.register("p(0,0)", pointValue(0, 0))

	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	for _, k := range []string{"user:2", "user:1", "order:1"} {
		if err := s.Set(ctx, "ks", k, "p(0,0)"); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}

	keys, err := s.ListKeys(ctx, "ks", ListOptions{Prefix: "user:"})
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "user:1" || keys[1] != "user:2" {
		t.Fatalf("ListKeys(prefix=user:) = %v", keys)
	}
}

func TestIncompatibleStoredVersionOnMajorBump(t *testing.T) {
	s, parser := newTestStore(t)
	ctx := context.Background()
	gOld, _ := pointGraph(t, "ns:fixtures@0.1.0/iface#point")
	gNew, _ := pointGraph(t, "ns:fixtures@1.0.0/iface#point")
	gomock.InOrder(
		parser.EXPECT().Parse(pointIDL).Return(gOld, nil),
		parser.EXPECT().Parse(pointIDL).Return(gOld, nil),
		parser.EXPECT().Parse(pointIDL).Return(gNew, nil),
	)
	values := s.values.(*passthroughValues)
	values.register("p(9,9)", pointValue(9, 9))

	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", false); err != nil {
		t.Fatalf("RegisterType (0.1.0): %v", err)
	}
	if err := s.Set(ctx, "ks", "a", "p(9,9)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.RegisterType(ctx, "ks", pointIDL, "", true); err != nil {
		t.Fatalf("RegisterType (1.0.0, force): %v", err)
	}

	if _, err := s.Get(ctx, "ks", "a"); !witerrors.HasKind(err, witerrors.IncompatibleStoredVersion) {
		t.Fatalf("expected IncompatibleStoredVersion, got %v", err)
	}
}
