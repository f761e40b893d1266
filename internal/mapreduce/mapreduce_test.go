package mapreduce

import (
	"context"
	"testing"

	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/engine"
	"github.com/canonkv/canonkv/internal/store"
	"github.com/canonkv/canonkv/internal/typegraph"
)

const counterIDL = "record counter { n: u32 }"

type stubParser struct{ g *typegraph.Graph }

func (p stubParser) Parse(string) (*typegraph.Graph, error) { return p.g, nil }

type stubValues struct{}

func (stubValues) ParseValue(_ *typegraph.Graph, _ typegraph.TypeRef, text string) (typegraph.Value, error) {
	n := uint64(len(text))
	return typegraph.Record([]typegraph.FieldValue{{Name: "n", Value: typegraph.Uint(typegraph.KindU32, n)}}), nil
}

func (stubValues) PrintValue(*typegraph.Graph, typegraph.TypeRef, typegraph.Value) (string, error) {
	return "", nil
}

func counterGraph(t *testing.T) *typegraph.Graph {
	t.Helper()
	b := typegraph.NewBuilder()
	u32, err := typegraph.Primitive(typegraph.KindU32)
	if err != nil {
		t.Fatalf("Primitive: %v", err)
	}
	if _, err := b.DeclareRecord("fixtures#counter", []typegraph.Field{{Name: "n", Type: u32}}); err != nil {
		t.Fatalf("DeclareRecord: %v", err)
	}
	return b.Build()
}

func newRunStore(t *testing.T) *store.TypedStore {
	t.Helper()
	g := counterGraph(t)
	s := store.New(engine.NewMemEngine(), stubParser{g}, stubValues{}, codec.DefaultLimits(), nil)
	ctx := context.Background()
	if _, err := s.RegisterType(ctx, "ks", counterIDL, "", false); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	for _, kv := range []struct{ key, text string }{
		{"a", "x"}, {"b", "xx"}, {"c", "xxx"}, {"d", "xxxx"},
	} {
		if err := s.Set(ctx, "ks", kv.key, kv.text); err != nil {
			t.Fatalf("Set(%q): %v", kv.key, err)
		}
	}
	return s
}

func fieldUint(v typegraph.Value, name string) uint64 {
	for _, fv := range v.Fields {
		if fv.Name == name {
			return fv.Value.Uint
		}
	}
	return 0
}

func TestRunSumsAllValues(t *testing.T) {
	s := newRunStore(t)
	job := Job{
		Keyspace: "ks",
		Transform: func(_ string, v typegraph.Value) (any, bool, error) {
			return fieldUint(v, "n"), true, nil
		},
		Reduce: func(acc any, mapped any) any { return acc.(uint64) + mapped.(uint64) },
		Seed:   uint64(0),
	}
	acc, considered, err := Run(context.Background(), s, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if considered != 4 {
		t.Fatalf("considered = %d, want 4", considered)
	}
	if acc.(uint64) != 1+2+3+4 {
		t.Fatalf("acc = %v, want 10", acc)
	}
}

func TestRunLimitBoundsKeysConsideredNotKept(t *testing.T) {
	s := newRunStore(t)
	job := Job{
		Keyspace: "ks",
		Limit:    2,
		Transform: func(_ string, v typegraph.Value) (any, bool, error) {
			return nil, false, nil // reject every key
		},
		Reduce: func(acc any, mapped any) any { return acc },
		Seed:   nil,
	}
	_, considered, err := Run(context.Background(), s, job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if considered != 2 {
		t.Fatalf("considered = %d, want 2 (limit bounds keys considered, not kept)", considered)
	}
}

func TestRunShardedMergesPerPrefix(t *testing.T) {
	s := newRunStore(t)
	job := Job{
		Transform: func(_ string, v typegraph.Value) (any, bool, error) {
			return fieldUint(v, "n"), true, nil
		},
		Reduce: func(acc any, mapped any) any { return acc.(uint64) + mapped.(uint64) },
		Seed:   uint64(0),
	}
	job.Keyspace = "ks"
	accs, considered, err := RunSharded(context.Background(), s, job, []string{"a", "b", "c", "d"})
	if err != nil {
		t.Fatalf("RunSharded: %v", err)
	}
	var total uint64
	for i, acc := range accs {
		total += acc.(uint64)
		if considered[i] != 1 {
			t.Fatalf("shard %d considered = %d, want 1", i, considered[i])
		}
	}
	if total != 1+2+3+4 {
		t.Fatalf("total = %d, want 10", total)
	}
}
