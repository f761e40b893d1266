package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/engine"
	"github.com/canonkv/canonkv/internal/store"
	"github.com/canonkv/canonkv/internal/typegraph"
)

const pointIDL = "record point { x: u32 }"

type stubParser struct{}

func (stubParser) Parse(string) (*typegraph.Graph, error) {
	b := typegraph.NewBuilder()
	u32, _ := typegraph.Primitive(typegraph.KindU32)
	if _, err := b.DeclareRecord("fixtures#point", []typegraph.Field{{Name: "x", Type: u32}}); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

type stubValues struct{}

func (stubValues) ParseValue(*typegraph.Graph, typegraph.TypeRef, string) (typegraph.Value, error) {
	return typegraph.Value{}, nil
}
func (stubValues) PrintValue(*typegraph.Graph, typegraph.TypeRef, typegraph.Value) (string, error) {
	return "", nil
}

func TestWatcherRegistersOnWrite(t *testing.T) {
	dir := t.TempDir()
	s := store.New(engine.NewMemEngine(), stubParser{}, stubValues{}, codec.DefaultLimits(), nil)

	w, err := New(s, "*.wit", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Add(dir); err != nil {
		t.Fatalf("Add: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { w.Run(ctx); close(done) }()

	path := filepath.Join(dir, "point.wit")
	if err := os.WriteFile(path, []byte(pointIDL), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := s.GetType(context.Background(), "point"); err == nil {
			cancel()
			<-done
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatalf("keyspace %q was never registered from watched file", "point")
}
