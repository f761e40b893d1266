package arena

import "testing"

func TestAllocateAlignsAndZeroFills(t *testing.T) {
	m := New(0)

	off1, err := m.Allocate(1, 1)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("first offset = %d, want 0", off1)
	}

	off2, err := m.Allocate(4, 4)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if off2 != 4 {
		t.Fatalf("second offset = %d, want 4 (aligned up from 1)", off2)
	}

	if err := m.Write(off2, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := m.Read(0, 8)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	if string(got) != string(want) {
		t.Fatalf("Read = %v, want %v", got, want)
	}
}

func TestReadOutOfBounds(t *testing.T) {
	m := New(0)
	if _, err := m.Allocate(4, 1); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := m.Read(0, 8); err == nil {
		t.Fatalf("expected out-of-bounds read error")
	}
}

func TestWriteOutOfBounds(t *testing.T) {
	m := New(0)
	if _, err := m.Allocate(2, 1); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := m.Write(1, []byte{1, 2}); err == nil {
		t.Fatalf("expected out-of-bounds write error")
	}
}

func TestLenAndBytesDeterministic(t *testing.T) {
	a := New(0)
	b := New(0)

	for _, m := range []*LinearMemory{a, b} {
		o, _ := m.Allocate(3, 1)
		_ = m.Write(o, []byte("abc"))
		o2, _ := m.Allocate(4, 4)
		_ = m.Write(o2, []byte{9, 9, 9, 9})
	}

	if string(a.Bytes()) != string(b.Bytes()) {
		t.Fatalf("two independent arenas given the same allocation sequence diverged")
	}
	if a.Len() != b.Len() {
		t.Fatalf("lengths diverged: %d vs %d", a.Len(), b.Len())
	}
}

func TestFromBytesRoundTrips(t *testing.T) {
	data := []byte("hello, world")
	m := FromBytes(data)
	got, err := m.Read(0, uint32(len(data)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("Read = %q, want %q", got, data)
	}
}
