package semverx

import (
	"testing"

	"github.com/canonkv/canonkv/internal/envelope"
)

func v(s string) envelope.SemanticVersion {
	sv, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sv
}

func TestRegistrable(t *testing.T) {
	if !Registrable(false, false) {
		t.Fatalf("registering into an empty keyspace must always succeed")
	}
	if Registrable(false, true) {
		t.Fatalf("registering over an existing type without force must fail")
	}
	if !Registrable(true, true) {
		t.Fatalf("registering over an existing type with force must succeed")
	}
}

func TestReadCompatibleMajorAtLeastOne(t *testing.T) {
	current := v("1.2.0")
	if !ReadCompatible(v("1.1.5"), current) {
		t.Fatalf("1.1.5 should read back under current 1.2.0")
	}
	if ReadCompatible(v("2.0.0"), current) {
		t.Fatalf("2.0.0 should not read back under current 1.2.0")
	}
	if !ReadCompatible(current, current) {
		t.Fatalf("a value stored at exactly the current version must read back")
	}
}

func TestReadCompatibleMajorZero(t *testing.T) {
	current := v("0.3.4")
	if !ReadCompatible(v("0.3.0"), current) {
		t.Fatalf("0.3.0 should read back under current 0.3.4 (same minor, lower patch)")
	}
	if ReadCompatible(v("0.2.9"), current) {
		t.Fatalf("0.2.9 should not read back under current 0.3.4 (different minor)")
	}
	if ReadCompatible(v("0.3.9"), current) {
		t.Fatalf("0.3.9 should not read back under current 0.3.4 (higher patch than current)")
	}
}
