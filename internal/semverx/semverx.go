// Package semverx wraps github.com/Masterminds/semver/v3 to implement
// CompatibilityPolicy (spec §4.8): the two version-gating rules that govern
// type registration and stored-value read-back.
package semverx

import (
	"fmt"

	mastersemver "github.com/Masterminds/semver/v3"

	"github.com/canonkv/canonkv/internal/envelope"
)

// Parse parses a semantic version string into the major.minor.patch triplet
// the store persists. Pre-release and build-metadata suffixes are accepted
// by the underlying parser but discarded: StoredEnvelope only ever records
// the three numeric components.
func Parse(s string) (envelope.SemanticVersion, error) {
	v, err := mastersemver.NewVersion(s)
	if err != nil {
		return envelope.SemanticVersion{}, fmt.Errorf("semverx: parse %q: %w", s, err)
	}
	return envelope.SemanticVersion{
		Major: uint32(v.Major()),
		Minor: uint32(v.Minor()),
		Patch: uint32(v.Patch()),
	}, nil
}

// Registrable implements spec §4.8 rule 1: registering T' over an existing
// T requires force; registering into an empty keyspace slot never does.
func Registrable(force, exists bool) bool {
	if !exists {
		return true
	}
	return force
}

// ReadCompatible implements spec §4.8 rule 2: whether a value stored under
// sv_stored may be read back under the keyspace's current sv_current.
func ReadCompatible(stored, current envelope.SemanticVersion) bool {
	if current.Major == 0 {
		return stored.Major == 0 && stored.Minor == current.Minor && stored.Patch <= current.Patch
	}
	if stored.Major != current.Major {
		return false
	}
	return lexLE(stored.Minor, stored.Patch, current.Minor, current.Patch)
}

func lexLE(minorA, patchA, minorB, patchB uint32) bool {
	if minorA != minorB {
		return minorA < minorB
	}
	return patchA <= patchB
}
