package codec

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/canonkv/canonkv/internal/typegraph"
)

// cloneValue enforces the "values are owned, no shared references" boundary
// (spec §3): Lower always operates on a private copy of its input so that
// mutating the caller's RuntimeValue after a Lower call can never retroactively
// change what was encoded.
func cloneValue(v typegraph.Value) (typegraph.Value, error) {
	var out typegraph.Value
	if err := deepcopy.Copy(&out, &v); err != nil {
		return typegraph.Value{}, fmt.Errorf("codec: clone input value: %w", err)
	}
	return out, nil
}
