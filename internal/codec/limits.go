package codec

// Limits bounds the config surface caps from spec §6 that apply to the
// codec and to type registration (max_list_elements, max_memory_bytes,
// max_flag_count). The store layer (internal/config) owns the
// authoritative defaults; this type exists so the codec has no
// import-time dependency on the config package.
type Limits struct {
	MaxListElements uint64
	MaxMemoryBytes  uint64

	// MaxFlagCount additionally narrows typegraph.Builder's unconditional
	// 32-flag protocol ceiling at registration time; 0 leaves the
	// protocol ceiling as the only enforced cap.
	MaxFlagCount int
}

// DefaultLimits returns the §6 defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxListElements: 1 << 24,
		MaxMemoryBytes:  64 << 20,
		MaxFlagCount:    32,
	}
}
