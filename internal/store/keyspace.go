// Package store implements TypedStore (spec §4.6): a keyspace registry plus
// per-keyspace value CRUD and listing, layered over an ordered byte-keyed
// Engine. Every public operation here is the thing an HTTP handler, a CLI
// subcommand, or the map/reduce job runner ultimately calls.
package store

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"strings"
	"time"

	"github.com/stoewer/go-strcase"
	"golang.org/x/sync/errgroup"

	"github.com/canonkv/canonkv/internal/arena"
	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/engine"
	"github.com/canonkv/canonkv/internal/envelope"
	"github.com/canonkv/canonkv/internal/semverx"
	"github.com/canonkv/canonkv/internal/typegraph"
	"github.com/canonkv/canonkv/internal/witerrors"
)

// deleteFanOut bounds how many keys one errgroup wave of DeleteType's
// delete_data fan-out deletes concurrently, and how many keys one Range
// call requests at a time while scanning a keyspace's value prefix.
const deleteFanOut = 64

// ListOptions narrows a ListKeys scan (spec §4.6's list_keys parameters).
type ListOptions struct {
	Prefix string
	Start  string
	End    string
	Limit  int
}

// TypedStore is the keyspace registry and per-keyspace value store. The
// zero value is not usable; construct with New.
type TypedStore struct {
	eng    engine.Engine
	parser TypeGraphParser
	values ValueTextCodec
	limits codec.Limits

	// listLimit clamps a requested list_keys limit (spec §6's
	// list_limit_default/list_limit_hardcap); nil means no clamping.
	listLimit func(int) int

	// now is overridden in tests; defaults to time.Now.
	now func() time.Time
}

// New constructs a TypedStore over eng, using parser and values as the
// external IDL-parsing and text-value collaborators (spec §6). listLimit
// may be nil, in which case a requested list_keys limit is passed through
// to the engine unchanged.
func New(eng engine.Engine, parser TypeGraphParser, values ValueTextCodec, limits codec.Limits, listLimit func(int) int) *TypedStore {
	if listLimit == nil {
		listLimit = func(n int) int { return n }
	}
	return &TypedStore{
		eng:       eng,
		parser:    parser,
		values:    values,
		limits:    limits,
		listLimit: listLimit,
		now:       time.Now,
	}
}

// RegisterType parses idlText, resolves typeName (or the sole exported
// type when typeName is empty), and registers it as keyspace's type (spec
// §4.6). Re-registering over an existing type requires force.
func (s *TypedStore) RegisterType(ctx context.Context, keyspace, idlText, typeName string, force bool) (KeyspaceMetadata, error) {
	const op = "TypedStore.RegisterType"

	keyspace = normalizeKeyspace(keyspace)
	if !validName(keyspace) {
		return KeyspaceMetadata{}, witerrors.New(witerrors.KeyInvalid, op, "keyspace name is empty or contains the reserved separator")
	}

	g, err := s.parser.Parse(idlText)
	if err != nil {
		return KeyspaceMetadata{}, witerrors.Wrap(witerrors.IdlParseError, op, "parsing IDL text", err)
	}

	ref, qualifiedName, err := resolveExportedType(g, typeName)
	if err != nil {
		return KeyspaceMetadata{}, err
	}
	_, def, err := g.Resolve(ref)
	if err != nil {
		return KeyspaceMetadata{}, witerrors.Wrap(witerrors.GraphError, op, "resolving registered type", err)
	}
	if !isAllowedKind(ref.Kind(), def.Kind) {
		return KeyspaceMetadata{}, witerrors.New(witerrors.UnsupportedKind, op, "registered type's kind is not one of the supported constructors")
	}
	if err := checkFlagCounts(g, s.limits.MaxFlagCount); err != nil {
		return KeyspaceMetadata{}, err
	}

	_, exists, err := s.loadMetadata(ctx, keyspace)
	if err != nil {
		return KeyspaceMetadata{}, err
	}
	if !semverx.Registrable(force, exists) {
		return KeyspaceMetadata{}, witerrors.New(witerrors.KeyspaceExists, op, "keyspace already has a registered type; pass force to replace it")
	}

	version, err := extractVersion(qualifiedName)
	if err != nil {
		return KeyspaceMetadata{}, witerrors.Wrap(witerrors.GraphError, op, "parsing @version segment of qualified name", err)
	}

	meta := KeyspaceMetadata{
		Name:          keyspace,
		QualifiedName: qualifiedName,
		IDLDefinition: idlText,
		TypeName:      shortName(qualifiedName),
		TypeVersion:   version,
		TypeHash:      crc32.ChecksumIEEE([]byte(idlText)),
		CreatedAt:     s.now().Unix(),
	}

	data, err := encodeMetadata(meta, s.limits)
	if err != nil {
		return KeyspaceMetadata{}, err
	}
	if err := s.eng.Put(ctx, metaKey(keyspace), data); err != nil {
		return KeyspaceMetadata{}, witerrors.Wrap(witerrors.EngineError, op, "writing keyspace metadata", err)
	}
	return meta, nil
}

// GetType returns keyspace's registered metadata.
func (s *TypedStore) GetType(ctx context.Context, keyspace string) (KeyspaceMetadata, error) {
	keyspace = normalizeKeyspace(keyspace)
	meta, exists, err := s.loadMetadata(ctx, keyspace)
	if err != nil {
		return KeyspaceMetadata{}, err
	}
	if !exists {
		return KeyspaceMetadata{}, witerrors.New(witerrors.KeyspaceNotFound, "TypedStore.GetType", "no type registered for this keyspace")
	}
	return meta, nil
}

// DeleteType removes keyspace's metadata and, if deleteData is set,
// range-deletes every value under it (spec §4.6). Fails KeyspaceNotFound
// if nothing was registered.
func (s *TypedStore) DeleteType(ctx context.Context, keyspace string, deleteData bool) error {
	const op = "TypedStore.DeleteType"

	keyspace = normalizeKeyspace(keyspace)
	_, exists, err := s.loadMetadata(ctx, keyspace)
	if err != nil {
		return err
	}
	if !exists {
		return witerrors.New(witerrors.KeyspaceNotFound, op, "no type registered for this keyspace")
	}

	if err := s.eng.Delete(ctx, metaKey(keyspace)); err != nil {
		return witerrors.Wrap(witerrors.EngineError, op, "deleting keyspace metadata", err)
	}
	if !deleteData {
		return nil
	}
	return s.deleteAllValues(ctx, keyspace)
}

// ListTypes returns every registered keyspace's metadata, ordered by name.
func (s *TypedStore) ListTypes(ctx context.Context) ([]KeyspaceMetadata, error) {
	const op = "TypedStore.ListTypes"

	prefix := metaPrefix()
	kvs, err := s.eng.Range(ctx, prefix, prefixUpperBound(prefix), 0)
	if err != nil {
		return nil, witerrors.Wrap(witerrors.EngineError, op, "scanning keyspace metadata", err)
	}
	out := make([]KeyspaceMetadata, 0, len(kvs))
	for _, kv := range kvs {
		m, err := decodeMetadata(kv.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Set parses text against keyspace's registered type, lowers it, wraps it
// in an envelope stamped with the keyspace's current type_version, and
// writes it under key, overwriting any prior value.
func (s *TypedStore) Set(ctx context.Context, keyspace, key, text string) error {
	const op = "TypedStore.Set"

	keyspace = normalizeKeyspace(keyspace)
	if !validName(key) {
		return witerrors.New(witerrors.KeyInvalid, op, "key is empty or contains the reserved separator")
	}
	meta, err := s.GetType(ctx, keyspace)
	if err != nil {
		return err
	}
	g, ref, err := s.resolveGraph(meta)
	if err != nil {
		return err
	}

	rv, err := s.values.ParseValue(g, ref, text)
	if err != nil {
		return witerrors.Wrap(witerrors.TypeMismatch, op, "parsing value text against the registered type", err)
	}

	main, mem, err := codec.Lower(g, ref, rv, s.limits)
	if err != nil {
		return err
	}
	env := envelope.Envelope{
		TypeVersion: meta.TypeVersion,
		Value:       main,
	}
	if mem.Len() > 0 {
		env.Memory = mem.Bytes()
	}
	data, err := envelope.Encode(env, s.limits)
	if err != nil {
		return err
	}
	if err := s.eng.Put(ctx, valueKey(keyspace, key), data); err != nil {
		return witerrors.Wrap(witerrors.EngineError, op, "writing value", err)
	}
	return nil
}

// Get loads, version-gates, and lifts the value stored under key.
func (s *TypedStore) Get(ctx context.Context, keyspace, key string) (typegraph.Value, error) {
	const op = "TypedStore.Get"

	keyspace = normalizeKeyspace(keyspace)
	meta, err := s.GetType(ctx, keyspace)
	if err != nil {
		return typegraph.Value{}, err
	}

	data, ok, err := s.eng.Get(ctx, valueKey(keyspace, key))
	if err != nil {
		return typegraph.Value{}, witerrors.Wrap(witerrors.EngineError, op, "reading value", err)
	}
	if !ok {
		return typegraph.Value{}, witerrors.New(witerrors.KeyNotFound, op, "no value stored under this key")
	}

	env, err := envelope.Decode(data)
	if err != nil {
		return typegraph.Value{}, err
	}
	if !semverx.ReadCompatible(env.TypeVersion, meta.TypeVersion) {
		return typegraph.Value{}, witerrors.New(witerrors.IncompatibleStoredVersion, op,
			"stored value's type_version is not readable under the keyspace's current type_version")
	}

	g, ref, err := s.resolveGraph(meta)
	if err != nil {
		return typegraph.Value{}, err
	}
	mem := arena.FromBytes(env.Memory)
	return codec.Lift(g, ref, env.Value, mem)
}

// Delete removes key from keyspace. Deleting an absent key is a no-op;
// deleting from an unregistered keyspace fails KeyspaceNotFound.
func (s *TypedStore) Delete(ctx context.Context, keyspace, key string) error {
	const op = "TypedStore.Delete"

	keyspace = normalizeKeyspace(keyspace)
	if _, err := s.GetType(ctx, keyspace); err != nil {
		return err
	}
	if err := s.eng.Delete(ctx, valueKey(keyspace, key)); err != nil {
		return witerrors.Wrap(witerrors.EngineError, op, "deleting value", err)
	}
	return nil
}

// ListKeys range-scans keyspace's value prefix and returns the bare keys
// (with the V\x00{keyspace}\x00 prefix stripped) in ascending order.
func (s *TypedStore) ListKeys(ctx context.Context, keyspace string, opts ListOptions) ([]string, error) {
	const op = "TypedStore.ListKeys"

	keyspace = normalizeKeyspace(keyspace)
	if _, err := s.GetType(ctx, keyspace); err != nil {
		return nil, err
	}

	prefix := valuePrefix(keyspace)
	start := prefix
	if opts.Start != "" {
		start = append(append([]byte(nil), prefix...), opts.Start...)
	}
	end := prefixUpperBound(prefix)
	if opts.End != "" {
		end = append(append([]byte(nil), prefix...), opts.End...)
	}
	// Narrow the scan to opts.Prefix so the limit counts matching keys only.
	if opts.Prefix != "" {
		pstart := append(append([]byte(nil), prefix...), opts.Prefix...)
		if string(pstart) > string(start) {
			start = pstart
		}
		if pend := prefixUpperBound(pstart); pend != nil && string(pend) < string(end) {
			end = pend
		}
	}

	kvs, err := s.eng.Range(ctx, start, end, s.listLimit(opts.Limit))
	if err != nil {
		return nil, witerrors.Wrap(witerrors.EngineError, op, "scanning keyspace values", err)
	}

	out := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		key := strings.TrimPrefix(string(kv.Key), string(prefix))
		if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		out = append(out, key)
	}
	return out, nil
}

func (s *TypedStore) loadMetadata(ctx context.Context, keyspace string) (KeyspaceMetadata, bool, error) {
	const op = "TypedStore.loadMetadata"

	data, ok, err := s.eng.Get(ctx, metaKey(keyspace))
	if err != nil {
		return KeyspaceMetadata{}, false, witerrors.Wrap(witerrors.EngineError, op, "reading keyspace metadata", err)
	}
	if !ok {
		return KeyspaceMetadata{}, false, nil
	}
	m, err := decodeMetadata(data)
	if err != nil {
		return KeyspaceMetadata{}, false, err
	}
	if crc32.ChecksumIEEE([]byte(m.IDLDefinition)) != m.TypeHash {
		slog.Warn("keyspace metadata type_hash mismatch", "keyspace", keyspace, "recorded_hash", m.TypeHash)
	}
	return m, true, nil
}

// ResolveGraph re-parses meta's recorded IDL source and looks up its
// registered type, the same way Get and Set do internally. Callers that
// need to print a Get result as text (internal/httpapi)
// use this to get the (Graph, TypeRef) pair a ValueTextCodec needs.
func (s *TypedStore) ResolveGraph(meta KeyspaceMetadata) (*typegraph.Graph, typegraph.TypeRef, error) {
	return s.resolveGraph(meta)
}

// resolveGraph re-parses meta's recorded IDL source and looks up its
// registered type. The parsed TypeGraph is immutable and cheap to discard
// (spec §9); TypedStore holds no graph cache so concurrent callers never
// share one through the store itself.
func (s *TypedStore) resolveGraph(meta KeyspaceMetadata) (*typegraph.Graph, typegraph.TypeRef, error) {
	const op = "TypedStore.resolveGraph"

	g, err := s.parser.Parse(meta.IDLDefinition)
	if err != nil {
		return nil, typegraph.TypeRef{}, witerrors.Wrap(witerrors.IdlParseError, op, "re-parsing registered IDL source", err)
	}
	if ref, ok := g.Lookup(meta.QualifiedName); ok {
		return g, ref, nil
	}
	if ref, ok := g.Lookup(meta.TypeName); ok {
		return g, ref, nil
	}
	return nil, typegraph.TypeRef{}, witerrors.New(witerrors.TypeNotFound, op, "registered type no longer resolves against its own IDL source")
}

// resolveExportedType resolves typeName in g, or, when typeName is empty,
// requires g to export exactly one type.
func resolveExportedType(g *typegraph.Graph, typeName string) (typegraph.TypeRef, string, error) {
	const op = "TypedStore.RegisterType"

	if typeName != "" {
		ref, ok := g.Lookup(typeName)
		if !ok {
			return typegraph.TypeRef{}, "", witerrors.New(witerrors.TypeNotFound, op, "type_name not found in the parsed IDL")
		}
		return ref, typeName, nil
	}

	types := g.ListTypes()
	if len(types) == 0 {
		return typegraph.TypeRef{}, "", witerrors.New(witerrors.TypeNotFound, op, "IDL declares no exported types")
	}
	if len(types) > 1 {
		return typegraph.TypeRef{}, "", witerrors.New(witerrors.TypeNotFound, op, "IDL exports more than one type; type_name is required")
	}
	return types[0].Ref, types[0].Name, nil
}

// shortName extracts the "{type}" segment of a qualified name per §4.7's
// grammar ("{ns}:{pkg}[@{ver}]/{iface}#{type}" or "{iface}#{type}").
func shortName(qualifiedName string) string {
	if i := strings.LastIndexByte(qualifiedName, '#'); i >= 0 {
		return qualifiedName[i+1:]
	}
	return qualifiedName
}

// isAllowedKind reports whether a resolved type's kind belongs to §3's
// supported constructor set. Every Kind this package's typegraph can
// represent is one of those constructors (resource/handle/stream/future
// are non-goals and have no Kind value at all), so this only ever rejects
// a corrupt KindInvalid.
func isAllowedKind(shallow, resolved typegraph.Kind) bool {
	k := resolved
	if shallow.IsPrimitive() {
		k = shallow
	}
	return k != typegraph.KindInvalid
}

// checkFlagCounts rejects registration if any flags type declared anywhere
// in g exceeds maxFlagCount (spec §6 max_flag_count), an operator-tunable
// cap that only ever narrows typegraph.Builder's unconditional 32-flag
// protocol ceiling, never widens it. maxFlagCount <= 0 leaves that
// protocol ceiling as the only enforced limit.
func checkFlagCounts(g *typegraph.Graph, maxFlagCount int) error {
	const op = "TypedStore.RegisterType"

	if maxFlagCount <= 0 {
		return nil
	}
	for _, nt := range g.ListTypes() {
		def, err := g.Def(nt.Ref)
		if err != nil {
			continue
		}
		if def.Kind == typegraph.KindFlags && len(def.Flags) > maxFlagCount {
			return witerrors.New(witerrors.LimitExceeded, op,
				fmt.Sprintf("flags type %q declares %d flags, exceeding the configured max_flag_count of %d", def.Name, len(def.Flags), maxFlagCount))
		}
	}
	return nil
}

// extractVersion parses the optional "@{ver}" segment of a qualified name
// (§4.7) into the keyspace's SemanticVersion, defaulting to 0.0.0 when the
// segment is absent (spec.md has no explicit register_type version
// parameter; this is the mechanism documented in DESIGN.md by which a
// registered type acquires one).
func extractVersion(qualifiedName string) (envelope.SemanticVersion, error) {
	at := strings.IndexByte(qualifiedName, '@')
	if at < 0 {
		return envelope.SemanticVersion{}, nil
	}
	rest := qualifiedName[at+1:]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return semverx.Parse(rest)
}

// validName reports whether name is non-empty and free of the reserved
// NUL key separator (spec §6).
func validName(name string) bool {
	return name != "" && strings.IndexByte(name, 0) < 0
}

// normalizeKeyspace canonicalizes a caller-supplied keyspace name to the
// kebab-case form internal/witlang's own identifiers already use, so
// "MyKeyspace" and "my-keyspace" address the same keyspace regardless of
// which case convention a caller used. Applied at the top of every public
// TypedStore method that takes a keyspace, before it reaches metaKey,
// valueKey, or valuePrefix, so metadata and value keys stay addressed
// consistently under one canonical form.
func normalizeKeyspace(name string) string {
	return strcase.KebabCase(name)
}

// deleteAllValues range-deletes every value under keyspace in bounded
// batches, fanning each batch's deletes out over an errgroup (§4.6: "need
// not be atomic across many keys but must be crash-safe" — a crash
// mid-batch simply leaves the remaining keys for a re-run to pick up, since
// each batch is re-derived from a fresh Range scan of what's left).
func (s *TypedStore) deleteAllValues(ctx context.Context, keyspace string) error {
	const op = "TypedStore.DeleteType"

	prefix := valuePrefix(keyspace)
	end := prefixUpperBound(prefix)
	for {
		kvs, err := s.eng.Range(ctx, prefix, end, deleteFanOut)
		if err != nil {
			return witerrors.Wrap(witerrors.EngineError, op, "scanning keyspace values for deletion", err)
		}
		if len(kvs) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, kv := range kvs {
			key := kv.Key
			g.Go(func() error { return s.eng.Delete(gctx, key) })
		}
		if err := g.Wait(); err != nil {
			return witerrors.Wrap(witerrors.EngineError, op, "deleting keyspace values", err)
		}

		if len(kvs) < deleteFanOut {
			return nil
		}
	}
}
