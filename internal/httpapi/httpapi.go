// Package httpapi exposes TypedStore's public operations as a REST-ish
// net/http.Handler (spec §4.15). It owns no store semantics: every
// handler parses its request, calls straight through to
// internal/store.TypedStore, and translates the result (or a
// *witerrors.Error) into an HTTP response.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/canonkv/canonkv/internal/store"
	"github.com/canonkv/canonkv/internal/typegraph"
	"github.com/canonkv/canonkv/internal/witerrors"
)

// ValuePrinter prints a lifted RuntimeValue back to its textual form for
// Get responses. Satisfied by store.ValueTextCodec's PrintValue method or
// any equivalent collaborator.
type ValuePrinter interface {
	PrintValue(g *typegraph.Graph, ref typegraph.TypeRef, v typegraph.Value) (string, error)
}

// Handler builds the net/http.Handler for s. values is used only to print
// Get responses as text; logger defaults to slog.Default() when nil.
func Handler(s *store.TypedStore, values ValuePrinter, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{store: s, values: values, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /keyspaces/{ks}", h.registerType)
	mux.HandleFunc("GET /keyspaces/{ks}", h.getType)
	mux.HandleFunc("DELETE /keyspaces/{ks}", h.deleteType)
	mux.HandleFunc("GET /keyspaces", h.listTypes)
	mux.HandleFunc("PUT /keyspaces/{ks}/values/{key}", h.setValue)
	mux.HandleFunc("GET /keyspaces/{ks}/values/{key}", h.getValue)
	mux.HandleFunc("DELETE /keyspaces/{ks}/values/{key}", h.deleteValue)
	mux.HandleFunc("GET /keyspaces/{ks}/values", h.listKeys)
	return withRequestID(mux, logger)
}

type handler struct {
	store  *store.TypedStore
	values ValuePrinter
	logger *slog.Logger
}

func withRequestID(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		logger.Info("request", "request_id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (h *handler) registerType(w http.ResponseWriter, r *http.Request) {
	ks := r.PathValue("ks")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.logger, r, witerrors.New(witerrors.IdlParseError, "httpapi.RegisterType", "reading request body"))
		return
	}
	force := queryBool(r, "force")
	typeName := r.URL.Query().Get("type")

	meta, err := h.store.RegisterType(r.Context(), ks, string(body), typeName, force)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meta)
}

func (h *handler) getType(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.GetType(r.Context(), r.PathValue("ks"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *handler) deleteType(w http.ResponseWriter, r *http.Request) {
	deleteData := queryBool(r, "data")
	if err := h.store.DeleteType(r.Context(), r.PathValue("ks"), deleteData); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListTypes(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *handler) setValue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, h.logger, r, witerrors.New(witerrors.TypeMismatch, "httpapi.Set", "reading request body"))
		return
	}
	if err := h.store.Set(r.Context(), r.PathValue("ks"), r.PathValue("key"), string(body)); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getValue(w http.ResponseWriter, r *http.Request) {
	ks, key := r.PathValue("ks"), r.PathValue("key")
	v, err := h.store.Get(r.Context(), ks, key)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	meta, err := h.store.GetType(r.Context(), ks)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	g, ref, err := h.store.ResolveGraph(meta)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	text, err := h.values.PrintValue(g, ref, v)
	if err != nil {
		writeError(w, h.logger, r, witerrors.Wrap(witerrors.TypeMismatch, "httpapi.Get", "printing value as text", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (h *handler) deleteValue(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("ks"), r.PathValue("key")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listKeys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	opts := store.ListOptions{
		Prefix: q.Get("prefix"),
		Start:  q.Get("start"),
		End:    q.Get("end"),
		Limit:  limit,
	}
	keys, err := h.store.ListKeys(r.Context(), r.PathValue("ks"), opts)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	kind, ok := witerrors.KindOf(err)
	status := http.StatusInternalServerError
	if ok {
		status = statusForKind(kind)
	} else {
		kind = witerrors.EngineError
	}
	logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	writeJSON(w, status, errorBody{Kind: string(kind), Message: err.Error()})
}

func statusForKind(kind witerrors.Kind) int {
	switch kind {
	case witerrors.IdlParseError, witerrors.UnsupportedKind, witerrors.KeyInvalid,
		witerrors.OutOfRange, witerrors.TypeMismatch:
		return http.StatusBadRequest
	case witerrors.KeyspaceNotFound, witerrors.KeyNotFound, witerrors.TypeNotFound:
		return http.StatusNotFound
	case witerrors.KeyspaceExists, witerrors.IncompatibleStoredVersion:
		return http.StatusConflict
	case witerrors.MemoryBounds, witerrors.InvalidUtf8, witerrors.InvalidBool, witerrors.InvalidChar,
		witerrors.UnknownDiscriminant, witerrors.UnknownCase, witerrors.UnknownFlagBit,
		witerrors.UnsupportedEnvelopeVersion:
		return http.StatusUnprocessableEntity
	case witerrors.LimitExceeded:
		return http.StatusRequestEntityTooLarge
	default: // EngineError, GraphError
		return http.StatusInternalServerError
	}
}
