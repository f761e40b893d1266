package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/canonkv/canonkv/internal/codec"
	"github.com/canonkv/canonkv/internal/engine"
	"github.com/canonkv/canonkv/internal/store"
	"github.com/canonkv/canonkv/internal/witlang"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	s := store.New(engine.NewMemEngine(), witlang.IDLParser{}, witlang.ValueCodec{}, codec.DefaultLimits(), nil)
	return Handler(s, witlang.ValueCodec{}, nil)
}

func TestRegisterGetSetGetValueFlow(t *testing.T) {
	h := newTestHandler(t)

	idl := `interface shapes { record point { x: u32, y: u32 } }`
	req := httptest.NewRequest(http.MethodPost, "/keyspaces/geo?type=shapes%23point", bytes.NewBufferString(idl))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/keyspaces/geo/values/p1", bytes.NewBufferString(`{ x: 3, y: 4 }`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set: status %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/keyspaces/geo/values/p1", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != "{x: 3, y: 4}" {
		t.Fatalf("get body = %q", got)
	}
}

func TestGetTypeNotFoundMapsTo404(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/keyspaces/absent", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body.Kind != "KEYSPACE_NOT_FOUND" {
		t.Fatalf("kind = %q", body.Kind)
	}
}

func TestRegisterTwiceWithoutForceMapsTo409(t *testing.T) {
	h := newTestHandler(t)
	idl := `interface shapes { record point { x: u32 } }`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/keyspaces/geo", bytes.NewBufferString(idl))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if i == 0 && rec.Code != http.StatusCreated {
			t.Fatalf("first register: status %d", rec.Code)
		}
		if i == 1 {
			if rec.Code != http.StatusConflict {
				t.Fatalf("second register: status %d, want 409", rec.Code)
			}
		}
	}
}

func TestListKeysAndDelete(t *testing.T) {
	h := newTestHandler(t)
	idl := `interface shapes { record point { x: u32 } }`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/keyspaces/geo", bytes.NewBufferString(idl)))

	for _, key := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPut, "/keyspaces/geo/values/"+key, bytes.NewBufferString(`{ x: 1 }`))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("set %s: status %d", key, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/keyspaces/geo/values", nil))
	var keys []string
	if err := json.Unmarshal(rec.Body.Bytes(), &keys); err != nil {
		t.Fatalf("unmarshal keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 entries", keys)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/keyspaces/geo/values/a", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
}
