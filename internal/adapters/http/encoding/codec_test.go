package encoding

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Name  string `json:"name" msgpack:"name"`
	Count int    `json:"count" msgpack:"count"`
}

func TestNegotiateDefaultsToJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := Negotiate(r); got != ContentTypeJSON {
		t.Errorf("expected json, got %s", got)
	}

	r.Header.Set("Accept", "*/*")
	if got := Negotiate(r); got != ContentTypeJSON {
		t.Errorf("expected json for wildcard, got %s", got)
	}
}

func TestNegotiateMsgpack(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", ContentTypeMsgpack)
	if got := Negotiate(r); got != ContentTypeMsgpack {
		t.Errorf("expected msgpack, got %s", got)
	}
}

func TestWriteJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Write(w, r, http.StatusOK, payload{Name: "calc", Count: 3})

	if got := w.Header().Get("Content-Type"); got != ContentTypeJSON {
		t.Errorf("unexpected content type %s", got)
	}
	if !strings.Contains(w.Body.String(), `"name":"calc"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestWriteMsgpackRoundTrip(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", ContentTypeMsgpack)
	w := httptest.NewRecorder()
	Write(w, r, http.StatusOK, payload{Name: "calc", Count: 3})

	if got := w.Header().Get("Content-Type"); got != ContentTypeMsgpack {
		t.Errorf("unexpected content type %s", got)
	}
	var decoded payload
	if err := msgpack.NewDecoder(w.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Name != "calc" || decoded.Count != 3 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestReadMsgpackBody(t *testing.T) {
	body, err := msgpack.Marshal(payload{Name: "turn", Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	r.Header.Set("Content-Type", ContentTypeMsgpack)
	w := httptest.NewRecorder()

	var decoded payload
	if err := Read(w, r, &decoded); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if decoded.Name != "turn" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestReadJSONBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"turn","count":2}`))
	w := httptest.NewRecorder()

	var decoded payload
	if err := Read(w, r, &decoded); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if decoded.Count != 2 {
		t.Errorf("unexpected payload %+v", decoded)
	}
}
