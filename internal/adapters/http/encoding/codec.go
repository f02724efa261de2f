package encoding

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// Negotiate returns the response content type for a request. JSON is the
// default; msgpack is used only when the Accept header asks for it.
func Negotiate(r *http.Request) string {
	if strings.Contains(r.Header.Get("Accept"), ContentTypeMsgpack) {
		return ContentTypeMsgpack
	}
	return ContentTypeJSON
}

// Write encodes data in the negotiated format with the given status.
func Write(w http.ResponseWriter, r *http.Request, status int, data any) {
	contentType := Negotiate(r)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)

	if contentType == ContentTypeMsgpack {
		msgpack.NewEncoder(w).Encode(data)
		return
	}
	json.NewEncoder(w).Encode(data)
}

// Read decodes the request body based on its Content-Type, defaulting to
// JSON. Bodies are capped at 1 MiB.
func Read(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	if strings.Contains(r.Header.Get("Content-Type"), ContentTypeMsgpack) {
		return msgpack.NewDecoder(r.Body).Decode(target)
	}
	return json.NewDecoder(r.Body).Decode(target)
}
