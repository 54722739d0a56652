package lorem

import (
	"encoding/json"
	"io"
	"net/http"
)

// maxRequestBytes bounds the request body the handler will decode.
const maxRequestBytes = 1 << 20

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(io.LimitReader(r, maxRequestBytes)).Decode(v)
}

// writeJSONError replies with the {message} body the relay uses for
// non-streaming failures.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Message string `json:"message"`
	}{Message: message})
}
