package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Envelope is the single request shape accepted by the gateway.
type Envelope struct {
	Resource string         `json:"resource" validate:"required"`
	Action   string         `json:"action" validate:"required"`
	ID       string         `json:"id"`
	Data     map[string]any `json:"data"`
	Filters  map[string]any `json:"filters"`
	Limit    int            `json:"limit" validate:"gte=0"`
	Offset   int            `json:"offset" validate:"gte=0"`
	OrderBy  string         `json:"order_by"`
	OrderDir string         `json:"order_dir" validate:"omitempty,oneof=asc desc"`
}

// response is the one body shape ever returned. Callers branch on error
// being null, then on code.
type response struct {
	Data  any     `json:"data"`
	Count *int64  `json:"count,omitempty"`
	Error *string `json:"error"`
	Code  int     `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any, count *int64) {
	writeJSON(w, http.StatusOK, response{Data: data, Count: count})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, response{Error: &msg, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := r.Body
	defer reader.Close()

	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body")
	}
	// Trailing content after the document is a malformed request.
	if dec.More() {
		return errors.New("invalid JSON body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body")
	}
	return nil
}
