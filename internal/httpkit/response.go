// Package httpkit writes the trigger endpoint's JSON responses.
package httpkit

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// JobIDHeader carries the pipeline job ID on every /process-video response,
// failed or not, so a push delivery can be matched to its job logs.
const JobIDHeader = "X-Job-ID"

// unavailableRetryAfter is how long a push sender should wait after a 503
// (database or redis down) before redelivering.
const unavailableRetryAfter = 30

// ErrorBody is the object under "error" in a failed response.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	JobID     string         `json:"job_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes body as the response. Job results and health reports are
// point-in-time, so nothing is cacheable.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteErr writes the error envelope. The job ID is taken from the
// JobIDHeader when a handler set one.
func WriteErr(w http.ResponseWriter, status int, body ErrorBody) {
	if body.JobID == "" {
		body.JobID = w.Header().Get(JobIDHeader)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(unavailableRetryAfter))
	}
	WriteJSON(w, status, ErrorEnvelope{Error: body})
}
