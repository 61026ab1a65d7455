package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/hassbridge/internal/rpc"
)

// handleHealth reports liveness. It never contacts the upstream.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rpc.HealthStatus{
		Status:  "ok",
		Service: rpc.ServiceName,
		Version: s.version,
	})
}

// handleInfo returns the capability descriptor.
func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Info(s.version))
}

// handleRPC decodes one request envelope from the body and dispatches it.
//
// Content-Type is not checked; the body must decode as an envelope either
// way. Malformed input is rejected with an HTTP error outside the envelope.
// Protocol and upstream failures are reported inside a 200 response.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body exceeds 1 MB")
			return
		}
		writeBadRequest(w, "reading request body: "+err.Error())
		return
	}

	req, err := rpc.DecodeRequest(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.dispatcher.Dispatch(r.Context(), req))
}
