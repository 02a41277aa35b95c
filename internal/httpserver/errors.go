package httpserver

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/cryptods8/openframedl-sub001/internal/apperr"
)

var errBadJSON = apperr.New(apperr.Validation, "bad_json", "request body is not valid JSON")

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusOf maps an error kind to an HTTP status.
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation:
		return http.StatusUnprocessableEntity
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict, apperr.Invariant:
		return http.StatusConflict
	case apperr.External:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error":code,"message":msg}.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)
	if err == errBadJSON {
		status = http.StatusBadRequest
	}
	switch {
	case status >= 500:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	default:
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{Error: apperr.CodeOf(err), Message: apperr.MessageOf(err)})
}
