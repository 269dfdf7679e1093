package httputil

import (
	"errors"
	"net/http"

	"github.com/AdamBeresnev/club-brackets/internal/service"
	"github.com/charmbracelet/log"
)

func InternalServerError(w http.ResponseWriter, msg string, err error) {
	log.Error(msg, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func BadRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		log.Warn("bad request", "message", msg, "error", err)
	} else {
		log.Warn("bad request", "message", msg)
	}
	http.Error(w, msg, http.StatusBadRequest)
}

func NotFound(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		log.Warn("not found", "message", msg, "error", err)
	} else {
		log.Warn("not found", "message", msg)
	}
	http.Error(w, msg, http.StatusNotFound)
}

// StatusFor maps a service error onto its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteError answers a failed API call with {"error": ...}. Internal failures are
// logged and their detail is not sent to the client.
func WriteError(w http.ResponseWriter, msg string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(msg, "error", err)
		WriteJSON(w, status, errorBody{Error: "Internal Server Error"})
		return
	}
	log.Warn(msg, "status", status, "error", err)
	WriteJSON(w, status, errorBody{Error: err.Error()})
}
