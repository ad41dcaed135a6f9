package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

const (
	codeInvalidRequestBody = "invalid_request_body"
	codeValidationFailed   = "validation_failed"
	codeInvalidInterval    = "invalid_interval"
	codeInvalidTTL         = "invalid_ttl"
	codePropertyRequired   = "property_required"
	codeUnknownProvider    = "unknown_provider"
	codeDatesConflict      = "dates_conflict"
	codeHoldNotFound       = "hold_not_found"
	codeHoldExpired        = "hold_expired"
	codeHoldConsumed       = "hold_consumed"
	codeHoldReleased       = "hold_released"
	codeHoldChanged        = "hold_changed"
	codeAlreadyTerminal    = "already_terminal"
	codeAlreadyCancelled   = "already_cancelled"
	codeInvalidTransition  = "invalid_transition"
	codeBookingNotFound    = "booking_not_found"
	codePaymentNotFound    = "payment_not_found"
	codeTaskNotFound       = "task_not_found"
	codeNotFound           = "not_found"
	codePaymentFailed      = "payment_failed"
	codeRateLimited        = "rate_limited"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error     string               `json:"error"`
	Code      string               `json:"code"`
	Conflicts []reservations.Entry `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeDomainError maps engine errors onto status codes. Anything unmapped
// is logged and reported as a 500 without leaking the cause.
func writeDomainError(w http.ResponseWriter, log *slog.Logger, err error) {
	var ce *reservations.ConflictError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: codeDatesConflict, Conflicts: ce.Entries})
	case errors.Is(err, reservations.ErrHoldChanged):
		writeError(w, http.StatusConflict, codeHoldChanged, err.Error())
	case errors.Is(err, reservations.ErrConflict):
		writeError(w, http.StatusConflict, codeDatesConflict, err.Error())
	case errors.Is(err, reservations.ErrHoldNotFound):
		writeError(w, http.StatusNotFound, codeHoldNotFound, err.Error())
	case errors.Is(err, reservations.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, codeBookingNotFound, err.Error())
	case errors.Is(err, reservations.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, codePaymentNotFound, err.Error())
	case errors.Is(err, reservations.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, codeTaskNotFound, err.Error())
	case errors.Is(err, reservations.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, reservations.ErrHoldExpired):
		writeError(w, http.StatusGone, codeHoldExpired, err.Error())
	case errors.Is(err, reservations.ErrHoldAlreadyConsumed):
		writeError(w, http.StatusConflict, codeHoldConsumed, err.Error())
	case errors.Is(err, reservations.ErrHoldReleased):
		writeError(w, http.StatusConflict, codeHoldReleased, err.Error())
	case errors.Is(err, reservations.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, codeAlreadyCancelled, err.Error())
	case errors.Is(err, reservations.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, codeAlreadyTerminal, err.Error())
	case errors.Is(err, reservations.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, reservations.ErrPaymentFailed):
		writeError(w, http.StatusPaymentRequired, codePaymentFailed, err.Error())
	case errors.Is(err, reservations.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, codeUnknownProvider, err.Error())
	case errors.Is(err, reservations.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, codeInvalidInterval, err.Error())
	case errors.Is(err, reservations.ErrInvalidTTL):
		writeError(w, http.StatusBadRequest, codeInvalidTTL, err.Error())
	case errors.Is(err, reservations.ErrPropertyRequired):
		writeError(w, http.StatusBadRequest, codePropertyRequired, err.Error())
	default:
		log.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
