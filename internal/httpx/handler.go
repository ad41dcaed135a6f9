package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-rental-reservations/internal/booking"
	"github.com/ariefcatur/go-rental-reservations/internal/holds"
	kafkax "github.com/ariefcatur/go-rental-reservations/internal/kafka"
	"github.com/ariefcatur/go-rental-reservations/internal/ledger"
	"github.com/ariefcatur/go-rental-reservations/internal/opstasks"
	"github.com/ariefcatur/go-rental-reservations/internal/redisx"
)

// StatusCache is the read-through cache behind GET /bookings/{id}/status.
type StatusCache interface {
	Get(ctx context.Context, bookingID string) (redisx.BookingStatus, bool, error)
	PutIfAbsent(ctx context.Context, st redisx.BookingStatus) (bool, error)
}

type Handler struct {
	Holds    *holds.Manager
	Bookings *booking.Machine
	Tasks    *opstasks.Cascade
	Ledger   *ledger.Ledger
	Status   StatusCache  // optional
	Limiter  *RateLimiter // optional, guards hold creation
	Logger   *slog.Logger
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (h *Handler) Register(r chi.Router) {
	r.Route("/holds", func(r chi.Router) {
		if h.Limiter != nil {
			r.With(h.Limiter.Middleware).Post("/", h.createHold)
		} else {
			r.Post("/", h.createHold)
		}
		r.Get("/{id}", h.getHold)
		r.Patch("/{id}", h.extendHold)
		r.Delete("/{id}", h.releaseHold)
		r.Post("/{id}/confirm", h.confirmHold)
	})
	r.Route("/bookings/{id}", func(r chi.Router) {
		r.Get("/", h.getBooking)
		r.Get("/status", h.getBookingStatus)
		r.Post("/cancel", h.cancelBooking)
		r.Get("/tasks", h.listTasks)
	})
	r.Post("/tasks/{id}/status", h.transitionTask)
	r.Get("/tasks/{id}/history", h.taskHistory)
	r.Get("/properties/{id}/availability", h.availability)
}

// decode reads an optional JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid json")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err.Error()
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

// ctxFor carries the request id into published events.
func ctxFor(r *http.Request) context.Context {
	return kafkax.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
}
