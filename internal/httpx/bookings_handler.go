package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-rental-reservations/internal/booking"
	"github.com/ariefcatur/go-rental-reservations/internal/redisx"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type cancelReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

type bookingResp struct {
	Booking reservations.Booking  `json:"booking"`
	Payment *reservations.Payment `json:"payment,omitempty"`
}

type cancelResp struct {
	Booking     reservations.Booking        `json:"booking"`
	Payment     *reservations.Payment       `json:"payment,omitempty"`
	Refund      *reservations.RefundOutcome `json:"refund,omitempty"`
	RefundError string                      `json:"refund_error,omitempty"`
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	id := chi.URLParam(r, "id")
	b, err := h.Bookings.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	resp := bookingResp{Booking: b}
	p, err := h.Bookings.Payment(r.Context(), id)
	switch {
	case err == nil:
		resp.Payment = &p
	case !errors.Is(err, reservations.ErrPaymentNotFound):
		writeDomainError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// getBookingStatus serves from the cache and falls back to the store,
// refilling the cache on the way out unless a transition got there first.
func (h *Handler) getBookingStatus(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	id := chi.URLParam(r, "id")
	if h.Status != nil {
		st, ok, err := h.Status.Get(r.Context(), id)
		if err != nil {
			log.Warn("status cache read failed", slog.String("error", err.Error()))
		}
		if ok {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}

	b, err := h.Bookings.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	st := redisx.BookingStatus{BookingID: b.ID, Status: b.Status, UpdatedAt: b.UpdatedAt}
	if b.Status == reservations.BookingStatusCancelled {
		if p, err := h.Bookings.Payment(r.Context(), id); err == nil {
			st.RefundStatus = refundStatusOf(p)
		}
	}
	if h.Status != nil {
		if _, err := h.Status.PutIfAbsent(r.Context(), st); err != nil {
			log.Warn("status cache write failed", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusOK, st)
}

func refundStatusOf(p reservations.Payment) reservations.RefundStatus {
	switch p.Status {
	case reservations.PaymentRefunded:
		return reservations.RefundSucceeded
	case reservations.PaymentCaptured:
		return reservations.RefundFailed
	}
	return reservations.RefundNone
}

func (h *Handler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	var req cancelReq
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Bookings.Cancel(ctxFor(r), booking.CancelInput{BookingID: chi.URLParam(r, "id"), Reason: req.Reason})
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	resp := cancelResp{Booking: res.Booking, Payment: res.Payment, Refund: res.Refund}
	if res.RefundErr != nil {
		resp.RefundError = res.RefundErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
