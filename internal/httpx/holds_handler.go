package httpx

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-rental-reservations/internal/booking"
	"github.com/ariefcatur/go-rental-reservations/internal/holds"
	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type createHoldReq struct {
	PropertyID string `json:"property_id" validate:"required"`
	CheckIn    string `json:"check_in" validate:"required"`
	CheckOut   string `json:"check_out" validate:"required"`
	TTLSeconds int    `json:"ttl_seconds" validate:"gte=0"`
}

type extendHoldReq struct {
	CheckIn    string `json:"check_in" validate:"required_with=CheckOut"`
	CheckOut   string `json:"check_out" validate:"required_with=CheckIn"`
	TTLSeconds int    `json:"ttl_seconds" validate:"gte=0"`
}

type confirmReq struct {
	Provider    string `json:"provider"`
	Reference   string `json:"reference" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) createHold(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	var req createHoldReq
	if !decode(w, r, &req) {
		return
	}
	iv, err := reservations.ParseInterval(req.CheckIn, req.CheckOut)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	ttl, err := ttlFromSeconds(req.TTLSeconds)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	hold, err := h.Holds.CreateHold(r.Context(), holds.CreateHoldInput{
		PropertyID: req.PropertyID,
		Interval:   iv,
		TTL:        ttl,
	})
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, hold)
}

// ttlFromSeconds rejects values a time.Duration cannot hold instead of letting
// the multiplication wrap.
func ttlFromSeconds(sec int) (time.Duration, error) {
	if int64(sec) > math.MaxInt64/int64(time.Second) {
		return 0, fmt.Errorf("%w: %ds is out of range", reservations.ErrInvalidTTL, sec)
	}
	return time.Duration(sec) * time.Second, nil
}

func (h *Handler) getHold(w http.ResponseWriter, r *http.Request) {
	hold, err := h.Holds.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, requestLogger(h.Logger, r), err)
		return
	}
	writeJSON(w, http.StatusOK, hold)
}

func (h *Handler) extendHold(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	var req extendHoldReq
	if !decode(w, r, &req) {
		return
	}
	ttl, err := ttlFromSeconds(req.TTLSeconds)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	in := holds.ExtendHoldInput{HoldID: chi.URLParam(r, "id"), TTL: ttl}
	if req.CheckIn != "" {
		iv, err := reservations.ParseInterval(req.CheckIn, req.CheckOut)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		in.Interval = &iv
	}
	hold, err := h.Holds.ExtendHold(r.Context(), in)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, hold)
}

func (h *Handler) releaseHold(w http.ResponseWriter, r *http.Request) {
	if err := h.Holds.ReleaseHold(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, requestLogger(h.Logger, r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirmHold(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	var req confirmReq
	if !decode(w, r, &req) {
		return
	}
	b, err := h.Bookings.Confirm(ctxFor(r), booking.ConfirmInput{
		HoldID: chi.URLParam(r, "id"),
		Payment: reservations.PaymentIntent{
			Provider:    reservations.Provider(req.Provider),
			Reference:   req.Reference,
			AmountCents: req.AmountCents,
			Currency:    req.Currency,
		},
	})
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}
