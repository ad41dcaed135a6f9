package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-rental-reservations/internal/reservations"
)

type taskStatusReq struct {
	Status string `json:"status" validate:"required,oneof=PENDING ASSIGNED IN_PROGRESS COMPLETED CANCELLED"`
	Note   string `json:"note" validate:"max=500"`
}

type availabilityResp struct {
	PropertyID string               `json:"property_id"`
	CheckIn    string               `json:"check_in"`
	CheckOut   string               `json:"check_out"`
	Available  bool                 `json:"available"`
	Occupied   []reservations.Entry `json:"occupied"`
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	id := chi.URLParam(r, "id")
	if _, err := h.Bookings.Get(r.Context(), id); err != nil {
		writeDomainError(w, log, err)
		return
	}
	tasks, err := h.Tasks.Tasks(r.Context(), id)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	if tasks == nil {
		tasks = []reservations.OpsTask{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) transitionTask(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	var req taskStatusReq
	if !decode(w, r, &req) {
		return
	}
	to, ok := reservations.ParseTaskStatus(req.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "unknown task status")
		return
	}
	t, err := h.Tasks.Transition(r.Context(), chi.URLParam(r, "id"), to, req.Note)
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) taskHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.Tasks.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, requestLogger(h.Logger, r), err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// availability answers GET /properties/{id}/availability?check_in=&check_out=.
func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(h.Logger, r)
	propertyID := chi.URLParam(r, "id")
	q := r.URL.Query()
	iv, err := reservations.ParseInterval(q.Get("check_in"), q.Get("check_out"))
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	entries, err := h.Ledger.QueryConflicts(r.Context(), propertyID, iv, "")
	if err != nil {
		writeDomainError(w, log, err)
		return
	}
	if entries == nil {
		entries = []reservations.Entry{}
	}
	writeJSON(w, http.StatusOK, availabilityResp{
		PropertyID: propertyID,
		CheckIn:    q.Get("check_in"),
		CheckOut:   q.Get("check_out"),
		Available:  len(entries) == 0,
		Occupied:   entries,
	})
}
