package earnings

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/ayurlink/clinic-management/internal/auth"
	"github.com/ayurlink/clinic-management/internal/transport"
	"github.com/ayurlink/clinic-management/pkg/logger"
)

const dateLayout = "2006-01-02"

type ServiceAPI interface {
	ListForDoctor(doctorID int64, actor *auth.Actor) ([]*DoctorEarning, error)
	Summary(doctorID int64, actor *auth.Actor) (*EarningsSummaryDTO, error)
	ListByRange(doctorID int64, start, end time.Time, actor *auth.Actor) ([]*DoctorEarning, error)
	ListPending(actor *auth.Actor) ([]*DoctorEarning, error)
	Settle(earningID int64, dto SettleEarningDTO, actor *auth.Actor) error
	ListCharges(start, end time.Time, actor *auth.Actor) ([]*AdminCharge, error)
	ChargesSummary(actor *auth.Actor) (*ChargesSummaryDTO, error)
	Reconcile(actor *auth.Actor) (int, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) ListDoctorEarnings(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doctorID, err := h.pathID(r, "doctorID")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid doctor ID")
		return
	}

	// optional ?start=...&end=... narrows the history
	if startStr := r.URL.Query().Get("start"); startStr != "" {
		start, err := time.Parse(dateLayout, startStr)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "start must be in YYYY-MM-DD format")
			return
		}
		end := time.Now().AddDate(0, 0, 1)
		if endStr := r.URL.Query().Get("end"); endStr != "" {
			end, err = time.Parse(dateLayout, endStr)
			if err != nil {
				h.WriteError(w, http.StatusBadRequest, "end must be in YYYY-MM-DD format")
				return
			}
		}
		list, err := h.Service.ListByRange(doctorID, start, end, actor)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, map[string]interface{}{"earnings": list})
		return
	}

	list, err := h.Service.ListForDoctor(doctorID, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"earnings": list})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doctorID, err := h.pathID(r, "doctorID")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid doctor ID")
		return
	}

	summary, err := h.Service.Summary(doctorID, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	list, err := h.Service.ListPending(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"earnings": list})
}

func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid earning ID")
		return
	}

	var dto SettleEarningDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Settle(id, dto, actor); err != nil {
		h.Logger.Error("Settle: service error", "error", err, "earning_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "start must be in YYYY-MM-DD format")
		return
	}
	end := time.Now().AddDate(0, 0, 1)
	if endStr := r.URL.Query().Get("end"); endStr != "" {
		end, err = time.Parse(dateLayout, endStr)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "end must be in YYYY-MM-DD format")
			return
		}
	}

	charges, err := h.Service.ListCharges(start, end, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"charges": charges})
}

func (h *Handler) GetChargesSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.Service.ChargesSummary(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	repaired, err := h.Service.Reconcile(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]int{"repaired": repaired})
}

func (h *Handler) pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
