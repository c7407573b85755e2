package schedule

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"

	"github.com/ayurlink/clinic-management/internal/transport"
	"github.com/ayurlink/clinic-management/pkg/logger"
)

const dateLayout = "2006-01-02"

type ServiceAPI interface {
	AvailableSlots(doctorID int64, date time.Time) ([]TimeSlot, error)
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

func (h *Handler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorIDStr := chi.URLParam(r, "doctorID")
	doctorID, err := strconv.ParseInt(doctorIDStr, 10, 64)
	if err != nil {
		h.Logger.Error("GetAvailableSlots: invalid doctor ID", "id", doctorIDStr)
		h.WriteError(w, http.StatusBadRequest, "invalid doctor ID")
		return
	}

	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		h.Logger.Error("GetAvailableSlots: invalid date", "date", dateStr)
		h.WriteError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
		return
	}

	slots, err := h.Service.AvailableSlots(doctorID, date)
	if err != nil {
		h.Logger.Error("GetAvailableSlots: service error", "error", err, "doctor_id", doctorID, "date", dateStr)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      dateStr,
		"slots":     slots,
	})
}
