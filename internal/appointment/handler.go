package appointment

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

type ServiceAPI interface {
	Book(dto BookAppointmentDTO, actor *auth.Actor) (*Appointment, error)
	GetByID(id int64, actor *auth.Actor) (*Appointment, error)
	GetByTicketNumber(ticket string, actor *auth.Actor) (*Appointment, error)
	ListForPatient(patientID int64, actor *auth.Actor) ([]*Appointment, error)
	ListForDoctor(doctorID int64, actor *auth.Actor) ([]*Appointment, error)
	ListForDoctorOnDate(doctorID int64, date time.Time, actor *auth.Actor) ([]*Appointment, error)
	ListAll(actor *auth.Actor) ([]*Appointment, error)
	Cancel(id int64, dto CancelAppointmentDTO, actor *auth.Actor) error
	Complete(id int64, actor *auth.Actor) error
	Reschedule(id int64, dto RescheduleAppointmentDTO, actor *auth.Actor) (*Appointment, error)
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

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto BookAppointmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Book: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	apt, err := h.Service.Book(dto, actor)
	if err != nil {
		h.Logger.Error("Book: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	apt, err := h.Service.GetByID(id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, apt)
}

func (h *Handler) GetByTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ticket := chi.URLParam(r, "ticket")
	if ticket == "" {
		h.WriteError(w, http.StatusBadRequest, "ticket number is required")
		return
	}

	apt, err := h.Service.GetByTicketNumber(ticket, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, apt)
}

func (h *Handler) ListPatientAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	patientID, err := h.pathID(r, "patientID")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid patient ID")
		return
	}

	appointments, err := h.Service.ListForPatient(patientID, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"appointments": appointments})
}

func (h *Handler) ListDoctorAppointments(w http.ResponseWriter, r *http.Request) {
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

	var appointments []*Appointment
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
			return
		}
		appointments, err = h.Service.ListForDoctorOnDate(doctorID, date, actor)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
	} else {
		appointments, err = h.Service.ListForDoctor(doctorID, actor)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"appointments": appointments})
}

func (h *Handler) ListAllAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointments, err := h.Service.ListAll(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"appointments": appointments})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	// Body is optional; an empty cancel carries no reason.
	var dto CancelAppointmentDTO
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&dto)
	}

	if err := h.Service.Cancel(id, dto, actor); err != nil {
		h.Logger.Error("Cancel: service error", "error", err, "appointment_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	if err := h.Service.Complete(id, actor); err != nil {
		h.Logger.Error("Complete: service error", "error", err, "appointment_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	var dto RescheduleAppointmentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Reschedule: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	apt, err := h.Service.Reschedule(id, dto, actor)
	if err != nil {
		h.Logger.Error("Reschedule: service error", "error", err, "appointment_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, apt)
}

func (h *Handler) pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
