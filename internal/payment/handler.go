package payment

import (
	"encoding/json"
	"io"
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
	BankDetails() BankDetailsDTO
	Breakdown(appointmentID int64, actor *auth.Actor) (*BreakdownDTO, error)
	PayCash(dto CashPaymentDTO, actor *auth.Actor) (*Payment, error)
	UploadReceipt(appointmentID int64, upload ReceiptUpload, actor *auth.Actor) (*Payment, error)
	ApproveVerification(paymentID int64, actor *auth.Actor) error
	RejectVerification(paymentID int64, dto RejectPaymentDTO, actor *auth.Actor) error
	Refund(paymentID int64, dto RefundPaymentDTO, actor *auth.Actor) error
	Delete(paymentID int64, actor *auth.Actor) error
	GetByID(paymentID int64, actor *auth.Actor) (*Payment, error)
	DownloadReceipt(paymentID int64, actor *auth.Actor) (string, []byte, error)
	ListForAppointment(appointmentID int64, actor *auth.Actor) ([]*Payment, error)
	ListPendingVerification(actor *auth.Actor) ([]*Payment, error)
	ListByDateRange(start, end time.Time, actor *auth.Actor) ([]*Payment, error)
	DailySummary(date time.Time, actor *auth.Actor) (*DailySummaryDTO, error)
	MonthlySummary(year, month int, actor *auth.Actor) (*MonthlySummaryDTO, error)
	Statistics(actor *auth.Actor) (*StatisticsDTO, error)
	ExportCSV(start, end time.Time, actor *auth.Actor) (string, error)
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

func (h *Handler) GetBankDetails(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Service.BankDetails())
}

func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointmentID, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	breakdown, err := h.Service.Breakdown(appointmentID, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) PayCash(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointmentID, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	// body is optional; it only carries notes
	var dto CashPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && err != io.EOF {
		h.Logger.Error("PayCash: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dto.AppointmentID = appointmentID

	p, err := h.Service.PayCash(dto, actor)
	if err != nil {
		h.Logger.Error("PayCash: service error", "error", err, "appointment_id", dto.AppointmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p)
}

// UploadReceipt accepts a multipart form with the slip under "receipt".
func (h *Handler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointmentID, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	if err := r.ParseMultipartForm(MaxReceiptSize); err != nil {
		h.Logger.Error("UploadReceipt: invalid multipart form", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("receipt")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "receipt file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxReceiptSize+1))
	if err != nil {
		h.Logger.Error("UploadReceipt: failed to read file", "error", err)
		h.WriteError(w, http.StatusBadRequest, "failed to read receipt file")
		return
	}

	upload := ReceiptUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Data:        data,
	}

	p, err := h.Service.UploadReceipt(appointmentID, upload, actor)
	if err != nil {
		h.Logger.Error("UploadReceipt: service error", "error", err, "appointment_id", appointmentID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	if err := h.Service.ApproveVerification(id, actor); err != nil {
		h.Logger.Error("Verify: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	var dto RejectPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.RejectVerification(id, dto, actor); err != nil {
		h.Logger.Error("Reject: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	var dto RefundPaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.Refund(id, dto, actor); err != nil {
		h.Logger.Error("Refund: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	if err := h.Service.Delete(id, actor); err != nil {
		h.Logger.Error("Delete: service error", "error", err, "payment_id", id)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	p, err := h.Service.GetByID(id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, p)
}

// DownloadReceipt streams the stored slip back to the caller. The service
// enforces who may see it.
func (h *Handler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid payment ID")
		return
	}

	name, data, err := h.Service.DownloadReceipt(id, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) ListAppointmentPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	appointmentID, err := h.pathID(r, "id")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid appointment ID")
		return
	}

	payments, err := h.Service.ListForAppointment(appointmentID, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (h *Handler) ListPendingVerification(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	payments, err := h.Service.ListPendingVerification(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// ListPayments returns payments in ?start=...&end=... (end defaults to
// tomorrow).
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
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

	payments, err := h.Service.ListByDateRange(start, end, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

func (h *Handler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	date := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		var err error
		date, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
			return
		}
	}

	summary, err := h.Service.DailySummary(date, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		if y, err := strconv.Atoi(yearStr); err == nil {
			year = y
		}
	}
	if monthStr := r.URL.Query().Get("month"); monthStr != "" {
		if m, err := strconv.Atoi(monthStr); err == nil {
			month = m
		}
	}

	summary, err := h.Service.MonthlySummary(year, month, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.Service.Statistics(actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, stats)
}

// ExportCSV streams the payment report for ?start=...&end=... (inclusive
// start, exclusive end; end defaults to tomorrow).
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
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

	csv, err := h.Service.ExportCSV(start, end, actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="payments.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(csv))
}

func (h *Handler) pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
