package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/appointment"
	"github.com/ayurlink/clinic-management/internal/auth"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
	paymentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/payment"
	"github.com/ayurlink/clinic-management/internal/core/events"
	"github.com/ayurlink/clinic-management/internal/earnings"
	"github.com/ayurlink/clinic-management/internal/storage"
)

// Repository defines the data access methods for payments. The transition
// methods are transactional: the payment row, the appointment status mirror
// and the ledger rows land together or not at all.
type Repository interface {
	// CreateCollected inserts a SUCCESS payment, confirms the appointment
	// and writes both ledger rows in one transaction. Cash path.
	CreateCollected(p *Payment, ledger earnings.LedgerEntries) error
	// CreatePendingVerification inserts the uploaded-receipt payment and
	// moves the appointment to PENDING in one transaction.
	CreatePendingVerification(p *Payment) error
	// ApproveVerification flips PENDING_VERIFICATION to SUCCESS only if the
	// row still holds that status, confirms the appointment and writes the
	// ledger. Returns an invalid-state error when the guard misses.
	ApproveVerification(paymentID int64, verifiedBy string, ledger earnings.LedgerEntries) error
	// RejectVerification flips PENDING_VERIFICATION to REJECTED under the
	// same guard, records the note and moves the appointment back to PENDING.
	RejectVerification(paymentID int64, verifiedBy, note string) error
	// Refund flips SUCCESS to REFUNDED under guard, records the refund
	// fields, cancels the appointment and reverses the ledger rows.
	Refund(paymentID int64, reason string) error
	Delete(paymentID int64) error

	GetByID(id int64) (*Payment, error)
	// GetActiveByAppointment returns the payment still blocking the
	// appointment, or ErrPaymentNotFound when only rejected/failed ones exist.
	GetActiveByAppointment(appointmentID int64) (*Payment, error)
	ListByAppointment(appointmentID int64) ([]*Payment, error)
	ListPendingVerification() ([]*Payment, error)
	ListByDateRange(start, end time.Time) ([]*Payment, error)
	ListAll() ([]*Payment, error)
	ExportRows(start, end time.Time) ([]ExportRow, error)
}

type AppointmentStore interface {
	GetByID(id int64) (*appointment.Appointment, error)
}

type Directory interface {
	GetDoctorByID(id int64) (*clinicDatamodel.Doctor, error)
	GetPatientByID(id int64) (*clinicDatamodel.Patient, error)
	GetTreatmentByID(id int64) (*clinicDatamodel.Treatment, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// ReceiptUpload is the file part of a bank-slip submission.
type ReceiptUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Data        []byte
}

func (u ReceiptUpload) Validate() error {
	if len(u.Data) == 0 {
		return internal.NewValidationFieldError("receipt", "receipt file is required", internal.ErrCodeInvalidReceipt)
	}
	if u.Size > MaxReceiptSize || int64(len(u.Data)) > MaxReceiptSize {
		return internal.NewValidationFieldError("receipt", "receipt file exceeds the 5MB limit", internal.ErrCodeInvalidReceipt)
	}
	if !IsAllowedReceiptContentType(u.ContentType) {
		return internal.NewValidationFieldError("receipt", "receipt must be a JPEG, PNG or PDF file", internal.ErrCodeInvalidReceipt)
	}
	return nil
}

type Service struct {
	repo         Repository
	appointments AppointmentStore
	directory    Directory
	files        storage.FileStore
	events       EventPublisher
	clinicCfg    internal.ClinicConfig
	bankCfg      internal.BankConfig
	logger       *slog.Logger
}

func NewService(
	repo Repository,
	appointments AppointmentStore,
	directory Directory,
	files storage.FileStore,
	publisher EventPublisher,
	clinicCfg internal.ClinicConfig,
	bankCfg internal.BankConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		appointments: appointments,
		directory:    directory,
		files:        files,
		events:       publisher,
		clinicCfg:    clinicCfg,
		bankCfg:      bankCfg,
		logger:       logger,
	}
}

// BankDetails returns the transfer target patients pay into.
func (s *Service) BankDetails() BankDetailsDTO {
	return BankDetailsDTO{
		BankName:      s.bankCfg.BankName,
		AccountName:   s.bankCfg.AccountName,
		AccountNumber: s.bankCfg.AccountNumber,
		Branch:        s.bankCfg.Branch,
		SwiftCode:     s.bankCfg.SwiftCode,
	}
}

// Breakdown itemizes the cost of an appointment from the current doctor and
// treatment fees plus the fixed clinic charge.
func (s *Service) Breakdown(appointmentID int64, actor *auth.Actor) (*BreakdownDTO, error) {
	apt, err := s.appointments.GetByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if !s.canView(apt, actor) {
		return nil, internal.ErrUnauthorizedAccess
	}

	doctor, err := s.directory.GetDoctorByID(apt.DoctorID)
	if err != nil {
		return nil, internal.ErrDoctorNotFound
	}
	treatment, err := s.directory.GetTreatmentByID(apt.TreatmentID)
	if err != nil {
		return nil, internal.ErrTreatmentNotFound
	}

	return &BreakdownDTO{
		AppointmentID: appointmentID,
		DoctorFee:     doctor.ConsultationFee,
		TreatmentFee:  treatment.Cost,
		ClinicCharge:  s.clinicCfg.ClinicCharge,
		TotalAmount:   CalculateTotal(doctor.ConsultationFee, treatment.Cost, s.clinicCfg.ClinicCharge),
	}, nil
}

// PayCash records money collected at the front desk. The payment is SUCCESS
// immediately: the cashier holding the notes is the verification. Admin only.
func (s *Service) PayCash(dto CashPaymentDTO, actor *auth.Actor) (*Payment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		s.logger.Warn("cash payment denied", "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}

	apt, snapshot, err := s.preparePayment(dto.AppointmentID)
	if err != nil {
		return nil, err
	}

	doctor, err := s.directory.GetDoctorByID(apt.DoctorID)
	if err != nil {
		return nil, internal.ErrDoctorNotFound
	}
	treatment, err := s.directory.GetTreatmentByID(apt.TreatmentID)
	if err != nil {
		return nil, internal.ErrTreatmentNotFound
	}

	now := time.Now()
	p := &Payment{
		AppointmentID: dto.AppointmentID,
		DoctorFee:     doctor.ConsultationFee,
		TreatmentFee:  treatment.Cost,
		ClinicCharges: s.clinicCfg.ClinicCharge,
		TotalAmount:   CalculateTotal(doctor.ConsultationFee, treatment.Cost, s.clinicCfg.ClinicCharge),
		PaymentMethod: paymentDatamodel.MethodCash,
		Status:        paymentDatamodel.StatusSuccess,
		TransactionID: NewTransactionID(),
		ReceiptNumber: NewReceiptNumber(),
		PaymentDate:   now,
		PaymentNotes:  dto.Notes,
	}

	ledger := earnings.BuildLedger(ToDataModel(p), snapshot)
	if err := s.repo.CreateCollected(p, ledger); err != nil {
		s.logger.Error("failed to record cash payment", "error", err, "appointment_id", dto.AppointmentID)
		return nil, err
	}

	s.logger.Info("cash payment collected",
		"payment_id", p.ID,
		"appointment_id", p.AppointmentID,
		"receipt_number", p.ReceiptNumber,
		"total_amount", p.TotalAmount)

	return p, nil
}

// UploadReceipt accepts a bank transfer slip for an appointment. The
// payment waits in PENDING_VERIFICATION until an admin reviews the slip.
func (s *Service) UploadReceipt(appointmentID int64, upload ReceiptUpload, actor *auth.Actor) (*Payment, error) {
	if err := upload.Validate(); err != nil {
		return nil, err
	}

	apt, err := s.appointments.GetByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(apt.PatientID) {
		s.logger.Warn("receipt upload denied", "appointment_id", appointmentID, "actor_id", actor.ID)
		return nil, internal.ErrUnauthorizedAccess
	}
	if _, _, err := s.preparePayment(appointmentID); err != nil {
		return nil, err
	}

	doctor, err := s.directory.GetDoctorByID(apt.DoctorID)
	if err != nil {
		return nil, internal.ErrDoctorNotFound
	}
	treatment, err := s.directory.GetTreatmentByID(apt.TreatmentID)
	if err != nil {
		return nil, internal.ErrTreatmentNotFound
	}

	storedName, err := s.files.Store(upload.Data, "receipt", upload.FileName)
	if err != nil {
		s.logger.Error("failed to store receipt file", "error", err, "appointment_id", appointmentID)
		return nil, internal.NewInternalError("failed to store receipt file", err)
	}

	now := time.Now()
	p := &Payment{
		AppointmentID:     appointmentID,
		DoctorFee:         doctor.ConsultationFee,
		TreatmentFee:      treatment.Cost,
		ClinicCharges:     s.clinicCfg.ClinicCharge,
		TotalAmount:       CalculateTotal(doctor.ConsultationFee, treatment.Cost, s.clinicCfg.ClinicCharge),
		PaymentMethod:     paymentDatamodel.MethodReceiptUpload,
		Status:            paymentDatamodel.StatusPendingVerification,
		TransactionID:     NewTransactionID(),
		PaymentDate:       now,
		ReceiptFileName:   &upload.FileName,
		ReceiptFilePath:   &storedName,
		ReceiptUploadDate: &now,
	}

	if err := s.repo.CreatePendingVerification(p); err != nil {
		s.logger.Error("failed to record receipt payment", "error", err, "appointment_id", appointmentID)
		if delErr := s.files.Delete(storedName); delErr != nil {
			s.logger.Warn("failed to clean up orphaned receipt file", "error", delErr, "file", storedName)
		}
		return nil, err
	}

	s.logger.Info("receipt uploaded for verification",
		"payment_id", p.ID,
		"appointment_id", appointmentID,
		"file", storedName)

	return p, nil
}

// ApproveVerification confirms an uploaded slip checks out. Admin only.
func (s *Service) ApproveVerification(paymentID int64, actor *auth.Actor) error {
	if !actor.IsAdmin() {
		return internal.ErrUnauthorizedAccess
	}

	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return err
	}
	if !p.CanBeVerified() {
		return internal.NewInvalidStateError(
			paymentDatamodel.StatusPendingVerification, p.Status,
			internal.ErrCodeInvalidPaymentStatus)
	}

	snapshot, err := s.snapshotFor(p.AppointmentID)
	if err != nil {
		return err
	}

	ledger := earnings.BuildLedger(ToDataModel(p), snapshot)
	if err := s.repo.ApproveVerification(paymentID, actor.Email, ledger); err != nil {
		s.logger.Error("failed to approve payment", "error", err, "payment_id", paymentID)
		return err
	}

	s.events.Publish(context.Background(),
		events.NewPaymentVerifiedEvent(paymentID, p.AppointmentID, p.TotalAmount, actor.Email))

	s.logger.Info("payment verified",
		"payment_id", paymentID,
		"appointment_id", p.AppointmentID,
		"verified_by", actor.Email)

	return nil
}

// RejectVerification sends the slip back. The appointment returns to
// PENDING so the patient can pay again. Admin only.
func (s *Service) RejectVerification(paymentID int64, dto RejectPaymentDTO, actor *auth.Actor) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return internal.ErrUnauthorizedAccess
	}

	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return err
	}
	if !p.CanBeVerified() {
		return internal.NewInvalidStateError(
			paymentDatamodel.StatusPendingVerification, p.Status,
			internal.ErrCodeInvalidPaymentStatus)
	}

	note := fmt.Sprintf("REJECTED by %s on %s: %s",
		actor.Email, time.Now().Format("2006-01-02 15:04"), dto.Reason)

	if err := s.repo.RejectVerification(paymentID, actor.Email, note); err != nil {
		s.logger.Error("failed to reject payment", "error", err, "payment_id", paymentID)
		return err
	}

	s.events.Publish(context.Background(),
		events.NewPaymentRejectedEvent(paymentID, p.AppointmentID, dto.Reason, actor.Email))

	s.logger.Info("payment rejected",
		"payment_id", paymentID,
		"appointment_id", p.AppointmentID,
		"reason", dto.Reason)

	return nil
}

// Refund returns a collected payment in full, cancels the appointment and
// reverses the ledger. Admin only.
func (s *Service) Refund(paymentID int64, dto RefundPaymentDTO, actor *auth.Actor) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return internal.ErrUnauthorizedAccess
	}

	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return err
	}
	if !p.CanBeRefunded() {
		return internal.NewInvalidStateError(
			paymentDatamodel.StatusSuccess, p.Status,
			internal.ErrCodeInvalidPaymentStatus)
	}

	if err := s.repo.Refund(paymentID, dto.Reason); err != nil {
		s.logger.Error("failed to refund payment", "error", err, "payment_id", paymentID)
		return err
	}

	s.events.Publish(context.Background(),
		events.NewPaymentRefundedEvent(paymentID, p.AppointmentID, p.TotalAmount, dto.Reason))

	s.logger.Info("payment refunded",
		"payment_id", paymentID,
		"appointment_id", p.AppointmentID,
		"refund_amount", p.TotalAmount,
		"reason", dto.Reason)

	return nil
}

// Delete removes a failed or abandoned payment attempt. Successful payments
// are the financial record and cannot be deleted. Admin only.
func (s *Service) Delete(paymentID int64, actor *auth.Actor) error {
	if !actor.IsAdmin() {
		return internal.ErrUnauthorizedAccess
	}

	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return err
	}
	if !p.CanBeDeleted() {
		return internal.NewInvalidStateError(
			"any status except SUCCESS", p.Status,
			internal.ErrCodeInvalidPaymentStatus)
	}

	if err := s.repo.Delete(paymentID); err != nil {
		s.logger.Error("failed to delete payment", "error", err, "payment_id", paymentID)
		return err
	}

	// File cleanup is best effort; a leftover file is an annoyance, a
	// blocked delete is a support ticket.
	if p.ReceiptFilePath != nil {
		if err := s.files.Delete(*p.ReceiptFilePath); err != nil {
			s.logger.Warn("failed to delete receipt file", "error", err, "file", *p.ReceiptFilePath)
		}
	}

	s.logger.Info("payment deleted", "payment_id", paymentID, "status", p.Status)
	return nil
}

// DownloadReceipt returns the stored slip for a payment. Only the owning
// patient, the treating doctor or an admin may fetch it.
func (s *Service) DownloadReceipt(paymentID int64, actor *auth.Actor) (string, []byte, error) {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return "", nil, err
	}
	apt, err := s.appointments.GetByID(p.AppointmentID)
	if err != nil {
		return "", nil, err
	}
	if !s.canView(apt, actor) {
		s.logger.Warn("receipt download denied", "payment_id", paymentID, "actor_id", actor.ID)
		return "", nil, internal.ErrUnauthorizedAccess
	}
	if p.ReceiptFilePath == nil {
		return "", nil, internal.NewNotFoundError("no receipt file for this payment", internal.ErrCodePaymentNotFound)
	}

	data, err := s.files.Load(*p.ReceiptFilePath)
	if err != nil {
		s.logger.Error("failed to load receipt file", "error", err, "file", *p.ReceiptFilePath)
		return "", nil, internal.NewInternalError("failed to load receipt file", err)
	}

	name := *p.ReceiptFilePath
	if p.ReceiptFileName != nil {
		name = *p.ReceiptFileName
	}
	return name, data, nil
}

func (s *Service) GetByID(paymentID int64, actor *auth.Actor) (*Payment, error) {
	p, err := s.repo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	apt, err := s.appointments.GetByID(p.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !s.canView(apt, actor) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return p, nil
}

func (s *Service) ListForAppointment(appointmentID int64, actor *auth.Actor) ([]*Payment, error) {
	apt, err := s.appointments.GetByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if !s.canView(apt, actor) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByAppointment(appointmentID)
}

func (s *Service) ListPendingVerification(actor *auth.Actor) ([]*Payment, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListPendingVerification()
}

func (s *Service) ListByDateRange(start, end time.Time, actor *auth.Actor) ([]*Payment, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByDateRange(start, end)
}

// DailySummary aggregates one day. Refunds count on the day the payment was
// taken, matching how the front desk reconciles the drawer.
func (s *Service) DailySummary(date time.Time, actor *auth.Actor) (*DailySummaryDTO, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}

	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	payments, err := s.repo.ListByDateRange(start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	summary := &DailySummaryDTO{Date: start.Format("2006-01-02")}
	for _, p := range payments {
		switch p.Status {
		case paymentDatamodel.StatusSuccess:
			summary.TotalCollected += p.TotalAmount
			summary.PaymentCount++
			if p.PaymentMethod == paymentDatamodel.MethodCash {
				summary.CashTotal += p.TotalAmount
			} else {
				summary.TransferTotal += p.TotalAmount
			}
		case paymentDatamodel.StatusRefunded:
			if p.RefundAmount != nil {
				summary.TotalRefunded += *p.RefundAmount
			}
			summary.RefundCount++
		}
	}
	return summary, nil
}

func (s *Service) MonthlySummary(year, month int, actor *auth.Actor) (*MonthlySummaryDTO, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	if month < 1 || month > 12 {
		return nil, internal.NewValidationFieldError("month", "month must be between 1 and 12", internal.ErrCodeValidationFailed)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	payments, err := s.repo.ListByDateRange(start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}

	summary := &MonthlySummaryDTO{Year: year, Month: month}
	for _, p := range payments {
		switch p.Status {
		case paymentDatamodel.StatusSuccess:
			summary.TotalCollected += p.TotalAmount
			summary.PaymentCount++
		case paymentDatamodel.StatusRefunded:
			if p.RefundAmount != nil {
				summary.TotalRefunded += *p.RefundAmount
			}
			summary.RefundCount++
		}
	}
	return summary, nil
}

func (s *Service) Statistics(actor *auth.Actor) (*StatisticsDTO, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}

	payments, err := s.repo.ListAll()
	if err != nil {
		return nil, err
	}

	stats := &StatisticsDTO{}
	for _, p := range payments {
		switch p.Status {
		case paymentDatamodel.StatusSuccess:
			stats.TotalCollected += p.TotalAmount
			stats.SuccessCount++
		case paymentDatamodel.StatusPendingVerification:
			stats.PendingVerification++
		case paymentDatamodel.StatusRejected:
			stats.RejectedCount++
		case paymentDatamodel.StatusRefunded:
			stats.RefundedCount++
			if p.RefundAmount != nil {
				stats.TotalRefunded += *p.RefundAmount
			}
		}
	}
	return stats, nil
}

// ExportCSV renders the payment report for a date range. Fields are joined
// as-is; names containing commas will shift columns, which reporting
// downstream tolerates today.
func (s *Service) ExportCSV(start, end time.Time, actor *auth.Actor) (string, error) {
	if !actor.IsAdmin() {
		return "", internal.ErrUnauthorizedAccess
	}

	rows, err := s.repo.ExportRows(start, end)
	if err != nil {
		return "", err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].PaymentDate.Before(rows[j].PaymentDate) })

	var b strings.Builder
	b.WriteString("Receipt,Transaction,Patient,NIC,Doctor,Treatment,Amount,Method,Status,Date\n")
	for _, row := range rows {
		b.WriteString(strings.Join([]string{
			row.ReceiptNumber,
			row.TransactionID,
			row.PatientName,
			row.PatientNIC,
			row.DoctorName,
			row.TreatmentName,
			fmt.Sprintf("%.2f", row.Amount),
			row.PaymentMethod,
			row.Status,
			row.PaymentDate.Format("2006-01-02 15:04"),
		}, ","))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// preparePayment runs the shared guard: the appointment must exist and not
// be cancelled, and no active payment may block it. It also resolves the
// ledger snapshot so both payment paths freeze the same names.
func (s *Service) preparePayment(appointmentID int64) (*appointment.Appointment, earnings.PartySnapshot, error) {
	apt, err := s.appointments.GetByID(appointmentID)
	if err != nil {
		return nil, earnings.PartySnapshot{}, err
	}
	if apt.IsCancelled() {
		return nil, earnings.PartySnapshot{}, internal.NewInvalidStateError(
			"any status except CANCELLED", apt.Status,
			internal.ErrCodeInvalidAppointmentStatus)
	}

	existing, err := s.repo.GetActiveByAppointment(appointmentID)
	if err != nil && err != internal.ErrPaymentNotFound {
		return nil, earnings.PartySnapshot{}, err
	}
	if existing != nil {
		return nil, earnings.PartySnapshot{}, internal.ErrPaymentAlreadyExists
	}

	snapshot, err := s.snapshotFor(appointmentID)
	if err != nil {
		return nil, earnings.PartySnapshot{}, err
	}
	return apt, snapshot, nil
}

func (s *Service) snapshotFor(appointmentID int64) (earnings.PartySnapshot, error) {
	apt, err := s.appointments.GetByID(appointmentID)
	if err != nil {
		return earnings.PartySnapshot{}, err
	}
	doctor, err := s.directory.GetDoctorByID(apt.DoctorID)
	if err != nil {
		return earnings.PartySnapshot{}, internal.ErrDoctorNotFound
	}
	patient, err := s.directory.GetPatientByID(apt.PatientID)
	if err != nil {
		return earnings.PartySnapshot{}, internal.ErrPatientNotFound
	}
	treatment, err := s.directory.GetTreatmentByID(apt.TreatmentID)
	if err != nil {
		return earnings.PartySnapshot{}, internal.ErrTreatmentNotFound
	}
	return earnings.PartySnapshot{
		DoctorID:      doctor.ID,
		DoctorName:    doctor.FullName,
		PatientName:   patient.FullName,
		TreatmentName: treatment.Name,
	}, nil
}

func (s *Service) canView(apt *appointment.Appointment, actor *auth.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsDoctor() {
		return actor.ID == apt.DoctorID
	}
	return actor.CanActFor(apt.PatientID)
}
