package payment_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/appointment"
	"github.com/ayurlink/clinic-management/internal/auth"
	appointmentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/appointment"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
	earningDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/earning"
	paymentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/payment"
	"github.com/ayurlink/clinic-management/internal/core/events"
	"github.com/ayurlink/clinic-management/internal/earnings"
	"github.com/ayurlink/clinic-management/internal/payment"
)

func TestPayment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Payment Suite")
}

// mockRepository mirrors the transactional behaviour of the real repository
// in memory: payment rows, the appointment status shadow and the ledger.
type mockRepository struct {
	payments           map[int64]*payment.Payment
	appointmentStatus  map[int64]string
	earnings           map[int64]*earningDatamodel.DoctorEarning
	charges            map[int64]*earningDatamodel.AdminCharge
	nextID             int64
	createError        error
	transitionError    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		payments:          make(map[int64]*payment.Payment),
		appointmentStatus: make(map[int64]string),
		earnings:          make(map[int64]*earningDatamodel.DoctorEarning),
		charges:           make(map[int64]*earningDatamodel.AdminCharge),
		nextID:            1,
	}
}

func (m *mockRepository) CreateCollected(p *payment.Payment, ledger earnings.LedgerEntries) error {
	if m.createError != nil {
		return m.createError
	}
	p.ID = m.nextID
	m.nextID++
	stored := *p
	m.payments[p.ID] = &stored
	m.appointmentStatus[p.AppointmentID] = appointmentDatamodel.StatusConfirmed
	ledger.Earning.PaymentID = p.ID
	ledger.Charge.PaymentID = p.ID
	m.earnings[p.ID] = ledger.Earning
	m.charges[p.ID] = ledger.Charge
	return nil
}

func (m *mockRepository) CreatePendingVerification(p *payment.Payment) error {
	if m.createError != nil {
		return m.createError
	}
	p.ID = m.nextID
	m.nextID++
	stored := *p
	m.payments[p.ID] = &stored
	m.appointmentStatus[p.AppointmentID] = appointmentDatamodel.StatusPending
	return nil
}

func (m *mockRepository) ApproveVerification(paymentID int64, verifiedBy string, ledger earnings.LedgerEntries) error {
	if m.transitionError != nil {
		return m.transitionError
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return internal.ErrPaymentNotFound
	}
	if p.Status != paymentDatamodel.StatusPendingVerification {
		return internal.NewInvalidStateError(paymentDatamodel.StatusPendingVerification, p.Status, internal.ErrCodeInvalidPaymentStatus)
	}
	now := time.Now()
	p.Status = paymentDatamodel.StatusSuccess
	p.ReceiptVerified = true
	p.VerifiedBy = &verifiedBy
	p.VerificationDate = &now
	m.appointmentStatus[p.AppointmentID] = appointmentDatamodel.StatusConfirmed
	ledger.Earning.PaymentID = paymentID
	ledger.Charge.PaymentID = paymentID
	m.earnings[paymentID] = ledger.Earning
	m.charges[paymentID] = ledger.Charge
	return nil
}

func (m *mockRepository) RejectVerification(paymentID int64, verifiedBy, note string) error {
	if m.transitionError != nil {
		return m.transitionError
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return internal.ErrPaymentNotFound
	}
	if p.Status != paymentDatamodel.StatusPendingVerification {
		return internal.NewInvalidStateError(paymentDatamodel.StatusPendingVerification, p.Status, internal.ErrCodeInvalidPaymentStatus)
	}
	p.Status = paymentDatamodel.StatusRejected
	p.VerifiedBy = &verifiedBy
	p.PaymentNotes = &note
	m.appointmentStatus[p.AppointmentID] = appointmentDatamodel.StatusPending
	return nil
}

func (m *mockRepository) Refund(paymentID int64, reason string) error {
	if m.transitionError != nil {
		return m.transitionError
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return internal.ErrPaymentNotFound
	}
	if p.Status != paymentDatamodel.StatusSuccess {
		return internal.NewInvalidStateError(paymentDatamodel.StatusSuccess, p.Status, internal.ErrCodeInvalidPaymentStatus)
	}
	now := time.Now()
	amount := p.TotalAmount
	p.Status = paymentDatamodel.StatusRefunded
	p.RefundAmount = &amount
	p.RefundDate = &now
	p.RefundReason = &reason
	m.appointmentStatus[p.AppointmentID] = appointmentDatamodel.StatusCancelled
	if e, ok := m.earnings[paymentID]; ok {
		e.Status = earningDatamodel.EarningStatusCancelled
	}
	if c, ok := m.charges[paymentID]; ok {
		c.Status = earningDatamodel.ChargeStatusRefunded
	}
	return nil
}

func (m *mockRepository) Delete(paymentID int64) error {
	if _, ok := m.payments[paymentID]; !ok {
		return internal.ErrPaymentNotFound
	}
	delete(m.payments, paymentID)
	return nil
}

func (m *mockRepository) GetByID(id int64) (*payment.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, internal.ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockRepository) GetActiveByAppointment(appointmentID int64) (*payment.Payment, error) {
	for _, p := range m.payments {
		if p.AppointmentID == appointmentID && p.IsActive() {
			copied := *p
			return &copied, nil
		}
	}
	return nil, internal.ErrPaymentNotFound
}

func (m *mockRepository) ListByAppointment(appointmentID int64) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range m.payments {
		if p.AppointmentID == appointmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepository) ListPendingVerification() ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range m.payments {
		if p.Status == paymentDatamodel.StatusPendingVerification {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepository) ListByDateRange(start, end time.Time) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range m.payments {
		if !p.PaymentDate.Before(start) && p.PaymentDate.Before(end) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockRepository) ListAll() ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range m.payments {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRepository) ExportRows(start, end time.Time) ([]payment.ExportRow, error) {
	var rows []payment.ExportRow
	for _, p := range m.payments {
		if !p.PaymentDate.Before(start) && p.PaymentDate.Before(end) {
			rows = append(rows, payment.ExportRow{
				ReceiptNumber: p.ReceiptNumber,
				TransactionID: p.TransactionID,
				PatientName:   "Nimal Perera",
				PatientNIC:    "902541230V",
				DoctorName:    "Dr. Silva",
				TreatmentName: "Panchakarma",
				Amount:        p.TotalAmount,
				PaymentMethod: p.PaymentMethod,
				Status:        p.Status,
				PaymentDate:   p.PaymentDate,
			})
		}
	}
	return rows, nil
}

type mockAppointmentStore struct {
	appointments map[int64]*appointment.Appointment
	repo         *mockRepository
}

func (m *mockAppointmentStore) GetByID(id int64) (*appointment.Appointment, error) {
	apt, ok := m.appointments[id]
	if !ok {
		return nil, internal.ErrAppointmentNotFound
	}
	copied := *apt
	// reflect the status mirror the repository maintains
	if status, ok := m.repo.appointmentStatus[id]; ok {
		copied.Status = status
	}
	return &copied, nil
}

type mockDirectory struct {
	doctors    map[int64]*clinicDatamodel.Doctor
	patients   map[int64]*clinicDatamodel.Patient
	treatments map[int64]*clinicDatamodel.Treatment
}

func (m *mockDirectory) GetDoctorByID(id int64) (*clinicDatamodel.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, internal.ErrDoctorNotFound
	}
	return d, nil
}

func (m *mockDirectory) GetPatientByID(id int64) (*clinicDatamodel.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, internal.ErrPatientNotFound
	}
	return p, nil
}

func (m *mockDirectory) GetTreatmentByID(id int64) (*clinicDatamodel.Treatment, error) {
	t, ok := m.treatments[id]
	if !ok {
		return nil, internal.ErrTreatmentNotFound
	}
	return t, nil
}

type mockFileStore struct {
	files       map[string][]byte
	storeError  error
	deleteCalls []string
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{files: make(map[string][]byte)}
}

func (m *mockFileStore) Store(data []byte, namePrefix, originalName string) (string, error) {
	if m.storeError != nil {
		return "", m.storeError
	}
	name := namePrefix + "_" + originalName
	m.files[name] = data
	return name, nil
}

func (m *mockFileStore) Load(storedName string) ([]byte, error) {
	data, ok := m.files[storedName]
	if !ok {
		return nil, errors.New("file not found")
	}
	return data, nil
}

func (m *mockFileStore) Delete(storedName string) error {
	m.deleteCalls = append(m.deleteCalls, storedName)
	delete(m.files, storedName)
	return nil
}

type mockPublisher struct {
	published []events.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) {
	m.published = append(m.published, event)
}

var _ = Describe("PaymentService", func() {
	var (
		service   *payment.Service
		repo      *mockRepository
		apts      *mockAppointmentStore
		directory *mockDirectory
		files     *mockFileStore
		publisher *mockPublisher

		admin       *auth.Actor
		patient     *auth.Actor
		clinicCfg   internal.ClinicConfig
		bankCfg     internal.BankConfig
		aptID       int64
		validUpload payment.ReceiptUpload
	)

	BeforeEach(func() {
		repo = newMockRepository()
		apts = &mockAppointmentStore{appointments: make(map[int64]*appointment.Appointment), repo: repo}
		directory = &mockDirectory{
			doctors:    map[int64]*clinicDatamodel.Doctor{2: {ID: 2, FullName: "Dr. Silva", ConsultationFee: 2000}},
			patients:   map[int64]*clinicDatamodel.Patient{1: {ID: 1, FullName: "Nimal Perera", NIC: "902541230V"}},
			treatments: map[int64]*clinicDatamodel.Treatment{3: {ID: 3, Name: "Panchakarma", Cost: 4500}},
		}
		files = newMockFileStore()
		publisher = &mockPublisher{}
		clinicCfg = internal.ClinicConfig{ClinicCharge: 500.0, SlotDuration: 15 * time.Minute}
		bankCfg = internal.BankConfig{
			BankName:      "Commercial Bank",
			AccountName:   "Ayur-Link Ayurvedic Clinic",
			AccountNumber: "8560123456789",
			Branch:        "Colombo 07",
			SwiftCode:     "CCEYLKLX",
		}
		testLog := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = payment.NewService(repo, apts, directory, files, publisher, clinicCfg, bankCfg, testLog)

		admin = &auth.Actor{ID: 100, Email: "admin@clinic.lk", Role: clinicDatamodel.RoleAdmin}
		patient = &auth.Actor{ID: 1, Email: "patient@mail.com", Role: clinicDatamodel.RolePatient}

		aptID = int64(10)
		apts.appointments[aptID] = &appointment.Appointment{
			ID:              aptID,
			PatientID:       1,
			DoctorID:        2,
			TreatmentID:     3,
			AppointmentDate: time.Now().AddDate(0, 0, 7),
			AppointmentTime: "09:00",
			Status:          appointmentDatamodel.StatusScheduled,
			TicketNumber:    "APT1001",
		}

		validUpload = payment.ReceiptUpload{
			FileName:    "slip.jpg",
			ContentType: "image/jpeg",
			Size:        1024,
			Data:        []byte("fake image bytes"),
		}
	})

	Describe("Breakdown", func() {
		It("itemizes doctor fee, treatment fee and the fixed clinic charge", func() {
			breakdown, err := service.Breakdown(aptID, patient)

			Expect(err).ToNot(HaveOccurred())
			Expect(breakdown.DoctorFee).To(Equal(2000.0))
			Expect(breakdown.TreatmentFee).To(Equal(4500.0))
			Expect(breakdown.ClinicCharge).To(Equal(500.0))
			Expect(breakdown.TotalAmount).To(Equal(7000.0))
		})
	})

	Describe("BankDetails", func() {
		It("returns the configured transfer target", func() {
			details := service.BankDetails()

			Expect(details.BankName).To(Equal("Commercial Bank"))
			Expect(details.AccountNumber).To(Equal("8560123456789"))
			Expect(details.SwiftCode).To(Equal("CCEYLKLX"))
		})
	})

	Describe("PayCash", func() {
		It("records the payment as SUCCESS and confirms the appointment", func() {
			p, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(paymentDatamodel.StatusSuccess))
			Expect(p.PaymentMethod).To(Equal(paymentDatamodel.MethodCash))
			Expect(p.TransactionID).To(HavePrefix("TXN"))
			Expect(p.ReceiptNumber).To(HavePrefix("RCP"))
			Expect(p.TotalAmount).To(Equal(7000.0))
			Expect(repo.appointmentStatus[aptID]).To(Equal(appointmentDatamodel.StatusConfirmed))
		})

		It("writes both ledger rows with the doctor's net earning", func() {
			p, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)

			Expect(err).ToNot(HaveOccurred())
			earning := repo.earnings[p.ID]
			Expect(earning).ToNot(BeNil())
			Expect(earning.NetEarning).To(Equal(6500.0))
			Expect(earning.AdminCharge).To(Equal(500.0))
			Expect(earning.Status).To(Equal(earningDatamodel.EarningStatusPending))

			charge := repo.charges[p.ID]
			Expect(charge).ToNot(BeNil())
			Expect(charge.ClinicCharge).To(Equal(500.0))
			Expect(charge.DoctorName).To(Equal("Dr. Silva"))
			Expect(charge.PatientName).To(Equal("Nimal Perera"))
			Expect(charge.TreatmentName).To(Equal("Panchakarma"))
			Expect(charge.Status).To(Equal(earningDatamodel.ChargeStatusCollected))
		})

		It("refuses non-admin callers", func() {
			_, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, patient)

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})

		It("refuses a cancelled appointment", func() {
			apts.appointments[aptID].Status = appointmentDatamodel.StatusCancelled

			_, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInvalidState))
		})

		It("refuses a second payment while one is active", func() {
			_, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)
			Expect(err).ToNot(HaveOccurred())

			_, err = service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)

			Expect(err).To(Equal(internal.ErrPaymentAlreadyExists))
		})
	})

	Describe("UploadReceipt", func() {
		It("stores the file and parks the payment in PENDING_VERIFICATION", func() {
			p, err := service.UploadReceipt(aptID, validUpload, patient)

			Expect(err).ToNot(HaveOccurred())
			Expect(p.Status).To(Equal(paymentDatamodel.StatusPendingVerification))
			Expect(p.PaymentMethod).To(Equal(paymentDatamodel.MethodReceiptUpload))
			Expect(p.ReceiptFilePath).ToNot(BeNil())
			Expect(files.files).To(HaveKey(*p.ReceiptFilePath))
			Expect(repo.appointmentStatus[aptID]).To(Equal(appointmentDatamodel.StatusPending))
		})

		It("does not write ledger rows before verification", func() {
			p, err := service.UploadReceipt(aptID, validUpload, patient)

			Expect(err).ToNot(HaveOccurred())
			Expect(repo.earnings).ToNot(HaveKey(p.ID))
		})

		It("rejects an executable content type", func() {
			validUpload.ContentType = "application/x-msdownload"

			_, err := service.UploadReceipt(aptID, validUpload, patient)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects an oversized file", func() {
			validUpload.Size = payment.MaxReceiptSize + 1

			_, err := service.UploadReceipt(aptID, validUpload, patient)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("refuses a foreign patient", func() {
			other := &auth.Actor{ID: 99, Email: "other@mail.com", Role: clinicDatamodel.RolePatient}

			_, err := service.UploadReceipt(aptID, validUpload, other)

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})

		It("cleans up the stored file when the insert fails", func() {
			repo.createError = errors.New("insert failed")

			_, err := service.UploadReceipt(aptID, validUpload, patient)

			Expect(err).To(HaveOccurred())
			Expect(files.deleteCalls).To(HaveLen(1))
		})
	})

	Describe("ApproveVerification", func() {
		var paymentID int64

		BeforeEach(func() {
			p, err := service.UploadReceipt(aptID, validUpload, patient)
			Expect(err).ToNot(HaveOccurred())
			paymentID = p.ID
		})

		It("moves the payment to SUCCESS, confirms the appointment and writes the ledger", func() {
			err := service.ApproveVerification(paymentID, admin)

			Expect(err).ToNot(HaveOccurred())
			stored, _ := repo.GetByID(paymentID)
			Expect(stored.Status).To(Equal(paymentDatamodel.StatusSuccess))
			Expect(stored.ReceiptVerified).To(BeTrue())
			Expect(*stored.VerifiedBy).To(Equal("admin@clinic.lk"))
			Expect(repo.appointmentStatus[aptID]).To(Equal(appointmentDatamodel.StatusConfirmed))
			Expect(repo.earnings[paymentID]).ToNot(BeNil())
			Expect(repo.earnings[paymentID].NetEarning).To(Equal(6500.0))
		})

		It("publishes a verified event", func() {
			err := service.ApproveVerification(paymentID, admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].EventType()).To(Equal(events.EventTypePaymentVerified))
		})

		It("refuses a payment that is not awaiting verification", func() {
			Expect(service.ApproveVerification(paymentID, admin)).To(Succeed())

			err := service.ApproveVerification(paymentID, admin)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInvalidState))
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidPaymentStatus))
		})

		It("refuses non-admin callers", func() {
			err := service.ApproveVerification(paymentID, patient)

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("RejectVerification", func() {
		var paymentID int64

		BeforeEach(func() {
			p, err := service.UploadReceipt(aptID, validUpload, patient)
			Expect(err).ToNot(HaveOccurred())
			paymentID = p.ID
		})

		It("marks the payment REJECTED and records the reason", func() {
			err := service.RejectVerification(paymentID, payment.RejectPaymentDTO{Reason: "amount mismatch"}, admin)

			Expect(err).ToNot(HaveOccurred())
			stored, _ := repo.GetByID(paymentID)
			Expect(stored.Status).To(Equal(paymentDatamodel.StatusRejected))
			Expect(*stored.PaymentNotes).To(ContainSubstring("REJECTED by admin@clinic.lk"))
			Expect(*stored.PaymentNotes).To(ContainSubstring("amount mismatch"))
			Expect(repo.appointmentStatus[aptID]).To(Equal(appointmentDatamodel.StatusPending))
		})

		It("requires a reason", func() {
			err := service.RejectVerification(paymentID, payment.RejectPaymentDTO{}, admin)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("frees the appointment for a new payment attempt", func() {
			err := service.RejectVerification(paymentID, payment.RejectPaymentDTO{Reason: "unreadable slip"}, admin)
			Expect(err).ToNot(HaveOccurred())

			p, err := service.UploadReceipt(aptID, validUpload, patient)

			Expect(err).ToNot(HaveOccurred())
			Expect(p.ID).ToNot(Equal(paymentID))
			Expect(p.Status).To(Equal(paymentDatamodel.StatusPendingVerification))
		})

		It("publishes a rejected event", func() {
			err := service.RejectVerification(paymentID, payment.RejectPaymentDTO{Reason: "amount mismatch"}, admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].EventType()).To(Equal(events.EventTypePaymentRejected))
		})
	})

	Describe("Refund", func() {
		var paymentID int64

		BeforeEach(func() {
			p, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)
			Expect(err).ToNot(HaveOccurred())
			paymentID = p.ID
		})

		It("refunds the full amount, cancels the appointment and reverses the ledger", func() {
			err := service.Refund(paymentID, payment.RefundPaymentDTO{Reason: "patient request"}, admin)

			Expect(err).ToNot(HaveOccurred())
			stored, _ := repo.GetByID(paymentID)
			Expect(stored.Status).To(Equal(paymentDatamodel.StatusRefunded))
			Expect(*stored.RefundAmount).To(Equal(7000.0))
			Expect(*stored.RefundReason).To(Equal("patient request"))
			Expect(repo.appointmentStatus[aptID]).To(Equal(appointmentDatamodel.StatusCancelled))
			Expect(repo.earnings[paymentID].Status).To(Equal(earningDatamodel.EarningStatusCancelled))
			Expect(repo.charges[paymentID].Status).To(Equal(earningDatamodel.ChargeStatusRefunded))
		})

		It("publishes a refunded event", func() {
			err := service.Refund(paymentID, payment.RefundPaymentDTO{Reason: "patient request"}, admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(publisher.published).To(HaveLen(1))
			Expect(publisher.published[0].EventType()).To(Equal(events.EventTypePaymentRefunded))
		})

		It("refuses to refund twice", func() {
			Expect(service.Refund(paymentID, payment.RefundPaymentDTO{Reason: "patient request"}, admin)).To(Succeed())

			err := service.Refund(paymentID, payment.RefundPaymentDTO{Reason: "again"}, admin)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInvalidState))
		})

		It("refuses to refund a payment that never succeeded", func() {
			upload, err := service.UploadReceipt(99, validUpload, admin)
			Expect(err).To(HaveOccurred()) // appointment 99 does not exist
			Expect(upload).To(BeNil())

			// park a pending-verification payment on a fresh appointment
			apts.appointments[11] = &appointment.Appointment{
				ID: 11, PatientID: 1, DoctorID: 2, TreatmentID: 3,
				Status: appointmentDatamodel.StatusScheduled,
			}
			pending, err := service.UploadReceipt(11, validUpload, patient)
			Expect(err).ToNot(HaveOccurred())

			err = service.Refund(pending.ID, payment.RefundPaymentDTO{Reason: "nope"}, admin)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInvalidState))
		})
	})

	Describe("DownloadReceipt", func() {
		var paymentID int64

		BeforeEach(func() {
			p, err := service.UploadReceipt(aptID, validUpload, patient)
			Expect(err).ToNot(HaveOccurred())
			paymentID = p.ID
		})

		It("returns the stored slip to the owning patient", func() {
			name, data, err := service.DownloadReceipt(paymentID, patient)

			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(Equal("slip.jpg"))
			Expect(data).To(Equal([]byte("fake image bytes")))
		})

		It("refuses a foreign patient", func() {
			other := &auth.Actor{ID: 99, Email: "other@mail.com", Role: clinicDatamodel.RolePatient}

			_, _, err := service.DownloadReceipt(paymentID, other)

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})

		It("reports not-found for a payment with no stored file", func() {
			apts.appointments[12] = &appointment.Appointment{
				ID: 12, PatientID: 1, DoctorID: 2, TreatmentID: 3,
				Status: appointmentDatamodel.StatusScheduled,
			}
			cash, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: 12}, admin)
			Expect(err).ToNot(HaveOccurred())

			_, _, err = service.DownloadReceipt(cash.ID, admin)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeNotFound))
		})
	})

	Describe("Delete", func() {
		It("deletes a rejected payment and cleans up its receipt file", func() {
			p, err := service.UploadReceipt(aptID, validUpload, patient)
			Expect(err).ToNot(HaveOccurred())
			Expect(service.RejectVerification(p.ID, payment.RejectPaymentDTO{Reason: "bad slip"}, admin)).To(Succeed())

			err = service.Delete(p.ID, admin)

			Expect(err).ToNot(HaveOccurred())
			_, getErr := repo.GetByID(p.ID)
			Expect(getErr).To(Equal(internal.ErrPaymentNotFound))
			Expect(files.deleteCalls).To(ContainElement("receipt_slip.jpg"))
		})

		It("refuses to delete a successful payment", func() {
			p, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)
			Expect(err).ToNot(HaveOccurred())

			err = service.Delete(p.ID, admin)

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInvalidState))
		})
	})

	Describe("Summaries", func() {
		BeforeEach(func() {
			_, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)
			Expect(err).ToNot(HaveOccurred())
		})

		It("aggregates today's collections in the daily summary", func() {
			summary, err := service.DailySummary(time.Now(), admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(summary.TotalCollected).To(Equal(7000.0))
			Expect(summary.CashTotal).To(Equal(7000.0))
			Expect(summary.PaymentCount).To(Equal(1))
		})

		It("counts refunds separately", func() {
			p, _ := repo.GetActiveByAppointment(aptID)
			Expect(service.Refund(p.ID, payment.RefundPaymentDTO{Reason: "r"}, admin)).To(Succeed())

			summary, err := service.DailySummary(time.Now(), admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(summary.TotalCollected).To(Equal(0.0))
			Expect(summary.TotalRefunded).To(Equal(7000.0))
			Expect(summary.RefundCount).To(Equal(1))
		})

		It("restricts summaries to admins", func() {
			_, err := service.DailySummary(time.Now(), patient)

			Expect(err).To(Equal(internal.ErrUnauthorizedAccess))
		})

		It("reports statistics across statuses", func() {
			stats, err := service.Statistics(admin)

			Expect(err).ToNot(HaveOccurred())
			Expect(stats.SuccessCount).To(Equal(1))
			Expect(stats.TotalCollected).To(Equal(7000.0))
		})
	})

	Describe("ExportCSV", func() {
		It("renders a header plus one line per payment", func() {
			_, err := service.PayCash(payment.CashPaymentDTO{AppointmentID: aptID}, admin)
			Expect(err).ToNot(HaveOccurred())

			csv, err := service.ExportCSV(time.Now().AddDate(0, 0, -1), time.Now().AddDate(0, 0, 1), admin)

			Expect(err).ToNot(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(csv), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(Equal("Receipt,Transaction,Patient,NIC,Doctor,Treatment,Amount,Method,Status,Date"))
			Expect(lines[1]).To(ContainSubstring("Nimal Perera"))
			Expect(lines[1]).To(ContainSubstring("7000.00"))
		})
	})
})
