package earnings

import (
	"context"
	"log/slog"
	"time"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/auth"
	earningDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/earning"
	"github.com/ayurlink/clinic-management/internal/core/events"
)

// Repository defines the data access methods for the earnings ledger.
type Repository interface {
	GetEarningByID(id int64) (*DoctorEarning, error)
	ListByDoctor(doctorID int64) ([]*DoctorEarning, error)
	ListByDoctorAndRange(doctorID int64, start, end time.Time) ([]*DoctorEarning, error)
	ListByStatus(status string) ([]*DoctorEarning, error)
	// SettleIf marks the earning settled only while it is still pending.
	// Returns false when the guard misses.
	SettleIf(id int64, reference string, notes *string, settledAt time.Time) (bool, error)
	// InsertLedger writes both ledger rows; the unique index on payment_id
	// rejects a second ledger for the same payment.
	InsertLedger(ledger LedgerEntries) error
	ListCharges(start, end time.Time) ([]*AdminCharge, error)
	ListAllCharges() ([]*AdminCharge, error)
	// FindUnledgeredPayments returns successful payments that are missing
	// their ledger rows, with the party names joined in.
	FindUnledgeredPayments() ([]UnledgeredPayment, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// UnledgeredPayment is a successful payment with no earning row, joined
// with the snapshot names a repair needs.
type UnledgeredPayment struct {
	PaymentID     int64
	DoctorID      int64
	DoctorFee     float64
	TreatmentFee  float64
	ClinicCharges float64
	TotalAmount   float64
	PaymentDate   time.Time
	DoctorName    string
	PatientName   string
	TreatmentName string
}

type Service struct {
	repo   Repository
	events EventPublisher
	logger *slog.Logger
}

func NewService(repo Repository, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: publisher,
		logger: logger,
	}
}

// ListForDoctor returns a doctor's full earning history, newest first.
// Doctors see only their own; admins see anyone's.
func (s *Service) ListForDoctor(doctorID int64, actor *auth.Actor) ([]*DoctorEarning, error) {
	if !s.canViewDoctor(doctorID, actor) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByDoctor(doctorID)
}

// Summary aggregates a doctor's earnings for the dashboard. Cancelled
// (refunded) earnings are excluded from every bucket.
func (s *Service) Summary(doctorID int64, actor *auth.Actor) (*EarningsSummaryDTO, error) {
	if !s.canViewDoctor(doctorID, actor) {
		return nil, internal.ErrUnauthorizedAccess
	}

	all, err := s.repo.ListByDoctor(doctorID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := dayStart.AddDate(0, 0, -int(now.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	summary := &EarningsSummaryDTO{DoctorID: doctorID}
	for _, e := range all {
		if e.Status == earningDatamodel.EarningStatusCancelled {
			continue
		}
		summary.TotalEarned += e.NetEarning
		if !e.PaymentDate.Before(dayStart) {
			summary.Today += e.NetEarning
		}
		if !e.PaymentDate.Before(weekStart) {
			summary.ThisWeek += e.NetEarning
		}
		if !e.PaymentDate.Before(monthStart) {
			summary.ThisMonth += e.NetEarning
		}
		switch e.Status {
		case earningDatamodel.EarningStatusPending:
			summary.PendingTotal += e.NetEarning
			summary.PendingCount++
		case earningDatamodel.EarningStatusSettled:
			summary.SettledTotal += e.NetEarning
		}
	}
	return summary, nil
}

func (s *Service) ListByRange(doctorID int64, start, end time.Time, actor *auth.Actor) ([]*DoctorEarning, error) {
	if !s.canViewDoctor(doctorID, actor) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByDoctorAndRange(doctorID, start, end)
}

// ListPending lists earnings awaiting payout across all doctors. Admin only.
func (s *Service) ListPending(actor *auth.Actor) ([]*DoctorEarning, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByStatus(earningDatamodel.EarningStatusPending)
}

// Settle pays an earning out exactly once. A second settle attempt fails the
// guard and leaves the original settlement untouched. Admin only.
func (s *Service) Settle(earningID int64, dto SettleEarningDTO, actor *auth.Actor) error {
	if err := dto.Validate(); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return internal.ErrUnauthorizedAccess
	}

	earning, err := s.repo.GetEarningByID(earningID)
	if err != nil {
		return err
	}
	if !earning.CanBeSettled() {
		return internal.NewInvalidStateError(
			earningDatamodel.EarningStatusPending, earning.Status,
			internal.ErrCodeInvalidEarningStatus)
	}

	now := time.Now()
	ok, err := s.repo.SettleIf(earningID, dto.Reference, dto.Notes, now)
	if err != nil {
		s.logger.Error("failed to settle earning", "error", err, "earning_id", earningID)
		return err
	}
	if !ok {
		return internal.NewInvalidStateError(
			earningDatamodel.EarningStatusPending, "changed concurrently",
			internal.ErrCodeInvalidEarningStatus)
	}

	s.events.Publish(context.Background(),
		events.NewEarningSettledEvent(earningID, earning.DoctorID, earning.NetEarning, dto.Reference))

	s.logger.Info("earning settled",
		"earning_id", earningID,
		"doctor_id", earning.DoctorID,
		"net_earning", earning.NetEarning,
		"reference", dto.Reference)

	return nil
}

// ListCharges returns the clinic's side of the ledger for a range. Admin only.
func (s *Service) ListCharges(start, end time.Time, actor *auth.Actor) ([]*AdminCharge, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListCharges(start, end)
}

// ChargesSummary rolls the clinic charges up across all time. Admin only.
func (s *Service) ChargesSummary(actor *auth.Actor) (*ChargesSummaryDTO, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}

	charges, err := s.repo.ListAllCharges()
	if err != nil {
		return nil, err
	}

	summary := &ChargesSummaryDTO{ChargeCount: len(charges)}
	for _, c := range charges {
		switch c.Status {
		case earningDatamodel.ChargeStatusCollected:
			summary.CollectedTotal += c.ClinicCharge
		case earningDatamodel.ChargeStatusRefunded:
			summary.RefundedTotal += c.ClinicCharge
		}
	}
	return summary, nil
}

// Reconcile repairs ledger gaps: any successful payment without its earning
// row gets one, built from the frozen fee split. Returns how many rows were
// repaired. Admin only.
func (s *Service) Reconcile(actor *auth.Actor) (int, error) {
	if !actor.IsAdmin() {
		return 0, internal.ErrUnauthorizedAccess
	}

	missing, err := s.repo.FindUnledgeredPayments()
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, up := range missing {
		ledger := LedgerEntries{
			Earning: &earningDatamodel.DoctorEarning{
				DoctorID:     up.DoctorID,
				PaymentID:    up.PaymentID,
				GrossAmount:  up.TotalAmount,
				AdminCharge:  up.ClinicCharges,
				DoctorFee:    up.DoctorFee,
				TreatmentFee: up.TreatmentFee,
				NetEarning:   up.DoctorFee + up.TreatmentFee,
				Status:       earningDatamodel.EarningStatusPending,
				PaymentDate:  up.PaymentDate,
			},
			Charge: &earningDatamodel.AdminCharge{
				PaymentID:          up.PaymentID,
				ClinicCharge:       up.ClinicCharges,
				TotalPaymentAmount: up.TotalAmount,
				DoctorEarning:      up.DoctorFee + up.TreatmentFee,
				DoctorName:         up.DoctorName,
				PatientName:        up.PatientName,
				TreatmentName:      up.TreatmentName,
				Status:             earningDatamodel.ChargeStatusCollected,
				ChargeDate:         up.PaymentDate,
			},
		}
		if err := s.repo.InsertLedger(ledger); err != nil {
			s.logger.Error("failed to repair ledger for payment",
				"error", err, "payment_id", up.PaymentID)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		s.logger.Info("ledger reconciled", "repaired", repaired)
	}
	return repaired, nil
}

func (s *Service) canViewDoctor(doctorID int64, actor *auth.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.IsDoctor() && actor.ID == doctorID
}
