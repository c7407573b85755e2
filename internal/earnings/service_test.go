package earnings_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/auth"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
	earningDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/earning"
	"github.com/ayurlink/clinic-management/internal/core/events"
	"github.com/ayurlink/clinic-management/internal/earnings"
)

func TestEarnings(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Earnings Suite")
}

type mockRepository struct {
	earnings   map[int64]*earnings.DoctorEarning
	charges    []*earnings.AdminCharge
	unledgered []earnings.UnledgeredPayment

	ledgerInserts   []earnings.LedgerEntries
	insertError     error
	settleGuardMiss bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		earnings: make(map[int64]*earnings.DoctorEarning),
	}
}

func (m *mockRepository) GetEarningByID(id int64) (*earnings.DoctorEarning, error) {
	e, ok := m.earnings[id]
	if !ok {
		return nil, internal.ErrEarningNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *mockRepository) ListByDoctor(doctorID int64) ([]*earnings.DoctorEarning, error) {
	var result []*earnings.DoctorEarning
	for _, e := range m.earnings {
		if e.DoctorID == doctorID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockRepository) ListByDoctorAndRange(doctorID int64, start, end time.Time) ([]*earnings.DoctorEarning, error) {
	var result []*earnings.DoctorEarning
	for _, e := range m.earnings {
		if e.DoctorID == doctorID && !e.PaymentDate.Before(start) && e.PaymentDate.Before(end) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockRepository) ListByStatus(status string) ([]*earnings.DoctorEarning, error) {
	var result []*earnings.DoctorEarning
	for _, e := range m.earnings {
		if e.Status == status {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockRepository) SettleIf(id int64, reference string, notes *string, settledAt time.Time) (bool, error) {
	if m.settleGuardMiss {
		return false, nil
	}
	e, ok := m.earnings[id]
	if !ok || e.Status != earningDatamodel.EarningStatusPending {
		return false, nil
	}
	e.Status = earningDatamodel.EarningStatusSettled
	e.SettlementDate = &settledAt
	e.SettlementReference = &reference
	if notes != nil {
		e.Notes = notes
	}
	return true, nil
}

func (m *mockRepository) InsertLedger(ledger earnings.LedgerEntries) error {
	if m.insertError != nil {
		return m.insertError
	}
	m.ledgerInserts = append(m.ledgerInserts, ledger)
	return nil
}

func (m *mockRepository) ListCharges(start, end time.Time) ([]*earnings.AdminCharge, error) {
	var result []*earnings.AdminCharge
	for _, c := range m.charges {
		if !c.ChargeDate.Before(start) && c.ChargeDate.Before(end) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockRepository) ListAllCharges() ([]*earnings.AdminCharge, error) {
	return m.charges, nil
}

func (m *mockRepository) FindUnledgeredPayments() ([]earnings.UnledgeredPayment, error) {
	return m.unledgered, nil
}

type mockPublisher struct {
	published []events.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) {
	m.published = append(m.published, event)
}

var _ = Describe("Earnings Service", func() {
	var (
		repo      *mockRepository
		publisher *mockPublisher
		service   *earnings.Service

		admin  *auth.Actor
		doctor *auth.Actor
	)

	BeforeEach(func() {
		repo = newMockRepository()
		publisher = &mockPublisher{}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		service = earnings.NewService(repo, publisher, logger)

		admin = &auth.Actor{ID: 100, Email: "admin@clinic.lk", Role: clinicDatamodel.RoleAdmin}
		doctor = &auth.Actor{ID: 2, Email: "doctor@clinic.lk", Role: clinicDatamodel.RoleDoctor}
	})

	seedEarning := func(id int64, doctorID int64, net float64, status string, paymentDate time.Time) {
		repo.earnings[id] = &earnings.DoctorEarning{
			ID:          id,
			DoctorID:    doctorID,
			PaymentID:   id,
			GrossAmount: net + 500,
			AdminCharge: 500,
			NetEarning:  net,
			Status:      status,
			PaymentDate: paymentDate,
		}
	}

	Describe("ListForDoctor", func() {
		It("lets a doctor see their own earnings", func() {
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, time.Now())
			seedEarning(2, 99, 6500, earningDatamodel.EarningStatusPending, time.Now())

			list, err := service.ListForDoctor(doctor.ID, doctor)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].DoctorID).To(Equal(doctor.ID))
		})

		It("refuses a doctor looking at another doctor's earnings", func() {
			_, err := service.ListForDoctor(99, doctor)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("lets an admin see any doctor's earnings", func() {
			seedEarning(1, 99, 6500, earningDatamodel.EarningStatusPending, time.Now())

			list, err := service.ListForDoctor(99, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
		})
	})

	Describe("Summary", func() {
		It("buckets earnings into today, this week and this month", func() {
			now := time.Now()
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, now)
			seedEarning(2, doctor.ID, 3000, earningDatamodel.EarningStatusSettled, now.AddDate(0, -2, 0))

			summary, err := service.Summary(doctor.ID, doctor)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Today).To(Equal(6500.0))
			Expect(summary.TotalEarned).To(Equal(9500.0))
			Expect(summary.PendingTotal).To(Equal(6500.0))
			Expect(summary.PendingCount).To(Equal(1))
			Expect(summary.SettledTotal).To(Equal(3000.0))
		})

		It("excludes refund-cancelled earnings from every bucket", func() {
			now := time.Now()
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, now)
			seedEarning(2, doctor.ID, 6500, earningDatamodel.EarningStatusCancelled, now)

			summary, err := service.Summary(doctor.ID, doctor)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Today).To(Equal(6500.0))
			Expect(summary.TotalEarned).To(Equal(6500.0))
			Expect(summary.PendingCount).To(Equal(1))
		})

		It("counts an earning from earlier this month in the month bucket only", func() {
			now := time.Now()
			if now.Day() < 3 {
				Skip("needs an earlier day in the current month")
			}
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, now.AddDate(0, 0, -(now.Day()-1)))

			summary, err := service.Summary(doctor.ID, doctor)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Today).To(Equal(0.0))
			Expect(summary.ThisMonth).To(Equal(6500.0))
		})
	})

	Describe("Settle", func() {
		const ref = "BANK-REF-001"

		It("settles a pending earning and publishes the event", func() {
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, time.Now())

			err := service.Settle(1, earnings.SettleEarningDTO{Reference: ref}, admin)
			Expect(err).NotTo(HaveOccurred())

			stored := repo.earnings[1]
			Expect(stored.Status).To(Equal(earningDatamodel.EarningStatusSettled))
			Expect(stored.SettlementReference).NotTo(BeNil())
			Expect(*stored.SettlementReference).To(Equal(ref))
			Expect(stored.SettlementDate).NotTo(BeNil())

			Expect(publisher.published).To(HaveLen(1))
			settled, ok := publisher.published[0].(*events.EarningSettledEvent)
			Expect(ok).To(BeTrue())
			Expect(settled.EarningID).To(Equal(int64(1)))
			Expect(settled.Amount).To(Equal(6500.0))
		})

		It("refuses to settle the same earning twice", func() {
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, time.Now())
			Expect(service.Settle(1, earnings.SettleEarningDTO{Reference: ref}, admin)).To(Succeed())

			firstDate := *repo.earnings[1].SettlementDate
			err := service.Settle(1, earnings.SettleEarningDTO{Reference: "BANK-REF-2"}, admin)

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidEarningStatus))
			Expect(*repo.earnings[1].SettlementReference).To(Equal(ref))
			Expect(*repo.earnings[1].SettlementDate).To(Equal(firstDate))
		})

		It("treats a lost settlement race as an invalid state", func() {
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, time.Now())
			// a concurrent settle lands between the read and the guarded update
			repo.settleGuardMiss = true

			err := service.Settle(1, earnings.SettleEarningDTO{Reference: ref}, admin)
			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidEarningStatus))
			Expect(publisher.published).To(BeEmpty())
		})

		It("requires a settlement reference", func() {
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, time.Now())

			err := service.Settle(1, earnings.SettleEarningDTO{}, admin)
			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("refuses non-admins", func() {
			seedEarning(1, doctor.ID, 6500, earningDatamodel.EarningStatusPending, time.Now())

			err := service.Settle(1, earnings.SettleEarningDTO{Reference: ref}, doctor)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})

		It("returns not found for an unknown earning", func() {
			err := service.Settle(42, earnings.SettleEarningDTO{Reference: ref}, admin)
			Expect(err).To(MatchError(internal.ErrEarningNotFound))
		})
	})

	Describe("ListPending", func() {
		It("returns pending earnings across doctors for admins", func() {
			seedEarning(1, 2, 6500, earningDatamodel.EarningStatusPending, time.Now())
			seedEarning(2, 3, 4000, earningDatamodel.EarningStatusPending, time.Now())
			seedEarning(3, 2, 3000, earningDatamodel.EarningStatusSettled, time.Now())

			list, err := service.ListPending(admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
		})

		It("refuses doctors", func() {
			_, err := service.ListPending(doctor)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("ChargesSummary", func() {
		It("splits collected from refunded charges", func() {
			repo.charges = []*earnings.AdminCharge{
				{ID: 1, ClinicCharge: 500, Status: earningDatamodel.ChargeStatusCollected, ChargeDate: time.Now()},
				{ID: 2, ClinicCharge: 500, Status: earningDatamodel.ChargeStatusCollected, ChargeDate: time.Now()},
				{ID: 3, ClinicCharge: 500, Status: earningDatamodel.ChargeStatusRefunded, ChargeDate: time.Now()},
			}

			summary, err := service.ChargesSummary(admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.CollectedTotal).To(Equal(1000.0))
			Expect(summary.RefundedTotal).To(Equal(500.0))
			Expect(summary.ChargeCount).To(Equal(3))
		})

		It("refuses non-admins", func() {
			_, err := service.ChargesSummary(doctor)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})
	})

	Describe("Reconcile", func() {
		It("writes ledger rows for successful payments that lack them", func() {
			repo.unledgered = []earnings.UnledgeredPayment{
				{
					PaymentID:     7,
					DoctorID:      2,
					DoctorFee:     2000,
					TreatmentFee:  4500,
					ClinicCharges: 500,
					TotalAmount:   7000,
					PaymentDate:   time.Now(),
					DoctorName:    "Dr. Kamala Silva",
					PatientName:   "Nimal Perera",
					TreatmentName: "Panchakarma Therapy",
				},
			}

			repaired, err := service.Reconcile(admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(Equal(1))
			Expect(repo.ledgerInserts).To(HaveLen(1))

			inserted := repo.ledgerInserts[0]
			Expect(inserted.Earning.PaymentID).To(Equal(int64(7)))
			Expect(inserted.Earning.NetEarning).To(Equal(6500.0))
			Expect(inserted.Earning.Status).To(Equal(earningDatamodel.EarningStatusPending))
			Expect(inserted.Charge.PatientName).To(Equal("Nimal Perera"))
		})

		It("keeps going when one repair fails", func() {
			repo.unledgered = []earnings.UnledgeredPayment{
				{PaymentID: 7, DoctorID: 2, TotalAmount: 7000},
			}
			repo.insertError = errors.New("duplicate")

			repaired, err := service.Reconcile(admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(Equal(0))
		})

		It("reports zero when the ledger is complete", func() {
			repaired, err := service.Reconcile(admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(repaired).To(Equal(0))
		})

		It("refuses non-admins", func() {
			_, err := service.Reconcile(doctor)
			Expect(err).To(MatchError(internal.ErrUnauthorizedAccess))
		})
	})
})
