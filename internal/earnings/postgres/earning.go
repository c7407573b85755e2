package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal"
	earningDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/earning"
	"github.com/ayurlink/clinic-management/internal/earnings"
)

const pgUniqueViolation = "23505"

// EarningRepository implements earnings.Repository using GORM.
type EarningRepository struct {
	db *gorm.DB
}

func NewEarningRepository(db *gorm.DB) *EarningRepository {
	return &EarningRepository{db: db}
}

func (r *EarningRepository) GetEarningByID(id int64) (*earnings.DoctorEarning, error) {
	var model earningDatamodel.DoctorEarning
	err := r.db.Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrEarningNotFound
		}
		return nil, err
	}
	return earnings.EarningFromDataModel(&model), nil
}

func (r *EarningRepository) ListByDoctor(doctorID int64) ([]*earnings.DoctorEarning, error) {
	var models []*earningDatamodel.DoctorEarning
	err := r.db.Where("doctor_id = ?", doctorID).
		Order("payment_date DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return earnings.EarningsFromDataModelSlice(models), nil
}

func (r *EarningRepository) ListByDoctorAndRange(doctorID int64, start, end time.Time) ([]*earnings.DoctorEarning, error) {
	var models []*earningDatamodel.DoctorEarning
	err := r.db.Where("doctor_id = ? AND payment_date >= ? AND payment_date < ?", doctorID, start, end).
		Order("payment_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return earnings.EarningsFromDataModelSlice(models), nil
}

func (r *EarningRepository) ListByStatus(status string) ([]*earnings.DoctorEarning, error) {
	var models []*earningDatamodel.DoctorEarning
	err := r.db.Where("status = ?", status).
		Order("payment_date ASC"). // oldest pending first, FIFO payouts
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return earnings.EarningsFromDataModelSlice(models), nil
}

// SettleIf is the optimistic settlement guard: the UPDATE only lands while
// the earning is still pending, so a double payout cannot happen.
func (r *EarningRepository) SettleIf(id int64, reference string, notes *string, settledAt time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":               earningDatamodel.EarningStatusSettled,
		"settlement_date":      settledAt,
		"settlement_reference": reference,
		"updated_at":           time.Now(),
	}
	if notes != nil {
		updates["notes"] = *notes
	}

	result := r.db.Model(&earningDatamodel.DoctorEarning{}).
		Where("id = ? AND status = ?", id, earningDatamodel.EarningStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *EarningRepository) InsertLedger(ledger earnings.LedgerEntries) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ledger.Earning).Error; err != nil {
			return err
		}
		return tx.Create(ledger.Charge).Error
	})
	if isUniqueViolation(err) {
		return internal.NewConflictError("ledger rows already exist for this payment", internal.ErrCodeDuplicateReference)
	}
	return err
}

func (r *EarningRepository) ListCharges(start, end time.Time) ([]*earnings.AdminCharge, error) {
	var models []*earningDatamodel.AdminCharge
	err := r.db.Where("charge_date >= ? AND charge_date < ?", start, end).
		Order("charge_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return earnings.ChargesFromDataModelSlice(models), nil
}

func (r *EarningRepository) ListAllCharges() ([]*earnings.AdminCharge, error) {
	var models []*earningDatamodel.AdminCharge
	err := r.db.Order("charge_date DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	return earnings.ChargesFromDataModelSlice(models), nil
}

// FindUnledgeredPayments joins successful payments against the earnings
// table and returns those with no ledger row.
func (r *EarningRepository) FindUnledgeredPayments() ([]earnings.UnledgeredPayment, error) {
	var rows []earnings.UnledgeredPayment
	err := r.db.Raw(`
		SELECT p.id AS payment_id,
		       a.doctor_id,
		       p.doctor_fee,
		       p.treatment_fee,
		       p.clinic_charges,
		       p.total_amount,
		       p.payment_date,
		       d.full_name  AS doctor_name,
		       pt.full_name AS patient_name,
		       t.name       AS treatment_name
		FROM payments p
		JOIN appointments a ON a.id = p.appointment_id
		JOIN doctors d     ON d.id = a.doctor_id
		JOIN patients pt   ON pt.id = a.patient_id
		JOIN treatments t  ON t.id = a.treatment_id
		LEFT JOIN doctor_earnings e ON e.payment_id = p.id
		WHERE p.status = 'SUCCESS' AND e.id IS NULL
		ORDER BY p.payment_date ASC`).
		Scan(&rows).Error
	return rows, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
