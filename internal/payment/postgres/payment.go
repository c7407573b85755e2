package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal"
	appointmentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/appointment"
	earningDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/earning"
	paymentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/payment"
	"github.com/ayurlink/clinic-management/internal/earnings"
	"github.com/ayurlink/clinic-management/internal/payment"
)

const pgUniqueViolation = "23505"

// PaymentRepository implements payment.Repository using GORM. The state
// transitions run as transactions so the payment row, the appointment
// status and the ledger never drift apart.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) CreateCollected(p *payment.Payment, ledger earnings.LedgerEntries) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		model := payment.ToDataModel(p)
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		p.ID = model.ID
		p.CreatedAt = model.CreatedAt
		p.UpdatedAt = model.UpdatedAt

		if err := setAppointmentStatus(tx, p.AppointmentID, appointmentDatamodel.StatusConfirmed); err != nil {
			return err
		}
		return insertLedger(tx, model.ID, ledger)
	})
	return translateCreateError(err)
}

func (r *PaymentRepository) CreatePendingVerification(p *payment.Payment) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		model := payment.ToDataModel(p)
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		p.ID = model.ID
		p.CreatedAt = model.CreatedAt
		p.UpdatedAt = model.UpdatedAt

		return setAppointmentStatus(tx, p.AppointmentID, appointmentDatamodel.StatusPending)
	})
	return translateCreateError(err)
}

func (r *PaymentRepository) ApproveVerification(paymentID int64, verifiedBy string, ledger earnings.LedgerEntries) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		model, err := lockPayment(tx, paymentID)
		if err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&paymentDatamodel.Payment{}).
			Where("id = ? AND status = ?", paymentID, paymentDatamodel.StatusPendingVerification).
			Updates(map[string]interface{}{
				"status":            paymentDatamodel.StatusSuccess,
				"receipt_verified":  true,
				"verified_by":       verifiedBy,
				"verification_date": now,
				"updated_at":        now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.NewInvalidStateError(
				paymentDatamodel.StatusPendingVerification, model.Status,
				internal.ErrCodeInvalidPaymentStatus)
		}

		if err := setAppointmentStatus(tx, model.AppointmentID, appointmentDatamodel.StatusConfirmed); err != nil {
			return err
		}
		return insertLedger(tx, paymentID, ledger)
	})
}

func (r *PaymentRepository) RejectVerification(paymentID int64, verifiedBy, note string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		model, err := lockPayment(tx, paymentID)
		if err != nil {
			return err
		}

		notes := note
		if model.PaymentNotes != nil && *model.PaymentNotes != "" {
			notes = *model.PaymentNotes + "\n" + note
		}

		now := time.Now()
		result := tx.Model(&paymentDatamodel.Payment{}).
			Where("id = ? AND status = ?", paymentID, paymentDatamodel.StatusPendingVerification).
			Updates(map[string]interface{}{
				"status":            paymentDatamodel.StatusRejected,
				"receipt_verified":  false,
				"verified_by":       verifiedBy,
				"verification_date": now,
				"payment_notes":     notes,
				"updated_at":        now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.NewInvalidStateError(
				paymentDatamodel.StatusPendingVerification, model.Status,
				internal.ErrCodeInvalidPaymentStatus)
		}

		// A rejected payment no longer blocks the appointment; it goes back
		// to awaiting payment.
		return setAppointmentStatus(tx, model.AppointmentID, appointmentDatamodel.StatusPending)
	})
}

func (r *PaymentRepository) Refund(paymentID int64, reason string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		model, err := lockPayment(tx, paymentID)
		if err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&paymentDatamodel.Payment{}).
			Where("id = ? AND status = ?", paymentID, paymentDatamodel.StatusSuccess).
			Updates(map[string]interface{}{
				"status":        paymentDatamodel.StatusRefunded,
				"refund_amount": model.TotalAmount,
				"refund_date":   now,
				"refund_reason": reason,
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return internal.NewInvalidStateError(
				paymentDatamodel.StatusSuccess, model.Status,
				internal.ErrCodeInvalidPaymentStatus)
		}

		if err := setAppointmentStatus(tx, model.AppointmentID, appointmentDatamodel.StatusCancelled); err != nil {
			return err
		}

		// Reverse the ledger: the earning never pays out, the clinic charge
		// goes back with the refund.
		if err := tx.Model(&earningDatamodel.DoctorEarning{}).
			Where("payment_id = ?", paymentID).
			Updates(map[string]interface{}{
				"status":     earningDatamodel.EarningStatusCancelled,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&earningDatamodel.AdminCharge{}).
			Where("payment_id = ?", paymentID).
			Updates(map[string]interface{}{
				"status":     earningDatamodel.ChargeStatusRefunded,
				"updated_at": now,
			}).Error
	})
}

func (r *PaymentRepository) Delete(paymentID int64) error {
	result := r.db.Where("id = ?", paymentID).Delete(&paymentDatamodel.Payment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) GetByID(id int64) (*payment.Payment, error) {
	var model paymentDatamodel.Payment
	err := r.db.Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment.FromDataModel(&model), nil
}

func (r *PaymentRepository) GetActiveByAppointment(appointmentID int64) (*payment.Payment, error) {
	var model paymentDatamodel.Payment
	err := r.db.Where("appointment_id = ? AND status NOT IN ?",
		appointmentID, []string{paymentDatamodel.StatusRejected, paymentDatamodel.StatusFailed}).
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment.FromDataModel(&model), nil
}

func (r *PaymentRepository) ListByAppointment(appointmentID int64) ([]*payment.Payment, error) {
	var models []*paymentDatamodel.Payment
	err := r.db.Where("appointment_id = ?", appointmentID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(models), nil
}

func (r *PaymentRepository) ListPendingVerification() ([]*payment.Payment, error) {
	var models []*paymentDatamodel.Payment
	err := r.db.Where("status = ?", paymentDatamodel.StatusPendingVerification).
		Order("receipt_upload_date ASC"). // oldest uploads first
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(models), nil
}

func (r *PaymentRepository) ListByDateRange(start, end time.Time) ([]*payment.Payment, error) {
	var models []*paymentDatamodel.Payment
	err := r.db.Where("payment_date >= ? AND payment_date < ?", start, end).
		Order("payment_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(models), nil
}

func (r *PaymentRepository) ListAll() ([]*payment.Payment, error) {
	var models []*paymentDatamodel.Payment
	err := r.db.Order("created_at DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	return payment.FromDataModelSlice(models), nil
}

// ExportRows joins the report fields in one query rather than loading four
// tables into memory.
func (r *PaymentRepository) ExportRows(start, end time.Time) ([]payment.ExportRow, error) {
	var rows []payment.ExportRow
	err := r.db.Raw(`
		SELECT p.receipt_number,
		       p.transaction_id,
		       pt.full_name AS patient_name,
		       pt.nic       AS patient_nic,
		       d.full_name  AS doctor_name,
		       t.name       AS treatment_name,
		       p.total_amount AS amount,
		       p.payment_method,
		       p.status,
		       p.payment_date
		FROM payments p
		JOIN appointments a ON a.id = p.appointment_id
		JOIN patients pt   ON pt.id = a.patient_id
		JOIN doctors d     ON d.id = a.doctor_id
		JOIN treatments t  ON t.id = a.treatment_id
		WHERE p.payment_date >= ? AND p.payment_date < ?
		ORDER BY p.payment_date ASC`, start, end).
		Scan(&rows).Error
	return rows, err
}

func lockPayment(tx *gorm.DB, paymentID int64) (*paymentDatamodel.Payment, error) {
	var model paymentDatamodel.Payment
	err := tx.Where("id = ?", paymentID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return &model, nil
}

func setAppointmentStatus(tx *gorm.DB, appointmentID int64, status string) error {
	return tx.Model(&appointmentDatamodel.Appointment{}).
		Where("id = ?", appointmentID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func insertLedger(tx *gorm.DB, paymentID int64, ledger earnings.LedgerEntries) error {
	ledger.Earning.PaymentID = paymentID
	ledger.Charge.PaymentID = paymentID
	if err := tx.Create(ledger.Earning).Error; err != nil {
		return err
	}
	return tx.Create(ledger.Charge).Error
}

// translateCreateError maps unique violations from payment creation. The
// partial index over active payments per appointment reports as "payment
// already exists"; the reference indexes as duplicate reference.
func translateCreateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "transaction") ||
			strings.Contains(pgErr.ConstraintName, "receipt") {
			return internal.NewConflictError("payment reference already exists", internal.ErrCodeDuplicateReference)
		}
		return internal.ErrPaymentAlreadyExists
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.ErrPaymentAlreadyExists
	}
	return err
}
