package postgres

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/appointment"
	appointmentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/appointment"
)

const pgUniqueViolation = "23505"

// AppointmentRepository implements appointment.Repository using GORM.
type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts the booking. The partial unique index on
// (doctor_id, appointment_date, appointment_time) over non-cancelled rows
// is the last line of defence against double-booking; its violation comes
// back as a slot conflict.
func (r *AppointmentRepository) Create(apt *appointment.Appointment) error {
	model := appointment.ToDataModel(apt)
	if err := r.db.Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return internal.ErrSlotUnavailable
		}
		return err
	}
	apt.ID = model.ID
	apt.CreatedAt = model.CreatedAt
	apt.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *AppointmentRepository) GetByID(id int64) (*appointment.Appointment, error) {
	var model appointmentDatamodel.Appointment
	err := r.db.Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAppointmentNotFound
		}
		return nil, err
	}
	return appointment.FromDataModel(&model), nil
}

func (r *AppointmentRepository) GetByTicketNumber(ticket string) (*appointment.Appointment, error) {
	var model appointmentDatamodel.Appointment
	err := r.db.Where("ticket_number = ?", ticket).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAppointmentNotFound
		}
		return nil, err
	}
	return appointment.FromDataModel(&model), nil
}

func (r *AppointmentRepository) ListByPatient(patientID int64) ([]*appointment.Appointment, error) {
	var models []*appointmentDatamodel.Appointment
	err := r.db.Where("patient_id = ?", patientID).
		Order("appointment_date DESC, appointment_time DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return appointment.FromDataModelSlice(models), nil
}

func (r *AppointmentRepository) ListByDoctor(doctorID int64) ([]*appointment.Appointment, error) {
	var models []*appointmentDatamodel.Appointment
	err := r.db.Where("doctor_id = ?", doctorID).
		Order("appointment_date DESC, appointment_time DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return appointment.FromDataModelSlice(models), nil
}

func (r *AppointmentRepository) ListByDoctorAndDate(doctorID int64, date time.Time) ([]*appointment.Appointment, error) {
	dayStart, dayEnd := dayBounds(date)
	var models []*appointmentDatamodel.Appointment
	err := r.db.Where("doctor_id = ? AND appointment_date >= ? AND appointment_date < ?",
		doctorID, dayStart, dayEnd).
		Order("appointment_time ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return appointment.FromDataModelSlice(models), nil
}

// ListActiveByDoctorAndDate feeds the slot grid: every non-cancelled row
// occupies its slot.
func (r *AppointmentRepository) ListActiveByDoctorAndDate(doctorID int64, date time.Time) ([]*appointmentDatamodel.Appointment, error) {
	dayStart, dayEnd := dayBounds(date)
	var models []*appointmentDatamodel.Appointment
	err := r.db.Where("doctor_id = ? AND appointment_date >= ? AND appointment_date < ? AND status <> ?",
		doctorID, dayStart, dayEnd, appointmentDatamodel.StatusCancelled).
		Find(&models).Error
	return models, err
}

// dayBounds returns the half-open [start, end) range covering the date's
// calendar day. Range comparison works the same whether the column is a
// proper date (postgres) or a stored timestamp (sqlite in tests).
func dayBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return start, start.AddDate(0, 0, 1)
}

func (r *AppointmentRepository) ListAll() ([]*appointment.Appointment, error) {
	var models []*appointmentDatamodel.Appointment
	err := r.db.Order("appointment_date DESC, appointment_time DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	return appointment.FromDataModelSlice(models), nil
}

// UpdateStatusIf is the optimistic guard for status transitions: the UPDATE
// only lands when the row still holds the expected status.
func (r *AppointmentRepository) UpdateStatusIf(id int64, expected, next string) (bool, error) {
	result := r.db.Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{
			"status":     next,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateStatus flips the status unconditionally. Used by the payment side
// inside its own transactions where the payment row is the guarded one.
func (r *AppointmentRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&appointmentDatamodel.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *AppointmentRepository) Reschedule(id int64, date time.Time, slotTime string) error {
	err := r.db.Model(&appointmentDatamodel.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"appointment_date": date,
			"appointment_time": slotTime,
			"status":           appointmentDatamodel.StatusRescheduled,
			"updated_at":       time.Now(),
		}).Error
	if isUniqueViolation(err) {
		return internal.ErrSlotUnavailable
	}
	return err
}

// AppendNotes concatenates onto any existing notes so the audit trail of
// cancellations and rejections survives multiple writes.
func (r *AppointmentRepository) AppendNotes(id int64, note string) error {
	var model appointmentDatamodel.Appointment
	if err := r.db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return internal.ErrAppointmentNotFound
		}
		return err
	}

	combined := note
	if model.Notes != nil && *model.Notes != "" {
		combined = *model.Notes + "\n" + note
	}

	return r.db.Model(&appointmentDatamodel.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"notes":      combined,
			"updated_at": time.Now(),
		}).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// sqlite in tests reports constraint failures through gorm's own error
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
