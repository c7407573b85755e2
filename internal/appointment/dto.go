package appointment

import (
	"time"

	"github.com/ayurlink/clinic-management/internal"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// BookAppointmentDTO is the booking request. PatientID comes from the body
// so admins can book on behalf of walk-in patients; for patient callers the
// service checks it against the token identity.
type BookAppointmentDTO struct {
	PatientID       int64   `json:"patient_id"`
	DoctorID        int64   `json:"doctor_id"`
	TreatmentID     int64   `json:"treatment_id"`
	AppointmentDate string  `json:"appointment_date"`
	AppointmentTime string  `json:"appointment_time"`
	Notes           *string `json:"notes,omitempty"`
}

func (dto BookAppointmentDTO) Validate() error {
	if dto.PatientID <= 0 {
		return internal.NewValidationFieldError("patient_id", "patient_id is required", internal.ErrCodeValidationFailed)
	}
	if dto.DoctorID <= 0 {
		return internal.NewValidationFieldError("doctor_id", "doctor_id is required", internal.ErrCodeValidationFailed)
	}
	if dto.TreatmentID <= 0 {
		return internal.NewValidationFieldError("treatment_id", "treatment_id is required", internal.ErrCodeValidationFailed)
	}
	date, err := time.Parse(dateLayout, dto.AppointmentDate)
	if err != nil {
		return internal.NewValidationFieldError("appointment_date", "appointment_date must be in YYYY-MM-DD format", internal.ErrCodeInvalidDate)
	}
	if date.Before(today()) {
		return internal.NewValidationFieldError("appointment_date", "appointment_date cannot be in the past", internal.ErrCodeInvalidDate)
	}
	if _, err := time.Parse(timeLayout, dto.AppointmentTime); err != nil {
		return internal.NewValidationFieldError("appointment_time", "appointment_time must be in HH:MM format", internal.ErrCodeInvalidTime)
	}
	return nil
}

// Date returns the parsed appointment date. Call Validate first.
func (dto BookAppointmentDTO) Date() time.Time {
	date, _ := time.Parse(dateLayout, dto.AppointmentDate)
	return date
}

// RescheduleAppointmentDTO moves an existing booking to a new slot.
type RescheduleAppointmentDTO struct {
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
}

func (dto RescheduleAppointmentDTO) Validate() error {
	date, err := time.Parse(dateLayout, dto.AppointmentDate)
	if err != nil {
		return internal.NewValidationFieldError("appointment_date", "appointment_date must be in YYYY-MM-DD format", internal.ErrCodeInvalidDate)
	}
	if date.Before(today()) {
		return internal.NewValidationFieldError("appointment_date", "appointment_date cannot be in the past", internal.ErrCodeInvalidDate)
	}
	if _, err := time.Parse(timeLayout, dto.AppointmentTime); err != nil {
		return internal.NewValidationFieldError("appointment_time", "appointment_time must be in HH:MM format", internal.ErrCodeInvalidTime)
	}
	return nil
}

func (dto RescheduleAppointmentDTO) Date() time.Time {
	date, _ := time.Parse(dateLayout, dto.AppointmentDate)
	return date
}

// CancelAppointmentDTO carries the optional reason, appended to the notes.
type CancelAppointmentDTO struct {
	Reason string `json:"reason,omitempty"`
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
