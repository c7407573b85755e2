package appointment

import (
	"fmt"
	"math/rand"
	"time"

	appointmentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/appointment"
)

// Appointment is the booking view the services and handlers work with. The
// display names are denormalized for responses and are empty when the
// appointment was loaded without joins.
type Appointment struct {
	ID              int64     `json:"id"`
	PatientID       int64     `json:"patient_id"`
	DoctorID        int64     `json:"doctor_id"`
	TreatmentID     int64     `json:"treatment_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	Status          string    `json:"status"`
	TicketNumber    string    `json:"ticket_number"`
	Notes           *string   `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	PatientName   string `json:"patient_name,omitempty"`
	DoctorName    string `json:"doctor_name,omitempty"`
	TreatmentName string `json:"treatment_name,omitempty"`
}

// CanBeCancelled reports whether the appointment still holds a slot that can
// be released. Completed visits are history and stay as they are.
func (a *Appointment) CanBeCancelled() bool {
	return a.Status != appointmentDatamodel.StatusCompleted &&
		a.Status != appointmentDatamodel.StatusCancelled
}

// CanBeCompleted: only a paid-for (confirmed) appointment can be marked done.
func (a *Appointment) CanBeCompleted() bool {
	return a.Status == appointmentDatamodel.StatusConfirmed
}

// CanBeRescheduled excludes terminal states; a confirmed appointment may
// still move because the payment sticks to the appointment, not the slot.
func (a *Appointment) CanBeRescheduled() bool {
	return a.Status != appointmentDatamodel.StatusCompleted &&
		a.Status != appointmentDatamodel.StatusCancelled
}

// IsCancelled reports the one state in which a new payment must be refused.
func (a *Appointment) IsCancelled() bool {
	return a.Status == appointmentDatamodel.StatusCancelled
}

// NewTicketNumber generates the patient-facing booking reference. The random
// suffix keeps two bookings in the same millisecond from colliding; the
// unique index on ticket_number is the real guarantee.
func NewTicketNumber() string {
	return fmt.Sprintf("APT%d%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

func ToDataModel(a *Appointment) *appointmentDatamodel.Appointment {
	return &appointmentDatamodel.Appointment{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		TreatmentID:     a.TreatmentID,
		AppointmentDate: a.AppointmentDate,
		AppointmentTime: a.AppointmentTime,
		Status:          a.Status,
		TicketNumber:    a.TicketNumber,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func FromDataModel(a *appointmentDatamodel.Appointment) *Appointment {
	return &Appointment{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		TreatmentID:     a.TreatmentID,
		AppointmentDate: a.AppointmentDate,
		AppointmentTime: a.AppointmentTime,
		Status:          a.Status,
		TicketNumber:    a.TicketNumber,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func FromDataModelSlice(appointments []*appointmentDatamodel.Appointment) []*Appointment {
	result := make([]*Appointment, len(appointments))
	for i, a := range appointments {
		result[i] = FromDataModel(a)
	}
	return result
}
