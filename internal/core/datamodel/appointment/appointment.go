package appointment

import "time"

const (
	StatusPending     = "PENDING"
	StatusScheduled   = "SCHEDULED"
	StatusConfirmed   = "CONFIRMED"
	StatusCompleted   = "COMPLETED"
	StatusCancelled   = "CANCELLED"
	StatusRescheduled = "RESCHEDULED"
)

type Appointment struct {
	ID              int64     `gorm:"primaryKey"`
	PatientID       int64     `gorm:"column:patient_id;not null"`
	DoctorID        int64     `gorm:"column:doctor_id;not null"`
	TreatmentID     int64     `gorm:"column:treatment_id;not null"`
	AppointmentDate time.Time `gorm:"column:appointment_date;type:date;not null"`
	AppointmentTime string    `gorm:"column:appointment_time;not null"`
	Status          string    `gorm:"column:status;default:SCHEDULED"`
	TicketNumber    string    `gorm:"column:ticket_number;uniqueIndex;not null"`
	Notes           *string   `gorm:"column:notes"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Appointment) TableName() string {
	return "appointments"
}
