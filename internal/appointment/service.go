package appointment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/auth"
	appointmentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/appointment"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
	"github.com/ayurlink/clinic-management/internal/core/events"
)

// Repository defines the data access methods for appointments.
type Repository interface {
	Create(apt *Appointment) error
	GetByID(id int64) (*Appointment, error)
	GetByTicketNumber(ticket string) (*Appointment, error)
	ListByPatient(patientID int64) ([]*Appointment, error)
	ListByDoctor(doctorID int64) ([]*Appointment, error)
	ListByDoctorAndDate(doctorID int64, date time.Time) ([]*Appointment, error)
	ListAll() ([]*Appointment, error)
	// UpdateStatusIf flips the status only when the row still holds the
	// expected one. It returns false when another writer got there first.
	UpdateStatusIf(id int64, expected, next string) (bool, error)
	// Reschedule moves the row to the new slot and marks it RESCHEDULED.
	Reschedule(id int64, date time.Time, slotTime string) error
	AppendNotes(id int64, note string) error
}

// Directory resolves the parties an appointment references.
type Directory interface {
	GetDoctorByID(id int64) (*clinicDatamodel.Doctor, error)
	GetPatientByID(id int64) (*clinicDatamodel.Patient, error)
	GetTreatmentByID(id int64) (*clinicDatamodel.Treatment, error)
}

// SlotChecker answers whether a slot is on the doctor's grid and free.
type SlotChecker interface {
	IsAvailable(doctorID int64, date time.Time, slotTime string) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

type Service struct {
	repo      Repository
	directory Directory
	slots     SlotChecker
	events    EventPublisher
	logger    *slog.Logger
}

func NewService(repo Repository, directory Directory, slots SlotChecker, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		slots:     slots,
		events:    publisher,
		logger:    logger,
	}
}

// Book reserves a slot. The availability check keeps the obvious races out;
// the partial unique index on (doctor, date, time) catches the rest and
// surfaces as a conflict from the repository.
func (s *Service) Book(dto BookAppointmentDTO, actor *auth.Actor) (*Appointment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if !actor.CanActFor(dto.PatientID) {
		s.logger.Warn("booking denied for foreign patient",
			"actor_id", actor.ID, "patient_id", dto.PatientID)
		return nil, internal.ErrUnauthorizedAccess
	}

	patient, err := s.directory.GetPatientByID(dto.PatientID)
	if err != nil {
		return nil, internal.ErrPatientNotFound
	}
	doctor, err := s.directory.GetDoctorByID(dto.DoctorID)
	if err != nil {
		return nil, internal.ErrDoctorNotFound
	}
	treatment, err := s.directory.GetTreatmentByID(dto.TreatmentID)
	if err != nil {
		return nil, internal.ErrTreatmentNotFound
	}

	available, err := s.slots.IsAvailable(dto.DoctorID, dto.Date(), dto.AppointmentTime)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, internal.ErrSlotUnavailable
	}

	apt := &Appointment{
		PatientID:       dto.PatientID,
		DoctorID:        dto.DoctorID,
		TreatmentID:     dto.TreatmentID,
		AppointmentDate: dto.Date(),
		AppointmentTime: dto.AppointmentTime,
		Status:          appointmentDatamodel.StatusScheduled,
		TicketNumber:    NewTicketNumber(),
		Notes:           dto.Notes,
	}

	if err := s.repo.Create(apt); err != nil {
		s.logger.Error("failed to create appointment", "error", err,
			"doctor_id", dto.DoctorID, "date", dto.AppointmentDate, "time", dto.AppointmentTime)
		return nil, err
	}

	apt.PatientName = patient.FullName
	apt.DoctorName = doctor.FullName
	apt.TreatmentName = treatment.Name

	s.events.Publish(context.Background(), events.NewAppointmentBookedEvent(apt.ID, apt.DoctorID, apt.PatientID, apt.TicketNumber))

	s.logger.Info("appointment booked",
		"appointment_id", apt.ID,
		"ticket_number", apt.TicketNumber,
		"doctor_id", apt.DoctorID,
		"patient_id", apt.PatientID)

	return apt, nil
}

// GetByID enforces ownership: patients see their own, doctors those they
// treat, admins everything.
func (s *Service) GetByID(id int64, actor *auth.Actor) (*Appointment, error) {
	apt, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !s.canView(apt, actor) {
		s.logger.Warn("appointment access denied", "appointment_id", id, "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}
	return apt, nil
}

func (s *Service) GetByTicketNumber(ticket string, actor *auth.Actor) (*Appointment, error) {
	apt, err := s.repo.GetByTicketNumber(ticket)
	if err != nil {
		return nil, err
	}
	if !s.canView(apt, actor) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return apt, nil
}

func (s *Service) ListForPatient(patientID int64, actor *auth.Actor) ([]*Appointment, error) {
	if !actor.CanActFor(patientID) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByPatient(patientID)
}

func (s *Service) ListForDoctor(doctorID int64, actor *auth.Actor) ([]*Appointment, error) {
	if !actor.IsAdmin() && !(actor.IsDoctor() && actor.ID == doctorID) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByDoctor(doctorID)
}

func (s *Service) ListForDoctorOnDate(doctorID int64, date time.Time, actor *auth.Actor) ([]*Appointment, error) {
	if !actor.IsAdmin() && !(actor.IsDoctor() && actor.ID == doctorID) {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListByDoctorAndDate(doctorID, date)
}

func (s *Service) ListAll(actor *auth.Actor) ([]*Appointment, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrUnauthorizedAccess
	}
	return s.repo.ListAll()
}

// Cancel releases the slot. Allowed for the owning patient, the treating
// doctor, and admins. Refunding any successful payment is a separate,
// explicit step on the payment side.
func (s *Service) Cancel(id int64, dto CancelAppointmentDTO, actor *auth.Actor) error {
	apt, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if !s.canModify(apt, actor) {
		s.logger.Warn("cancel denied", "appointment_id", id, "actor_id", actor.ID, "role", actor.Role)
		return internal.ErrUnauthorizedAccess
	}
	if !apt.CanBeCancelled() {
		return internal.NewInvalidStateError(
			"SCHEDULED, PENDING, CONFIRMED or RESCHEDULED", apt.Status,
			internal.ErrCodeInvalidAppointmentStatus)
	}

	ok, err := s.repo.UpdateStatusIf(id, apt.Status, appointmentDatamodel.StatusCancelled)
	if err != nil {
		s.logger.Error("failed to cancel appointment", "error", err, "appointment_id", id)
		return err
	}
	if !ok {
		return internal.NewInvalidStateError(apt.Status, "changed concurrently",
			internal.ErrCodeInvalidAppointmentStatus)
	}

	if dto.Reason != "" {
		note := fmt.Sprintf("CANCELLED by %s on %s: %s",
			actor.Email, time.Now().Format("2006-01-02 15:04"), dto.Reason)
		if err := s.repo.AppendNotes(id, note); err != nil {
			s.logger.Warn("failed to record cancellation reason", "error", err, "appointment_id", id)
		}
	}

	s.logger.Info("appointment cancelled", "appointment_id", id, "ticket_number", apt.TicketNumber, "actor_id", actor.ID)
	return nil
}

// Complete marks a confirmed visit as done. Only the treating doctor or an
// admin may do this.
func (s *Service) Complete(id int64, actor *auth.Actor) error {
	apt, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !(actor.IsDoctor() && actor.ID == apt.DoctorID) {
		s.logger.Warn("complete denied", "appointment_id", id, "actor_id", actor.ID, "role", actor.Role)
		return internal.ErrUnauthorizedAccess
	}
	if !apt.CanBeCompleted() {
		return internal.NewInvalidStateError(
			appointmentDatamodel.StatusConfirmed, apt.Status,
			internal.ErrCodeInvalidAppointmentStatus)
	}

	ok, err := s.repo.UpdateStatusIf(id, appointmentDatamodel.StatusConfirmed, appointmentDatamodel.StatusCompleted)
	if err != nil {
		s.logger.Error("failed to complete appointment", "error", err, "appointment_id", id)
		return err
	}
	if !ok {
		return internal.NewInvalidStateError(appointmentDatamodel.StatusConfirmed, "changed concurrently",
			internal.ErrCodeInvalidAppointmentStatus)
	}

	s.logger.Info("appointment completed", "appointment_id", id, "doctor_id", apt.DoctorID)
	return nil
}

// Reschedule moves the booking to a new slot after checking it the same way
// Book does. The existing appointment keeps its ticket number.
func (s *Service) Reschedule(id int64, dto RescheduleAppointmentDTO, actor *auth.Actor) (*Appointment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	apt, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !s.canModify(apt, actor) {
		s.logger.Warn("reschedule denied", "appointment_id", id, "actor_id", actor.ID, "role", actor.Role)
		return nil, internal.ErrUnauthorizedAccess
	}
	if !apt.CanBeRescheduled() {
		return nil, internal.NewInvalidStateError(
			"SCHEDULED, PENDING, CONFIRMED or RESCHEDULED", apt.Status,
			internal.ErrCodeInvalidAppointmentStatus)
	}

	available, err := s.slots.IsAvailable(apt.DoctorID, dto.Date(), dto.AppointmentTime)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, internal.ErrSlotUnavailable
	}

	if err := s.repo.Reschedule(id, dto.Date(), dto.AppointmentTime); err != nil {
		s.logger.Error("failed to reschedule appointment", "error", err, "appointment_id", id)
		return nil, err
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", id,
		"new_date", dto.AppointmentDate,
		"new_time", dto.AppointmentTime)

	return s.repo.GetByID(id)
}

func (s *Service) canView(apt *Appointment, actor *auth.Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	if actor.IsDoctor() {
		return actor.ID == apt.DoctorID
	}
	return actor.CanActFor(apt.PatientID)
}

// canModify: doctors may cancel/reschedule their own schedule entries,
// patients their own bookings.
func (s *Service) canModify(apt *Appointment, actor *auth.Actor) bool {
	return s.canView(apt, actor)
}
