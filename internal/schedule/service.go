package schedule

import (
	"log/slog"
	"sort"
	"time"

	"github.com/ayurlink/clinic-management/internal"
	appointmentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/appointment"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
)

// DoctorRepository resolves doctors together with their weekly
// availability entries.
type DoctorRepository interface {
	GetDoctorByID(id int64) (*clinicDatamodel.Doctor, error)
}

// AppointmentRepository lists the appointments that occupy slots. Cancelled
// appointments never occupy a slot.
type AppointmentRepository interface {
	ListActiveByDoctorAndDate(doctorID int64, date time.Time) ([]*appointmentDatamodel.Appointment, error)
}

// Service derives the bookable time-slot grid for a doctor on a date from
// the recurring weekly availability and the non-cancelled appointments
// already on the books.
type Service struct {
	doctors      DoctorRepository
	appointments AppointmentRepository
	slotDuration time.Duration
	logger       *slog.Logger
}

func NewService(doctors DoctorRepository, appointments AppointmentRepository, slotDuration time.Duration, logger *slog.Logger) *Service {
	if slotDuration <= 0 {
		slotDuration = internal.DefaultSlotDuration
	}
	return &Service{
		doctors:      doctors,
		appointments: appointments,
		slotDuration: slotDuration,
		logger:       logger,
	}
}

// AvailableSlots returns the full grid for the date, each slot flagged
// available or not. A doctor with no availability configured for that day
// yields an empty grid, not an error.
func (s *Service) AvailableSlots(doctorID int64, date time.Time) ([]TimeSlot, error) {
	grid, err := s.gridForDate(doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return []TimeSlot{}, nil
	}

	occupied, err := s.occupiedTimes(doctorID, date)
	if err != nil {
		return nil, err
	}

	slots := make([]TimeSlot, 0, len(grid))
	for _, t := range grid {
		slots = append(slots, TimeSlot{Time: t, Available: !occupied[t]})
	}
	return slots, nil
}

// IsAvailable reports whether the requested time is a valid slot boundary
// inside one of the doctor's ranges for that date and is not occupied.
func (s *Service) IsAvailable(doctorID int64, date time.Time, slotTime string) (bool, error) {
	if _, err := time.Parse(timeLayout, slotTime); err != nil {
		return false, internal.NewValidationFieldError("time", "time must be in HH:MM format", internal.ErrCodeInvalidTime)
	}

	grid, err := s.gridForDate(doctorID, date)
	if err != nil {
		return false, err
	}

	onGrid := false
	for _, t := range grid {
		if t == slotTime {
			onGrid = true
			break
		}
	}
	if !onGrid {
		return false, nil
	}

	occupied, err := s.occupiedTimes(doctorID, date)
	if err != nil {
		return false, err
	}
	return !occupied[slotTime], nil
}

// gridForDate collects every range matching the date's day code across the
// doctor's availability entries and merges their slot grids. Multiple
// ranges per day (morning and afternoon sessions) are supported; malformed
// entries are skipped.
func (s *Service) gridForDate(doctorID int64, date time.Time) ([]string, error) {
	doctor, err := s.doctors.GetDoctorByID(doctorID)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to load doctor", err)
	}

	day := dayCode(date)
	seen := make(map[string]bool)
	var grid []string

	for _, entry := range doctor.Availability {
		r, err := parseAvailabilityEntry(entry.Entry)
		if err != nil {
			s.logger.Warn("skipping malformed availability entry",
				"doctor_id", doctorID,
				"entry", entry.Entry,
				"error", err)
			continue
		}
		if r.day != day {
			continue
		}
		for _, t := range r.gridTimes(s.slotDuration) {
			if !seen[t] {
				seen[t] = true
				grid = append(grid, t)
			}
		}
	}

	sort.Strings(grid)
	return grid, nil
}

func (s *Service) occupiedTimes(doctorID int64, date time.Time) (map[string]bool, error) {
	appointments, err := s.appointments.ListActiveByDoctorAndDate(doctorID, date)
	if err != nil {
		return nil, internal.NewInternalError("failed to load appointments", err)
	}

	occupied := make(map[string]bool, len(appointments))
	for _, apt := range appointments {
		occupied[apt.AppointmentTime] = true
	}
	return occupied, nil
}
