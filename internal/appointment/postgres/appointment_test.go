package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/appointment"
	appointmentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/appointment"
)

func TestAppointmentRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AppointmentRepository Suite")
}

var _ = Describe("AppointmentRepository", func() {
	var (
		db   *gorm.DB
		repo *AppointmentRepository
		date time.Time
	)

	newAppointment := func(ticket, slotTime string) *appointment.Appointment {
		return &appointment.Appointment{
			PatientID:       1,
			DoctorID:        2,
			TreatmentID:     3,
			AppointmentDate: date,
			AppointmentTime: slotTime,
			Status:          appointmentDatamodel.StatusScheduled,
			TicketNumber:    ticket,
		}
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&appointmentDatamodel.Appointment{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewAppointmentRepository(db)
		date = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("Create", func() {
		It("persists the booking and backfills the ID", func() {
			apt := newAppointment("APT1001", "09:00")

			err := repo.Create(apt)

			Expect(err).NotTo(HaveOccurred())
			Expect(apt.ID).To(BeNumerically(">", 0))
		})

		It("rejects a duplicate ticket number as a conflict", func() {
			Expect(repo.Create(newAppointment("APT1001", "09:00"))).To(Succeed())

			err := repo.Create(newAppointment("APT1001", "09:15"))

			Expect(err).To(Equal(internal.ErrSlotUnavailable))
		})
	})

	Describe("GetByID", func() {
		It("returns not found for a missing row", func() {
			_, err := repo.GetByID(99999)

			Expect(err).To(Equal(internal.ErrAppointmentNotFound))
		})
	})

	Describe("GetByTicketNumber", func() {
		It("resolves a booking by its ticket", func() {
			apt := newAppointment("APT2002", "10:00")
			Expect(repo.Create(apt)).To(Succeed())

			found, err := repo.GetByTicketNumber("APT2002")

			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(apt.ID))
		})
	})

	Describe("UpdateStatusIf", func() {
		var aptID int64

		BeforeEach(func() {
			apt := newAppointment("APT3003", "09:00")
			Expect(repo.Create(apt)).To(Succeed())
			aptID = apt.ID
		})

		It("flips the status when the expected one still holds", func() {
			ok, err := repo.UpdateStatusIf(aptID, appointmentDatamodel.StatusScheduled, appointmentDatamodel.StatusConfirmed)

			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			stored, err := repo.GetByID(aptID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(appointmentDatamodel.StatusConfirmed))
		})

		It("reports a lost race instead of overwriting", func() {
			ok, err := repo.UpdateStatusIf(aptID, appointmentDatamodel.StatusConfirmed, appointmentDatamodel.StatusCompleted)

			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			stored, err := repo.GetByID(aptID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(appointmentDatamodel.StatusScheduled))
		})
	})

	Describe("ListActiveByDoctorAndDate", func() {
		It("excludes cancelled rows", func() {
			booked := newAppointment("APT4004", "09:00")
			Expect(repo.Create(booked)).To(Succeed())
			cancelled := newAppointment("APT4005", "09:15")
			cancelled.Status = appointmentDatamodel.StatusCancelled
			Expect(repo.Create(cancelled)).To(Succeed())

			active, err := repo.ListActiveByDoctorAndDate(2, date)

			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].AppointmentTime).To(Equal("09:00"))
		})
	})

	Describe("Reschedule", func() {
		It("moves the slot and marks the row rescheduled", func() {
			apt := newAppointment("APT5005", "09:00")
			Expect(repo.Create(apt)).To(Succeed())
			newDate := date.AddDate(0, 0, 7)

			err := repo.Reschedule(apt.ID, newDate, "11:30")

			Expect(err).NotTo(HaveOccurred())
			stored, err := repo.GetByID(apt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.AppointmentTime).To(Equal("11:30"))
			Expect(stored.Status).To(Equal(appointmentDatamodel.StatusRescheduled))
		})
	})

	Describe("AppendNotes", func() {
		It("keeps earlier notes when appending", func() {
			apt := newAppointment("APT6006", "09:00")
			Expect(repo.Create(apt)).To(Succeed())

			Expect(repo.AppendNotes(apt.ID, "first note")).To(Succeed())
			Expect(repo.AppendNotes(apt.ID, "second note")).To(Succeed())

			stored, err := repo.GetByID(apt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.Notes).To(ContainSubstring("first note"))
			Expect(*stored.Notes).To(ContainSubstring("second note"))
		})
	})
})
