package postgres

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
)

func TestDirectory(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Directory Suite")
}

var _ = Describe("Directory", func() {
	var (
		db   *gorm.DB
		repo *Directory
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&clinicDatamodel.Doctor{},
			&clinicDatamodel.DoctorAvailability{},
			&clinicDatamodel.Patient{},
			&clinicDatamodel.Treatment{},
		)
		Expect(err).NotTo(HaveOccurred())

		repo = NewDirectory(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("GetDoctorByID", func() {
		It("loads the doctor with availability entries", func() {
			doctor := &clinicDatamodel.Doctor{
				FullName:        "Dr. Kamala Silva",
				Email:           "silva@clinic.lk",
				PasswordHash:    "x",
				ConsultationFee: 2000,
				IsActive:        true,
				Availability: []clinicDatamodel.DoctorAvailability{
					{Entry: "MON 09:00-12:00"},
					{Entry: "WED 14:00-17:00"},
				},
			}
			Expect(db.Create(doctor).Error).To(Succeed())

			found, err := repo.GetDoctorByID(doctor.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(found.FullName).To(Equal("Dr. Kamala Silva"))
			Expect(found.Availability).To(HaveLen(2))
		})

		It("treats an inactive doctor as not found", func() {
			doctor := &clinicDatamodel.Doctor{
				FullName:        "Dr. Gone",
				Email:           "gone@clinic.lk",
				PasswordHash:    "x",
				ConsultationFee: 2000,
				IsActive:        false,
			}
			Expect(db.Create(doctor).Error).To(Succeed())

			_, err := repo.GetDoctorByID(doctor.ID)
			Expect(err).To(Equal(internal.ErrDoctorNotFound))
		})

		It("returns not found for an unknown ID", func() {
			_, err := repo.GetDoctorByID(42)
			Expect(err).To(Equal(internal.ErrDoctorNotFound))
		})
	})

	Describe("GetPatientByID", func() {
		It("finds an active patient", func() {
			patient := &clinicDatamodel.Patient{
				FullName:     "Nimal Perera",
				NIC:          "902541230V",
				Email:        "nimal@mail.com",
				PasswordHash: "x",
				IsActive:     true,
			}
			Expect(db.Create(patient).Error).To(Succeed())

			found, err := repo.GetPatientByID(patient.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.NIC).To(Equal("902541230V"))
		})

		It("returns not found for an unknown ID", func() {
			_, err := repo.GetPatientByID(42)
			Expect(err).To(Equal(internal.ErrPatientNotFound))
		})
	})

	Describe("GetTreatmentByID", func() {
		It("finds an active treatment", func() {
			treatment := &clinicDatamodel.Treatment{
				Name:     "Panchakarma Therapy",
				Cost:     4500,
				IsActive: true,
			}
			Expect(db.Create(treatment).Error).To(Succeed())

			found, err := repo.GetTreatmentByID(treatment.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Cost).To(Equal(4500.0))
		})

		It("returns not found for an unknown ID", func() {
			_, err := repo.GetTreatmentByID(42)
			Expect(err).To(Equal(internal.ErrTreatmentNotFound))
		})
	})

	Describe("ListDoctors", func() {
		It("lists active doctors ordered by name and skips inactive ones", func() {
			Expect(db.Create(&clinicDatamodel.Doctor{
				FullName: "Dr. Zoysa", Email: "z@clinic.lk", PasswordHash: "x", ConsultationFee: 2000, IsActive: true,
			}).Error).To(Succeed())
			Expect(db.Create(&clinicDatamodel.Doctor{
				FullName: "Dr. Abey", Email: "a@clinic.lk", PasswordHash: "x", ConsultationFee: 2000, IsActive: true,
			}).Error).To(Succeed())
			Expect(db.Create(&clinicDatamodel.Doctor{
				FullName: "Dr. Left", Email: "l@clinic.lk", PasswordHash: "x", ConsultationFee: 2000, IsActive: false,
			}).Error).To(Succeed())

			doctors, err := repo.ListDoctors()

			Expect(err).NotTo(HaveOccurred())
			Expect(doctors).To(HaveLen(2))
			Expect(doctors[0].FullName).To(Equal("Dr. Abey"))
		})
	})
})
