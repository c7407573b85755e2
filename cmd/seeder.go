package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal/auth"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
	"github.com/ayurlink/clinic-management/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlxDB.Close()

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to open gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{
				"admin_charges", "doctor_earnings", "payments", "appointments",
				"doctor_availability", "treatments", "doctors", "patients",
			} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte("password"), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		doctor := &clinicDatamodel.Doctor{
			FullName:        "Dr. Kamala Silva",
			Email:           "silva@clinic.lk",
			PasswordHash:    string(hash),
			Specialization:  "Panchakarma",
			ConsultationFee: 2000,
			IsActive:        true,
			Availability: []clinicDatamodel.DoctorAvailability{
				{Entry: "MON 09:00-12:00"},
				{Entry: "MON 14:00-17:00"},
				{Entry: "WED 09:00-12:00"},
				{Entry: "FRI 09:00-12:00"},
			},
		}
		var existing clinicDatamodel.Doctor
		if err := db.Where("email = ?", doctor.Email).First(&existing).Error; err == nil {
			doctor = &existing
			fmt.Println("doctor already exists:", doctor.Email)
		} else {
			if err := db.Create(doctor).Error; err != nil {
				log.Fatalf("failed to seed doctor: %v", err)
			}
			fmt.Println("Seeded doctor:", doctor.Email)
		}

		patient := &clinicDatamodel.Patient{
			FullName:     "Nimal Perera",
			NIC:          "902541230V",
			Email:        "nimal@mail.com",
			PasswordHash: string(hash),
			Phone:        "+94771234567",
			IsActive:     true,
		}
		var existingPatient clinicDatamodel.Patient
		if err := db.Where("email = ?", patient.Email).First(&existingPatient).Error; err == nil {
			patient = &existingPatient
			fmt.Println("patient already exists:", patient.Email)
		} else {
			if err := db.Create(patient).Error; err != nil {
				log.Fatalf("failed to seed patient: %v", err)
			}
			fmt.Println("Seeded patient:", patient.Email)
		}

		treatments := []clinicDatamodel.Treatment{
			{Name: "Panchakarma Therapy", Description: "Five-fold detoxification course", Cost: 4500, IsActive: true},
			{Name: "Shirodhara", Description: "Warm oil stream therapy", Cost: 3500, IsActive: true},
			{Name: "Abhyanga Massage", Description: "Full body herbal oil massage", Cost: 2500, IsActive: true},
			{Name: "Herbal Steam Bath", Description: "Medicated steam treatment", Cost: 1500, IsActive: true},
		}
		for _, t := range treatments {
			var exists clinicDatamodel.Treatment
			if err := db.Where("name = ?", t.Name).First(&exists).Error; err == nil {
				continue
			}
			if err := db.Create(&t).Error; err != nil {
				log.Fatalf("failed to seed treatment %s: %v", t.Name, err)
			}
			fmt.Printf("Seeded treatment: %s\n", t.Name)
		}

		// Development tokens; the login service issues these in production
		verifier := auth.NewTokenVerifier(cfg.Security.JWTSecret, logger.LoggerWrapper())
		ttl := 24 * time.Hour

		adminToken, err := verifier.IssueToken(&auth.Actor{
			ID: 1, Email: "admin@clinic.lk", Role: clinicDatamodel.RoleAdmin,
		}, ttl)
		if err != nil {
			log.Fatalf("failed to issue admin token: %v", err)
		}
		doctorToken, err := verifier.IssueToken(&auth.Actor{
			ID: doctor.ID, Email: doctor.Email, Role: clinicDatamodel.RoleDoctor,
		}, ttl)
		if err != nil {
			log.Fatalf("failed to issue doctor token: %v", err)
		}
		patientToken, err := verifier.IssueToken(&auth.Actor{
			ID: patient.ID, Email: patient.Email, Role: clinicDatamodel.RolePatient,
		}, ttl)
		if err != nil {
			log.Fatalf("failed to issue patient token: %v", err)
		}

		fmt.Println("Development tokens (valid 24h):")
		fmt.Println("  admin:  ", adminToken)
		fmt.Println("  doctor: ", doctorToken)
		fmt.Println("  patient:", patientToken)
	},
}
