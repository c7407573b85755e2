package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
)

// Directory resolves doctor, patient and treatment references for the
// scheduling and payment services. Read-only; account management lives in
// a separate system.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) GetDoctorByID(id int64) (*clinicDatamodel.Doctor, error) {
	var doctor clinicDatamodel.Doctor
	err := d.db.Preload("Availability").
		Where("id = ? AND is_active = ?", id, true).
		First(&doctor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrDoctorNotFound
		}
		return nil, err
	}
	return &doctor, nil
}

func (d *Directory) GetPatientByID(id int64) (*clinicDatamodel.Patient, error) {
	var patient clinicDatamodel.Patient
	err := d.db.Where("id = ? AND is_active = ?", id, true).First(&patient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPatientNotFound
		}
		return nil, err
	}
	return &patient, nil
}

func (d *Directory) GetTreatmentByID(id int64) (*clinicDatamodel.Treatment, error) {
	var treatment clinicDatamodel.Treatment
	err := d.db.Where("id = ? AND is_active = ?", id, true).First(&treatment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTreatmentNotFound
		}
		return nil, err
	}
	return &treatment, nil
}

// ListDoctors backs the public doctor listing patients browse before booking.
func (d *Directory) ListDoctors() ([]*clinicDatamodel.Doctor, error) {
	var doctors []*clinicDatamodel.Doctor
	err := d.db.Preload("Availability").
		Where("is_active = ?", true).
		Order("full_name ASC").
		Find(&doctors).Error
	return doctors, err
}

// ListTreatments backs the public treatment catalogue.
func (d *Directory) ListTreatments() ([]*clinicDatamodel.Treatment, error) {
	var treatments []*clinicDatamodel.Treatment
	err := d.db.Where("is_active = ?", true).
		Order("name ASC").
		Find(&treatments).Error
	return treatments, err
}
