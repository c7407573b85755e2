package clinic

import "time"

const (
	RolePatient = "PATIENT"
	RoleDoctor  = "DOCTOR"
	RoleAdmin   = "ADMIN"
)

type Doctor struct {
	ID              int64   `gorm:"primaryKey"`
	FullName        string  `gorm:"column:full_name;not null"`
	Email           string  `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash    string  `gorm:"column:password_hash;not null"`
	Specialization  string  `gorm:"column:specialization"`
	ConsultationFee float64 `gorm:"column:consultation_fee;not null"`
	IsActive        bool    `gorm:"column:is_active;default:true"`

	Availability []DoctorAvailability `gorm:"foreignKey:DoctorID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Doctor) TableName() string {
	return "doctors"
}

// DoctorAvailability is one recurring weekly window, stored as the raw
// "DAY HH:MM-HH:MM" entry (e.g. "MON 09:00-12:00"). A doctor may carry
// several entries for the same day.
type DoctorAvailability struct {
	ID       int64  `gorm:"primaryKey"`
	DoctorID int64  `gorm:"column:doctor_id;not null;index"`
	Entry    string `gorm:"column:entry;not null"`
}

func (DoctorAvailability) TableName() string {
	return "doctor_availability"
}

type Patient struct {
	ID           int64  `gorm:"primaryKey"`
	FullName     string `gorm:"column:full_name;not null"`
	NIC          string `gorm:"column:nic;uniqueIndex;not null"`
	Email        string `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Phone        string `gorm:"column:phone"`
	IsActive     bool   `gorm:"column:is_active;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Patient) TableName() string {
	return "patients"
}

type Treatment struct {
	ID          int64   `gorm:"primaryKey"`
	Name        string  `gorm:"column:name;not null"`
	Description string  `gorm:"column:description"`
	Cost        float64 `gorm:"column:cost;not null"`
	IsActive    bool    `gorm:"column:is_active;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Treatment) TableName() string {
	return "treatments"
}
