package earning

import "time"

const (
	EarningStatusPending   = "PENDING"
	EarningStatusSettled   = "SETTLED"
	EarningStatusCancelled = "CANCELLED"

	ChargeStatusCollected = "COLLECTED"
	ChargeStatusRefunded  = "REFUNDED"
)

type DoctorEarning struct {
	ID        int64 `gorm:"primaryKey"`
	DoctorID  int64 `gorm:"column:doctor_id;not null"`
	PaymentID int64 `gorm:"column:payment_id;uniqueIndex;not null"`

	GrossAmount  float64 `gorm:"column:gross_amount;not null"`
	AdminCharge  float64 `gorm:"column:admin_charge;not null"`
	DoctorFee    float64 `gorm:"column:doctor_fee;not null"`
	TreatmentFee float64 `gorm:"column:treatment_fee;not null"`
	NetEarning   float64 `gorm:"column:net_earning;not null"`

	Status              string     `gorm:"column:status;default:PENDING"`
	PaymentDate         time.Time  `gorm:"column:payment_date"`
	SettlementDate      *time.Time `gorm:"column:settlement_date"`
	SettlementReference *string    `gorm:"column:settlement_reference"`
	Notes               *string    `gorm:"column:notes"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (DoctorEarning) TableName() string {
	return "doctor_earnings"
}

// AdminCharge snapshots the clinic's share of a payment together with the
// display names needed for reports, so later edits to doctor or treatment
// records do not rewrite history.
type AdminCharge struct {
	ID        int64 `gorm:"primaryKey"`
	PaymentID int64 `gorm:"column:payment_id;uniqueIndex;not null"`

	ClinicCharge       float64 `gorm:"column:clinic_charge;not null"`
	TotalPaymentAmount float64 `gorm:"column:total_payment_amount;not null"`
	DoctorEarning      float64 `gorm:"column:doctor_earning;not null"`

	TreatmentName string `gorm:"column:treatment_name"`
	DoctorName    string `gorm:"column:doctor_name"`
	PatientName   string `gorm:"column:patient_name"`

	Status     string    `gorm:"column:status;default:COLLECTED"`
	ChargeDate time.Time `gorm:"column:charge_date"`
	Notes      *string   `gorm:"column:notes"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (AdminCharge) TableName() string {
	return "admin_charges"
}
