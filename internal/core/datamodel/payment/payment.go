package payment

import "time"

const (
	StatusPending             = "PENDING"
	StatusPendingVerification = "PENDING_VERIFICATION"
	StatusSuccess             = "SUCCESS"
	StatusRejected            = "REJECTED"
	StatusRefunded            = "REFUNDED"
	StatusFailed              = "FAILED"
	StatusCancelled           = "CANCELLED"

	MethodCash          = "CASH"
	MethodReceiptUpload = "RECEIPT_UPLOAD"
)

type Payment struct {
	ID            int64   `gorm:"primaryKey"`
	AppointmentID int64   `gorm:"column:appointment_id;not null"`
	DoctorFee     float64 `gorm:"column:doctor_fee;not null"`
	TreatmentFee  float64 `gorm:"column:treatment_fee;not null"`
	ClinicCharges float64 `gorm:"column:clinic_charges;not null"`
	TotalAmount   float64 `gorm:"column:total_amount;not null"`

	PaymentMethod string `gorm:"column:payment_method;not null"`
	Status        string `gorm:"column:status;default:PENDING"`
	TransactionID string `gorm:"column:transaction_id;uniqueIndex"`
	// Receipt numbers are only issued for collected cash; uniqueness over
	// the non-empty ones is enforced by a partial index in the migration.
	ReceiptNumber string    `gorm:"column:receipt_number;index"`
	PaymentDate   time.Time `gorm:"column:payment_date"`

	ReceiptFileName   *string    `gorm:"column:receipt_file_name"`
	ReceiptFilePath   *string    `gorm:"column:receipt_file_path"`
	ReceiptUploadDate *time.Time `gorm:"column:receipt_upload_date"`
	ReceiptVerified   bool       `gorm:"column:receipt_verified;default:false"`
	VerifiedBy        *string    `gorm:"column:verified_by"`
	VerificationDate  *time.Time `gorm:"column:verification_date"`

	RefundAmount *float64   `gorm:"column:refund_amount"`
	RefundDate   *time.Time `gorm:"column:refund_date"`
	RefundReason *string    `gorm:"column:refund_reason"`

	PaymentNotes *string   `gorm:"column:payment_notes"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
