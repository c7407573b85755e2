package payment

import (
	"fmt"
	"math/rand"
	"time"

	paymentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/payment"
)

// Payment is the workflow view of a payment row. A payment belongs to
// exactly one appointment; the fee split is frozen at creation time so later
// fee changes never alter a collected payment.
type Payment struct {
	ID            int64   `json:"id"`
	AppointmentID int64   `json:"appointment_id"`
	DoctorFee     float64 `json:"doctor_fee"`
	TreatmentFee  float64 `json:"treatment_fee"`
	ClinicCharges float64 `json:"clinic_charges"`
	TotalAmount   float64 `json:"total_amount"`

	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	ReceiptNumber string    `json:"receipt_number,omitempty"`
	PaymentDate   time.Time `json:"payment_date"`

	ReceiptFileName   *string    `json:"receipt_file_name,omitempty"`
	ReceiptFilePath   *string    `json:"-"`
	ReceiptUploadDate *time.Time `json:"receipt_upload_date,omitempty"`
	ReceiptVerified   bool       `json:"receipt_verified"`
	VerifiedBy        *string    `json:"verified_by,omitempty"`
	VerificationDate  *time.Time `json:"verification_date,omitempty"`

	RefundAmount *float64   `json:"refund_amount,omitempty"`
	RefundDate   *time.Time `json:"refund_date,omitempty"`
	RefundReason *string    `json:"refund_reason,omitempty"`

	PaymentNotes *string   `json:"payment_notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanBeVerified: only uploads sitting in the verification queue.
func (p *Payment) CanBeVerified() bool {
	return p.Status == paymentDatamodel.StatusPendingVerification
}

// CanBeRefunded: only money actually collected can go back.
func (p *Payment) CanBeRefunded() bool {
	return p.Status == paymentDatamodel.StatusSuccess
}

// CanBeDeleted: successful payments are the financial record and stay.
func (p *Payment) CanBeDeleted() bool {
	return p.Status != paymentDatamodel.StatusSuccess
}

// IsActive reports whether this payment still blocks a new one for the same
// appointment. Only rejected and failed attempts free the appointment up.
func (p *Payment) IsActive() bool {
	return p.Status != paymentDatamodel.StatusRejected &&
		p.Status != paymentDatamodel.StatusFailed
}

// CalculateTotal is the one place the amount math lives.
func CalculateTotal(doctorFee, treatmentFee, clinicCharge float64) float64 {
	return doctorFee + treatmentFee + clinicCharge
}

// NewTransactionID generates the internal payment reference. The random
// suffix avoids same-millisecond collisions; the unique index on
// transaction_id is the hard guarantee.
func NewTransactionID() string {
	return fmt.Sprintf("TXN%d%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// NewReceiptNumber generates the customer-facing receipt reference issued
// for collected cash.
func NewReceiptNumber() string {
	return fmt.Sprintf("RCP%d", time.Now().UnixMilli())
}

func ToDataModel(p *Payment) *paymentDatamodel.Payment {
	return &paymentDatamodel.Payment{
		ID:                p.ID,
		AppointmentID:     p.AppointmentID,
		DoctorFee:         p.DoctorFee,
		TreatmentFee:      p.TreatmentFee,
		ClinicCharges:     p.ClinicCharges,
		TotalAmount:       p.TotalAmount,
		PaymentMethod:     p.PaymentMethod,
		Status:            p.Status,
		TransactionID:     p.TransactionID,
		ReceiptNumber:     p.ReceiptNumber,
		PaymentDate:       p.PaymentDate,
		ReceiptFileName:   p.ReceiptFileName,
		ReceiptFilePath:   p.ReceiptFilePath,
		ReceiptUploadDate: p.ReceiptUploadDate,
		ReceiptVerified:   p.ReceiptVerified,
		VerifiedBy:        p.VerifiedBy,
		VerificationDate:  p.VerificationDate,
		RefundAmount:      p.RefundAmount,
		RefundDate:        p.RefundDate,
		RefundReason:      p.RefundReason,
		PaymentNotes:      p.PaymentNotes,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func FromDataModel(p *paymentDatamodel.Payment) *Payment {
	return &Payment{
		ID:                p.ID,
		AppointmentID:     p.AppointmentID,
		DoctorFee:         p.DoctorFee,
		TreatmentFee:      p.TreatmentFee,
		ClinicCharges:     p.ClinicCharges,
		TotalAmount:       p.TotalAmount,
		PaymentMethod:     p.PaymentMethod,
		Status:            p.Status,
		TransactionID:     p.TransactionID,
		ReceiptNumber:     p.ReceiptNumber,
		PaymentDate:       p.PaymentDate,
		ReceiptFileName:   p.ReceiptFileName,
		ReceiptFilePath:   p.ReceiptFilePath,
		ReceiptUploadDate: p.ReceiptUploadDate,
		ReceiptVerified:   p.ReceiptVerified,
		VerifiedBy:        p.VerifiedBy,
		VerificationDate:  p.VerificationDate,
		RefundAmount:      p.RefundAmount,
		RefundDate:        p.RefundDate,
		RefundReason:      p.RefundReason,
		PaymentNotes:      p.PaymentNotes,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func FromDataModelSlice(payments []*paymentDatamodel.Payment) []*Payment {
	result := make([]*Payment, len(payments))
	for i, p := range payments {
		result[i] = FromDataModel(p)
	}
	return result
}
