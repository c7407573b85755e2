package payment

import (
	"time"

	"github.com/ayurlink/clinic-management/internal"
)

// MaxReceiptSize caps receipt uploads at 5MB.
const MaxReceiptSize = 5 << 20

// allowedReceiptContentTypes whitelists what the front desk can open:
// images and PDFs, nothing executable.
var allowedReceiptContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"application/pdf": true,
}

func IsAllowedReceiptContentType(contentType string) bool {
	return allowedReceiptContentTypes[contentType]
}

// CashPaymentDTO records money collected at the front desk.
type CashPaymentDTO struct {
	AppointmentID int64   `json:"appointment_id"`
	Notes         *string `json:"notes,omitempty"`
}

func (dto CashPaymentDTO) Validate() error {
	if dto.AppointmentID <= 0 {
		return internal.NewValidationFieldError("appointment_id", "appointment_id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// RejectPaymentDTO: a rejection always carries a reason the patient sees.
type RejectPaymentDTO struct {
	Reason string `json:"reason"`
}

func (dto RejectPaymentDTO) Validate() error {
	if dto.Reason == "" {
		return internal.NewValidationFieldError("reason", "reason is required when rejecting a payment", internal.ErrCodeValidationFailed)
	}
	return nil
}

// RefundPaymentDTO: same rule for refunds.
type RefundPaymentDTO struct {
	Reason string `json:"reason"`
}

func (dto RefundPaymentDTO) Validate() error {
	if dto.Reason == "" {
		return internal.NewValidationFieldError("reason", "reason is required when refunding a payment", internal.ErrCodeValidationFailed)
	}
	return nil
}

// BankDetailsDTO is what patients transfer against before uploading the slip.
type BankDetailsDTO struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	Branch        string `json:"branch"`
	SwiftCode     string `json:"swift_code"`
}

// BreakdownDTO itemizes what a booking will cost before any payment exists.
type BreakdownDTO struct {
	AppointmentID int64   `json:"appointment_id"`
	DoctorFee     float64 `json:"doctor_fee"`
	TreatmentFee  float64 `json:"treatment_fee"`
	ClinicCharge  float64 `json:"clinic_charge"`
	TotalAmount   float64 `json:"total_amount"`
}

// DailySummaryDTO aggregates one calendar day of payments.
type DailySummaryDTO struct {
	Date           string  `json:"date"`
	TotalCollected float64 `json:"total_collected"`
	TotalRefunded  float64 `json:"total_refunded"`
	CashTotal      float64 `json:"cash_total"`
	TransferTotal  float64 `json:"transfer_total"`
	PaymentCount   int     `json:"payment_count"`
	RefundCount    int     `json:"refund_count"`
}

// MonthlySummaryDTO aggregates a calendar month.
type MonthlySummaryDTO struct {
	Year           int     `json:"year"`
	Month          int     `json:"month"`
	TotalCollected float64 `json:"total_collected"`
	TotalRefunded  float64 `json:"total_refunded"`
	PaymentCount   int     `json:"payment_count"`
	RefundCount    int     `json:"refund_count"`
}

// StatisticsDTO is the admin dashboard rollup across all payments.
type StatisticsDTO struct {
	TotalCollected      float64 `json:"total_collected"`
	TotalRefunded       float64 `json:"total_refunded"`
	PendingVerification int     `json:"pending_verification"`
	SuccessCount        int     `json:"success_count"`
	RejectedCount       int     `json:"rejected_count"`
	RefundedCount       int     `json:"refunded_count"`
}

// ExportRow is one line of the payment report, joined across the
// appointment and its parties.
type ExportRow struct {
	ReceiptNumber string
	TransactionID string
	PatientName   string
	PatientNIC    string
	DoctorName    string
	TreatmentName string
	Amount        float64
	PaymentMethod string
	Status        string
	PaymentDate   time.Time
}
