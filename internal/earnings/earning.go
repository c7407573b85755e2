package earnings

import (
	"time"

	earningDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/earning"
	paymentDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/payment"
)

// DoctorEarning is the doctor-facing view of one payment's share.
type DoctorEarning struct {
	ID        int64 `json:"id"`
	DoctorID  int64 `json:"doctor_id"`
	PaymentID int64 `json:"payment_id"`

	GrossAmount  float64 `json:"gross_amount"`
	AdminCharge  float64 `json:"admin_charge"`
	DoctorFee    float64 `json:"doctor_fee"`
	TreatmentFee float64 `json:"treatment_fee"`
	NetEarning   float64 `json:"net_earning"`

	Status              string     `json:"status"`
	PaymentDate         time.Time  `json:"payment_date"`
	SettlementDate      *time.Time `json:"settlement_date,omitempty"`
	SettlementReference *string    `json:"settlement_reference,omitempty"`
	Notes               *string    `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminCharge is the clinic-side ledger entry for the same payment.
type AdminCharge struct {
	ID        int64 `json:"id"`
	PaymentID int64 `json:"payment_id"`

	ClinicCharge       float64 `json:"clinic_charge"`
	TotalPaymentAmount float64 `json:"total_payment_amount"`
	DoctorEarning      float64 `json:"doctor_earning"`

	TreatmentName string `json:"treatment_name"`
	DoctorName    string `json:"doctor_name"`
	PatientName   string `json:"patient_name"`

	Status     string    `json:"status"`
	ChargeDate time.Time `json:"charge_date"`
	Notes      *string   `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanBeSettled: an earning pays out exactly once.
func (e *DoctorEarning) CanBeSettled() bool {
	return e.Status == earningDatamodel.EarningStatusPending
}

// LedgerEntries pairs the two rows written for every successful payment.
// They always travel together inside the payment's transaction.
type LedgerEntries struct {
	Earning *earningDatamodel.DoctorEarning
	Charge  *earningDatamodel.AdminCharge
}

// PartySnapshot carries the display names frozen into the admin charge so
// the ledger stays readable after doctor or treatment records change.
type PartySnapshot struct {
	DoctorID      int64
	DoctorName    string
	PatientName   string
	TreatmentName string
}

// BuildLedger derives both ledger rows from a payment. The doctor's net is
// the doctor fee plus the treatment fee; the clinic keeps its fixed charge.
func BuildLedger(p *paymentDatamodel.Payment, snapshot PartySnapshot) LedgerEntries {
	netEarning := p.DoctorFee + p.TreatmentFee

	earning := &earningDatamodel.DoctorEarning{
		DoctorID:     snapshot.DoctorID,
		PaymentID:    p.ID,
		GrossAmount:  p.TotalAmount,
		AdminCharge:  p.ClinicCharges,
		DoctorFee:    p.DoctorFee,
		TreatmentFee: p.TreatmentFee,
		NetEarning:   netEarning,
		Status:       earningDatamodel.EarningStatusPending,
		PaymentDate:  p.PaymentDate,
	}

	charge := &earningDatamodel.AdminCharge{
		PaymentID:          p.ID,
		ClinicCharge:       p.ClinicCharges,
		TotalPaymentAmount: p.TotalAmount,
		DoctorEarning:      netEarning,
		TreatmentName:      snapshot.TreatmentName,
		DoctorName:         snapshot.DoctorName,
		PatientName:        snapshot.PatientName,
		Status:             earningDatamodel.ChargeStatusCollected,
		ChargeDate:         p.PaymentDate,
	}

	return LedgerEntries{Earning: earning, Charge: charge}
}

func EarningFromDataModel(e *earningDatamodel.DoctorEarning) *DoctorEarning {
	return &DoctorEarning{
		ID:                  e.ID,
		DoctorID:            e.DoctorID,
		PaymentID:           e.PaymentID,
		GrossAmount:         e.GrossAmount,
		AdminCharge:         e.AdminCharge,
		DoctorFee:           e.DoctorFee,
		TreatmentFee:        e.TreatmentFee,
		NetEarning:          e.NetEarning,
		Status:              e.Status,
		PaymentDate:         e.PaymentDate,
		SettlementDate:      e.SettlementDate,
		SettlementReference: e.SettlementReference,
		Notes:               e.Notes,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func EarningsFromDataModelSlice(models []*earningDatamodel.DoctorEarning) []*DoctorEarning {
	result := make([]*DoctorEarning, len(models))
	for i, e := range models {
		result[i] = EarningFromDataModel(e)
	}
	return result
}

func ChargeFromDataModel(c *earningDatamodel.AdminCharge) *AdminCharge {
	return &AdminCharge{
		ID:                 c.ID,
		PaymentID:          c.PaymentID,
		ClinicCharge:       c.ClinicCharge,
		TotalPaymentAmount: c.TotalPaymentAmount,
		DoctorEarning:      c.DoctorEarning,
		TreatmentName:      c.TreatmentName,
		DoctorName:         c.DoctorName,
		PatientName:        c.PatientName,
		Status:             c.Status,
		ChargeDate:         c.ChargeDate,
		Notes:              c.Notes,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

func ChargesFromDataModelSlice(models []*earningDatamodel.AdminCharge) []*AdminCharge {
	result := make([]*AdminCharge, len(models))
	for i, c := range models {
		result[i] = ChargeFromDataModel(c)
	}
	return result
}
