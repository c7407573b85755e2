package earnings

import (
	"github.com/ayurlink/clinic-management/internal"
)

// SettleEarningDTO carries the payout reference the clinic's bank gave.
type SettleEarningDTO struct {
	Reference string  `json:"reference"`
	Notes     *string `json:"notes,omitempty"`
}

func (dto SettleEarningDTO) Validate() error {
	if dto.Reference == "" {
		return internal.NewValidationFieldError("reference", "settlement reference is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// EarningsSummaryDTO is the doctor dashboard rollup. Totals are over net
// earnings; refund-cancelled rows never count.
type EarningsSummaryDTO struct {
	DoctorID     int64   `json:"doctor_id"`
	Today        float64 `json:"today"`
	ThisWeek     float64 `json:"this_week"`
	ThisMonth    float64 `json:"this_month"`
	PendingTotal float64 `json:"pending_total"`
	SettledTotal float64 `json:"settled_total"`
	TotalEarned  float64 `json:"total_earned"`
	PendingCount int     `json:"pending_count"`
}

// ChargesSummaryDTO rolls up the clinic's side of the ledger.
type ChargesSummaryDTO struct {
	CollectedTotal float64 `json:"collected_total"`
	RefundedTotal  float64 `json:"refunded_total"`
	ChargeCount    int     `json:"charge_count"`
}
