package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeAppointmentBooked = "appointment.booked"
	EventTypePaymentVerified   = "payment.verified"
	EventTypePaymentRejected   = "payment.rejected"
	EventTypePaymentRefunded   = "payment.refunded"
	EventTypeEarningSettled    = "earning.settled"
)

type AppointmentBookedEvent struct {
	BaseEvent
	AppointmentID int64  `json:"appointment_id"`
	DoctorID      int64  `json:"doctor_id"`
	PatientID     int64  `json:"patient_id"`
	TicketNumber  string `json:"ticket_number"`
}

func NewAppointmentBookedEvent(appointmentID, doctorID, patientID int64, ticketNumber string) *AppointmentBookedEvent {
	return &AppointmentBookedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAppointmentBooked,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"appointment_id": appointmentID,
				"doctor_id":      doctorID,
				"patient_id":     patientID,
				"ticket_number":  ticketNumber,
			},
		},
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		PatientID:     patientID,
		TicketNumber:  ticketNumber,
	}
}

type PaymentVerifiedEvent struct {
	BaseEvent
	PaymentID     int64   `json:"payment_id"`
	AppointmentID int64   `json:"appointment_id"`
	TotalAmount   float64 `json:"total_amount"`
	VerifiedBy    string  `json:"verified_by"`
}

func NewPaymentVerifiedEvent(paymentID, appointmentID int64, totalAmount float64, verifiedBy string) *PaymentVerifiedEvent {
	return &PaymentVerifiedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentVerified,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"appointment_id": appointmentID,
				"total_amount":   totalAmount,
				"verified_by":    verifiedBy,
			},
		},
		PaymentID:     paymentID,
		AppointmentID: appointmentID,
		TotalAmount:   totalAmount,
		VerifiedBy:    verifiedBy,
	}
}

type PaymentRejectedEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	AppointmentID int64  `json:"appointment_id"`
	Reason        string `json:"reason"`
	VerifiedBy    string `json:"verified_by"`
}

func NewPaymentRejectedEvent(paymentID, appointmentID int64, reason, verifiedBy string) *PaymentRejectedEvent {
	return &PaymentRejectedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentRejected,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"appointment_id": appointmentID,
				"reason":         reason,
				"verified_by":    verifiedBy,
			},
		},
		PaymentID:     paymentID,
		AppointmentID: appointmentID,
		Reason:        reason,
		VerifiedBy:    verifiedBy,
	}
}

type PaymentRefundedEvent struct {
	BaseEvent
	PaymentID     int64   `json:"payment_id"`
	AppointmentID int64   `json:"appointment_id"`
	RefundAmount  float64 `json:"refund_amount"`
	Reason        string  `json:"reason"`
}

func NewPaymentRefundedEvent(paymentID, appointmentID int64, refundAmount float64, reason string) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentRefunded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":     paymentID,
				"appointment_id": appointmentID,
				"refund_amount":  refundAmount,
				"reason":         reason,
			},
		},
		PaymentID:     paymentID,
		AppointmentID: appointmentID,
		RefundAmount:  refundAmount,
		Reason:        reason,
	}
}

type EarningSettledEvent struct {
	BaseEvent
	EarningID int64   `json:"earning_id"`
	DoctorID  int64   `json:"doctor_id"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
}

func NewEarningSettledEvent(earningID, doctorID int64, amount float64, reference string) *EarningSettledEvent {
	return &EarningSettledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeEarningSettled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"earning_id": earningID,
				"doctor_id":  doctorID,
				"amount":     amount,
				"reference":  reference,
			},
		},
		EarningID: earningID,
		DoctorID:  doctorID,
		Amount:    amount,
		Reference: reference,
	}
}
