package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/ayurlink/clinic-management/internal/appointment"
	"github.com/ayurlink/clinic-management/internal/auth"
	clinicDatamodel "github.com/ayurlink/clinic-management/internal/core/datamodel/clinic"
	"github.com/ayurlink/clinic-management/internal/earnings"
	"github.com/ayurlink/clinic-management/internal/payment"
	"github.com/ayurlink/clinic-management/internal/schedule"
	"github.com/ayurlink/clinic-management/internal/transport/middleware"
	"github.com/ayurlink/clinic-management/internal/transport/swagger"
)

// Handlers bundles the domain handlers the router mounts.
type Handlers struct {
	Schedule    *schedule.Handler
	Appointment *appointment.Handler
	Payment     *payment.Handler
	Earnings    *earnings.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, verifier *auth.TokenVerifier, handlers Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve the OpenAPI spec at root, outside the API prefix
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Slot availability is public so patients can browse before login
		r.Get("/doctors/{doctorID}/slots", handlers.Schedule.GetAvailableSlots)

		r.Group(func(pr chi.Router) {
			pr.Use(verifier.Middleware)

			pr.Route("/appointments", func(ar chi.Router) {
				ar.Post("/", handlers.Appointment.Book)
				ar.Get("/{id}", handlers.Appointment.GetAppointment)
				ar.Get("/ticket/{ticket}", handlers.Appointment.GetByTicket)
				ar.Patch("/{id}/cancel", handlers.Appointment.Cancel)
				ar.Patch("/{id}/reschedule", handlers.Appointment.Reschedule)

				ar.Group(func(dr chi.Router) {
					dr.Use(auth.RequireRole(clinicDatamodel.RoleDoctor, clinicDatamodel.RoleAdmin))
					dr.Patch("/{id}/complete", handlers.Appointment.Complete)
				})

				ar.Group(func(adm chi.Router) {
					adm.Use(auth.RequireRole(clinicDatamodel.RoleAdmin))
					adm.Get("/", handlers.Appointment.ListAllAppointments)
				})

				ar.Get("/{id}/payments", handlers.Payment.ListAppointmentPayments)
				ar.Get("/{id}/payment-breakdown", handlers.Payment.GetBreakdown)
				ar.Post("/{id}/payments/cash", handlers.Payment.PayCash)
				ar.Post("/{id}/payments/receipt", handlers.Payment.UploadReceipt)
			})

			pr.Get("/patients/{patientID}/appointments", handlers.Appointment.ListPatientAppointments)
			pr.Get("/doctors/{doctorID}/appointments", handlers.Appointment.ListDoctorAppointments)

			pr.Route("/payments", func(pm chi.Router) {
				pm.Get("/bank-details", handlers.Payment.GetBankDetails)
				pm.Get("/{id}", handlers.Payment.GetPayment)
				pm.Get("/{id}/receipt", handlers.Payment.DownloadReceipt)

				pm.Group(func(adm chi.Router) {
					adm.Use(auth.RequireRole(clinicDatamodel.RoleAdmin))
					adm.Get("/", handlers.Payment.ListPayments)
					adm.Get("/pending-verification", handlers.Payment.ListPendingVerification)
					adm.Patch("/{id}/verify", handlers.Payment.Verify)
					adm.Patch("/{id}/reject", handlers.Payment.Reject)
					adm.Patch("/{id}/refund", handlers.Payment.Refund)
					adm.Delete("/{id}", handlers.Payment.Delete)
					adm.Get("/summary/daily", handlers.Payment.GetDailySummary)
					adm.Get("/summary/monthly", handlers.Payment.GetMonthlySummary)
					adm.Get("/statistics", handlers.Payment.GetStatistics)
					adm.Get("/export", handlers.Payment.ExportCSV)
				})
			})

			pr.Route("/doctors/{doctorID}/earnings", func(er chi.Router) {
				er.Use(auth.RequireRole(clinicDatamodel.RoleDoctor, clinicDatamodel.RoleAdmin))
				er.Get("/", handlers.Earnings.ListDoctorEarnings)
				er.Get("/summary", handlers.Earnings.GetSummary)
			})

			pr.Route("/earnings", func(er chi.Router) {
				er.Use(auth.RequireRole(clinicDatamodel.RoleAdmin))
				er.Get("/pending", handlers.Earnings.ListPending)
				er.Post("/{id}/settle", handlers.Earnings.Settle)
				er.Post("/reconcile", handlers.Earnings.Reconcile)
				er.Get("/charges", handlers.Earnings.ListCharges)
				er.Get("/charges/summary", handlers.Earnings.GetChargesSummary)
			})
		})
	})
}
