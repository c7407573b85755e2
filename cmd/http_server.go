package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ayurlink/clinic-management/internal"
	"github.com/ayurlink/clinic-management/internal/appointment"
	appointmentPostgres "github.com/ayurlink/clinic-management/internal/appointment/postgres"
	"github.com/ayurlink/clinic-management/internal/auth"
	clinicPostgres "github.com/ayurlink/clinic-management/internal/clinic/postgres"
	"github.com/ayurlink/clinic-management/internal/core/events"
	"github.com/ayurlink/clinic-management/internal/earnings"
	earningsPostgres "github.com/ayurlink/clinic-management/internal/earnings/postgres"
	"github.com/ayurlink/clinic-management/internal/payment"
	paymentPostgres "github.com/ayurlink/clinic-management/internal/payment/postgres"
	"github.com/ayurlink/clinic-management/internal/schedule"
	"github.com/ayurlink/clinic-management/internal/storage"
	"github.com/ayurlink/clinic-management/internal/transport/rest"
	"github.com/ayurlink/clinic-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Router   *chi.Mux
	Verifier *auth.TokenVerifier
	Handlers rest.Handlers
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.Verifier, deps.Handlers, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	env := "development"
	if config.Logging.Format == "json" {
		env = "production"
	}
	logger.Init(env)
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// gorm rides on the already-pooled pgx connection
	gormDB, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: db.DB}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm over pgx: %w", err)
	}

	files, err := storage.NewLocalStore(config.Clinic.ReceiptUploadDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize receipt storage: %w", err)
	}

	bus := events.NewEventBus(log)
	registerEventSubscribers(bus, log)

	directory := clinicPostgres.NewDirectory(gormDB)
	appointmentRepo := appointmentPostgres.NewAppointmentRepository(gormDB)
	paymentRepo := paymentPostgres.NewPaymentRepository(gormDB)
	earningRepo := earningsPostgres.NewEarningRepository(gormDB)

	scheduleService := schedule.NewService(directory, appointmentRepo, config.Clinic.SlotDuration, log)
	appointmentService := appointment.NewService(appointmentRepo, directory, scheduleService, bus, log)
	paymentService := payment.NewService(paymentRepo, appointmentRepo, directory, files, bus,
		config.Clinic, config.Bank, log)
	earningsService := earnings.NewService(earningRepo, bus, log)

	verifier := auth.NewTokenVerifier(config.Security.JWTSecret, log)

	return &Dependencies{
		Config:   config,
		DB:       db,
		Router:   chi.NewRouter(),
		Verifier: verifier,
		Handlers: rest.Handlers{
			Schedule:    schedule.NewHandler(scheduleService),
			Appointment: appointment.NewHandler(appointmentService),
			Payment:     payment.NewHandler(paymentService),
			Earnings:    earnings.NewHandler(earningsService),
		},
		Logger: log,
	}, nil
}

// registerEventSubscribers attaches the observability listeners. Nothing
// here affects state; the ledger is written inside payment transactions.
func registerEventSubscribers(bus *events.EventBus, log *slog.Logger) {
	bus.Subscribe(events.EventTypeAppointmentBooked, func(ctx context.Context, e events.Event) error {
		log.Info("appointment booked", "event_id", e.EventID(), "payload", e.Payload())
		return nil
	})
	bus.Subscribe(events.EventTypePaymentVerified, func(ctx context.Context, e events.Event) error {
		log.Info("payment verified", "event_id", e.EventID(), "payload", e.Payload())
		return nil
	})
	bus.Subscribe(events.EventTypePaymentRejected, func(ctx context.Context, e events.Event) error {
		log.Info("payment rejected", "event_id", e.EventID(), "payload", e.Payload())
		return nil
	})
	bus.Subscribe(events.EventTypePaymentRefunded, func(ctx context.Context, e events.Event) error {
		log.Info("payment refunded", "event_id", e.EventID(), "payload", e.Payload())
		return nil
	})
	bus.Subscribe(events.EventTypeEarningSettled, func(ctx context.Context, e events.Event) error {
		log.Info("earning settled", "event_id", e.EventID(), "payload", e.Payload())
		return nil
	})
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
