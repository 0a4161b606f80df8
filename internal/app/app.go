// Package app wires the development password API: storage, services,
// handlers and the gin router.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"cleancharcoal/internal/config"
	"cleancharcoal/internal/handlers"
	"cleancharcoal/internal/middleware"
	"cleancharcoal/internal/repositories"
	"cleancharcoal/internal/routes"
	"cleancharcoal/internal/services"
)

type App struct {
	Router *gin.Engine

	cfg *config.Config
	log zerolog.Logger
	db  *sql.DB
}

type options struct {
	emails services.EmailService
	now    func() time.Time
}

type Option func(*options)

// WithEmailService replaces SMTP delivery, e.g. to capture codes in tests.
func WithEmailService(es services.EmailService) Option {
	return func(o *options) { o.emails = es }
}

// WithNow replaces the clock used for code expiry and throttling.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds the API. With database.url set users and codes are kept in
// PostgreSQL, otherwise in memory. Seed users are created in either case.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, log: log}

	// === Repos ===
	var (
		userRepo  repositories.UserRepository
		resetRepo repositories.PasswordResetRepository
	)
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := repositories.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		userRepo = repositories.NewUserRepository(db)
		resetRepo = repositories.NewPasswordResetRepository(db)
		log.Info().Msg("storage: postgres")
	} else {
		userRepo = repositories.NewMemoryUserRepository()
		resetRepo = repositories.NewMemoryPasswordResetRepository()
		log.Info().Msg("storage: memory")
	}

	// === Services ===
	authService := services.NewAuthService(cfg.DevAPI.BcryptCost)
	emailService := o.emails
	if emailService == nil {
		emailService = services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
			cfg.Email.DryRun,
			log,
		)
	}
	resetService := services.NewPasswordResetService(userRepo, resetRepo, emailService, authService, services.PasswordResetOptions{
		CodeTTL:      cfg.DevAPI.OTPTTL(),
		ResendWindow: cfg.DevAPI.ResendWindow(),
		MaxAttempts:  cfg.DevAPI.MaxAttempts,
		Now:          o.now,
		Logger:       log,
	})

	for _, u := range cfg.SeedUsers {
		if err := services.SeedUser(ctx, userRepo, authService, u.Email, u.FullName, u.Role, u.Password); err != nil {
			a.Close()
			return nil, fmt.Errorf("seed users: %w", err)
		}
	}
	log.Info().Int("count", len(cfg.SeedUsers)).Msg("seed users ready")

	// === Handlers ===
	resetHandler := handlers.NewPasswordResetHandler(resetService)

	// === Gin ===
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log.With().Str("component", "http").Logger()))
	router.Use(middleware.CORS())

	routes.SetupRoutes(router, resetHandler, routes.CSRFNames{
		Cookie: cfg.API.CSRFCookie,
		Header: cfg.API.CSRFHeader,
	})
	a.Router = router
	return a, nil
}

// Close releases the database, if any.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run serves on the configured port until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
