// @title           Sunnyside API
// @version         1.0
// @description     Plan activities with friends: describe an outing, invite people, collect availability before the response deadline, then finalize.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"sunnyside/config"
	_ "sunnyside/docs"
	"sunnyside/internal/adapters/auth"
	"sunnyside/internal/adapters/calendar"
	"sunnyside/internal/adapters/email"
	"sunnyside/internal/adapters/intent"
	"sunnyside/internal/cache"
	delhttp "sunnyside/internal/delivery/http"
	"sunnyside/internal/delivery/http/controllers"
	"sunnyside/internal/delivery/http/middleware"
	"sunnyside/internal/domain"
	"sunnyside/internal/repository/postgres"
	"sunnyside/internal/scheduler"
	"sunnyside/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.Migrate(ctx, db, logger); err != nil {
		return err
	}

	var activityCache domain.ActivityCache
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		activityCache = cache.NewActivityCache(rdb, cfg.CacheTTL)
		logger.Info("activity cache enabled", "ttl", cfg.CacheTTL)
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	activityRepo := postgres.NewActivityRepository(db)
	invitationRepo := postgres.NewInvitationRepository(db)

	// Adapters
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer)
	mailer := email.NewMailer(email.MailerConfig{
		Provider:    cfg.MailProvider,
		FromAddress: cfg.MailFromAddress,
		FromName:    cfg.MailFromName,
		SES: email.SESConfig{
			Region:             cfg.AWSRegion,
			AccessKeyID:        cfg.AWSAccessKeyID,
			SecretAccessKey:    cfg.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.SESInsecureSkipTLS,
		},
	}, logger)
	renderer, err := email.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("load email templates: %w", err)
	}
	interpreter := intent.NewPassthroughInterpreter()
	if cfg.IntentAPIURL != "" {
		interpreter = intent.NewHTTPInterpreter(&http.Client{Timeout: cfg.IntentTimeout}, cfg.IntentAPIURL, cfg.IntentAPIKey)
	}

	// Services
	emailService := services.NewEmailService(mailer, renderer, logger)
	userService := services.NewUserService(userRepo, hasher, jwtService, emailService, cfg.JWTExpiry, logger)
	activityService := services.NewActivityService(services.ActivityServiceDeps{
		Activities:     activityRepo,
		Invitations:    invitationRepo,
		Users:          userRepo,
		Interpreter:    interpreter,
		EmailService:   emailService,
		Calendar:       calendar.NewICSExporter(cfg.CalendarDomain),
		Cache:          activityCache,
		Logger:         logger,
		BaseURL:        cfg.AppBaseURL,
		ContextTimeout: cfg.RequestTimeout,
	})
	invitationService := services.NewInvitationService(invitationRepo, activityRepo, activityCache, logger, cfg.RequestTimeout)
	reminderService := services.NewReminderService(
		activityRepo, invitationRepo, userRepo, emailService, activityCache, logger, cfg.AppBaseURL, time.Minute,
	)

	// Reminder job
	cronRunner := scheduler.New(logger)
	if cfg.ReminderCron != "" {
		job := &scheduler.ReminderJob{Service: reminderService, Logger: logger, Timeout: time.Minute}
		if err := scheduler.ScheduleReminders(cronRunner, cfg.ReminderCron, job); err != nil {
			return err
		}
		logger.Info("deadline reminders scheduled", "cron", cfg.ReminderCron)
	}
	cronRunner.Start()

	// HTTP
	mux := delhttp.NewRouter(
		controllers.NewUserController(logger, userService),
		controllers.NewActivityController(logger, activityService),
		controllers.NewInvitationController(logger, invitationService),
		middleware.RequireAuth(jwtService, logger),
	)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.LoggingMiddleware(logger, middleware.CORS(cfg.CORSAllowedOrigins, mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", server.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		<-cronRunner.Stop().Done()
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	select {
	case <-cronRunner.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("reminder job still running at shutdown")
	}
	return nil
}
