package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/fundraiser/internal/api"
	"github.com/charlesng35/fundraiser/internal/app"
	"github.com/charlesng35/fundraiser/internal/app/maintenance"
	"github.com/charlesng35/fundraiser/internal/audit"
	iauth "github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/auth/providers"
	"github.com/charlesng35/fundraiser/internal/database"
	"github.com/charlesng35/fundraiser/internal/geo"
	"github.com/charlesng35/fundraiser/internal/monitoring"
	"github.com/charlesng35/fundraiser/internal/monitoring/checks"
	"github.com/charlesng35/fundraiser/internal/notifications"
	"github.com/charlesng35/fundraiser/internal/services"
	"github.com/charlesng35/fundraiser/pkg/logger"
	"github.com/charlesng35/fundraiser/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Queue   *notifications.Queue
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, services, background jobs and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		return nil, errors.New("auth.jwt.secret must be configured")
	}

	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Queue, err = buildNotificationQueue(cfg, log)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	health := monitoring.NewHealthManager(0)
	health.RegisterReadiness(checks.Database(stack.DB))

	var resolver geo.Resolver = geo.Noop{}
	if cfg.Geo.Enabled {
		client := geo.NewClient(cfg.Geo.ClientConfig())
		health.RegisterReadiness(checks.CircuitBreaker("geo", client))
		resolver = client
	}

	sessionSvc, err := iauth.NewSessionService(stack.DB, iauth.SessionConfig{Geo: resolver})
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	interceptor, err := audit.NewInterceptor(stack.DB, audit.NewBuilder(audit.BuilderOptions{}))
	if err != nil {
		return nil, fmt.Errorf("initialise audit interceptor: %w", err)
	}

	users, err := providers.NewLocalProvider(stack.DB, interceptor, cfg.Auth.LocalProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise local provider: %w", err)
	}

	authCfg := iauth.AuthenticatorConfig{
		Store:      users,
		Sessions:   sessionSvc,
		Tokens:     jwtSvc,
		ResolveGeo: cfg.Geo.Enabled,
	}
	if stack.Queue != nil {
		authCfg.Notifier = stack.Queue
	}
	authenticator, err := iauth.NewAuthenticator(authCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise authenticator: %w", err)
	}

	auditSvc, err := services.NewAuditService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	campaigns, err := services.NewCampaignService(stack.DB, interceptor)
	if err != nil {
		return nil, fmt.Errorf("initialise campaign service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(sessionSvc,
		maintenance.WithIdleTimeout(cfg.Sessions.IdleTimeout),
		maintenance.WithSessionSchedule(cfg.Sessions.SweepSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(cfg, api.Services{
		DB:            stack.DB,
		JWT:           jwtSvc,
		Sessions:      sessionSvc,
		Authenticator: authenticator,
		Users:         users,
		Audit:         auditSvc,
		Campaigns:     campaigns,
		Health:        health,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildNotificationQueue returns nil when no administrator address is configured.
func buildNotificationQueue(cfg *app.Config, log *zap.Logger) (*notifications.Queue, error) {
	recipients := cfg.Notifications.Recipients()
	if len(recipients) == 0 {
		log.Warn("no admin emails configured; unexpected failures are only logged")
		return nil, nil
	}

	mailer, err := mail.NewMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	sink, err := notifications.NewMailSink(mailer, cfg.Email.SMTP.From, recipients...)
	if err != nil {
		return nil, fmt.Errorf("initialise notification sink: %w", err)
	}

	queue, err := notifications.NewQueue(sink, cfg.Notifications.QueueConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise notification queue: %w", err)
	}
	return queue, nil
}

// Shutdown stops background jobs, drains the notification queue and closes the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("stop maintenance jobs: %w", ctx.Err()))
		}
	}

	if s.Queue != nil {
		if err := s.Queue.Close(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("drain notifications: %w", err))
		}
	}

	if s.DB != nil {
		if err := closeDatabase(s.DB); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		log.Warn("shutdown completed with errors", zap.Error(errs))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = closeDatabase(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("obtain sql DB for closing: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
