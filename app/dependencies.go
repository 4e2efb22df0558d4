package app

import (
	"context"
	"fmt"

	"github.com/upb/calendar-api/config"
	"github.com/upb/calendar-api/internal/auth"
	"github.com/upb/calendar-api/middleware"
	"github.com/upb/calendar-api/repositories"
	"github.com/upb/calendar-api/repositories/postgres"
	"github.com/upb/calendar-api/services"
	"github.com/upb/calendar-api/utils"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	Events    repositories.EventRepository
	TxManager repositories.TransactionManager

	// Auth
	Tokens         *auth.TokenService
	Revocations    *auth.RevocationList
	Hasher         auth.PasswordHasher
	AuthMiddleware *middleware.AuthMiddleware

	// Request handling
	BodyReader *utils.BodyReader

	// Services
	AuthService  *services.AuthService
	EventService *services.EventService

	stopJanitor context.CancelFunc
	janitorDone chan struct{}
}

// NewDependencies opens the database, creates the schema and wires up all
// application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := newDependencies(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// NewDependenciesWithDB wires the dependencies over an already opened pool.
// The schema is assumed to exist.
func NewDependenciesWithDB(cfg *config.Config, db *postgres.DB, logger *zap.Logger) (*Dependencies, error) {
	return newDependencies(cfg, postgres.NewRepositoryFactoryWithDB(db, logger), logger)
}

func newDependencies(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.BodyReader = utils.NewBodyReader(cfg.Body.ReadTimeout, cfg.Body.MaxBytes)

	deps.AuthService = services.NewAuthService(deps.Users, deps.Hasher, deps.Tokens, deps.Revocations, logger)
	deps.EventService = services.NewEventService(deps.Events, deps.TxManager, logger)

	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Events = repos.Events
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}

	d.Tokens = tokens
	d.Revocations = auth.NewRevocationList()
	d.Hasher = auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Tokens, d.Revocations, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("issuer", cfg.Auth.Issuer),
		zap.Duration("token_ttl", tokens.TTL()))
	return nil
}

// StartBackground starts the revocation janitor. It stops when ctx is
// cancelled or Close is called.
func (d *Dependencies) StartBackground(ctx context.Context) {
	if d.stopJanitor != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	d.stopJanitor = cancel
	d.janitorDone = make(chan struct{})

	interval := d.Config.Auth.RevocationPruneInterval
	go func() {
		defer close(d.janitorDone)
		d.Revocations.Run(ctx, interval, func(removed int) {
			d.Logger.Debug("pruned revoked tokens",
				zap.Int("removed", removed),
				zap.Int("remaining", d.Revocations.Len()))
		})
	}()

	d.Logger.Info("revocation janitor started", zap.Duration("interval", interval))
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopJanitor != nil {
		d.stopJanitor()
		select {
		case <-d.janitorDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("revocation janitor did not stop: %w", ctx.Err()))
		}
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
