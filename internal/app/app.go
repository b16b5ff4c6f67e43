// Package app assembles the clubwheel services from configuration and runs them.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/fadedpez/clubwheel/internal/config"
	"github.com/fadedpez/clubwheel/internal/httpapi"
	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/pkg/db"
	"github.com/fadedpez/clubwheel/pkg/feed"
	"github.com/fadedpez/clubwheel/pkg/geo"
	"github.com/fadedpez/clubwheel/pkg/notify"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	clubRepo "github.com/fadedpez/clubwheel/pkg/repositories/club"
	prizeRepo "github.com/fadedpez/clubwheel/pkg/repositories/prize"
	referralRepo "github.com/fadedpez/clubwheel/pkg/repositories/referral"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
	"github.com/fadedpez/clubwheel/pkg/scheduler"
	"github.com/fadedpez/clubwheel/pkg/services/account"
	"github.com/fadedpez/clubwheel/pkg/services/analytics"
	"github.com/fadedpez/clubwheel/pkg/services/catalog"
	"github.com/fadedpez/clubwheel/pkg/services/club"
	"github.com/fadedpez/clubwheel/pkg/services/referral"
	"github.com/fadedpez/clubwheel/pkg/services/spin"
	"github.com/fadedpez/clubwheel/pkg/services/wallet"
	"github.com/fadedpez/clubwheel/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const referralQueueSize = 256

// Repositories are the storage backends behind the services
type Repositories struct {
	Accounts  accountRepo.Repository
	Clubs     clubRepo.Repository
	Prizes    prizeRepo.Repository
	Spins     spinRepo.Repository
	Referrals referralRepo.Repository
}

// App owns every long-lived component of the server
type App struct {
	config      *config.Config
	log         *logging.Logger
	server      *httpapi.Server
	pool        *worker.Pool
	maintenance *scheduler.Maintenance

	closers    []func() error
	shutdownWg sync.WaitGroup
}

// New wires repositories, optional integrations and services from cfg
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default
	}
	a := &App{
		config: cfg,
		log:    logger.With("app"),
	}

	repos, err := a.openRepositories(ctx)
	if err != nil {
		return nil, err
	}

	var indexer *spinRepo.ElasticsearchIndexer
	if cfg.ElasticsearchURL != "" {
		indexer, err = spinRepo.NewElasticsearchIndexer(ctx, repos.Spins, spinRepo.ElasticsearchConfig{
			URL:       cfg.ElasticsearchURL,
			Username:  cfg.ElasticsearchUsername,
			Password:  cfg.ElasticsearchPassword,
			Index:     cfg.ElasticsearchIndex,
			Retention: cfg.ElasticsearchRetention,
		}, logger)
		if err != nil {
			a.log.Warn("Elasticsearch unavailable, spins will not be indexed: %v", err)
			indexer = nil
		} else {
			repos.Spins = indexer
			a.log.Info("Indexing spins into Elasticsearch at %s", cfg.ElasticsearchURL)
		}
	}

	accounts := account.NewService(repos.Accounts, repos.Clubs, logger)
	clubs := club.NewService(repos.Clubs, repos.Accounts, repos.Spins, logger)
	ledger := wallet.NewService(repos.Accounts, cfg.RegistrationBonus, logger)
	prizes := catalog.NewService(repos.Prizes, logger)

	referrals := referral.NewService(repos.Accounts, repos.Referrals, repos.Spins, ledger, referral.Config{
		Points:      cfg.ReferralPoints,
		MaxPerMonth: cfg.ReferralMaxPerMonth,
	}, logger)
	a.pool = worker.NewPool(cfg.ReferralWorkers, referralQueueSize, logger)

	spins := spin.NewService(spin.Config{
		Access:    accounts,
		Clubs:     clubs,
		Prizes:    repos.Prizes,
		Spins:     repos.Spins,
		Ledger:    ledger,
		Geofence:  geo.NewGate(cfg.GeofenceRadiusMeters, cfg.GeoBypassPhone, cfg.GeoBypassEnabled),
		Feed:      a.openFeed(ctx),
		Notifier:  a.openNotifier(logger),
		Referrals: referral.NewDispatcher(referrals, a.pool, logger),
		Cost:      cfg.SpinCost,
		Cooldown:  cfg.SpinCooldown,
		Logger:    logger,
	})

	var wins analytics.WinCounter
	var pruner scheduler.IndexPruner
	if indexer != nil {
		wins, pruner = indexer, indexer
	}

	a.maintenance = scheduler.NewMaintenance(accounts, clubs, pruner, logger)
	a.server = httpapi.New(httpapi.Services{
		Spins:     spins,
		Catalog:   prizes,
		Clubs:     clubs,
		Wallet:    ledger,
		Accounts:  accounts,
		Analytics: analytics.NewService(repos.Accounts, repos.Clubs, repos.Prizes, repos.Spins, wins, logger),
	}, cfg.JWTSecret, logger)

	return a, nil
}

// openRepositories picks memory or SQLite storage
func (a *App) openRepositories(ctx context.Context) (*Repositories, error) {
	if a.config.StorageType != "sqlite" {
		a.log.Info("Using in-memory storage (data will be lost on restart)")
		return &Repositories{
			Accounts:  accountRepo.NewMemoryRepository(),
			Clubs:     clubRepo.NewMemoryRepository(),
			Prizes:    prizeRepo.NewMemoryRepository(),
			Spins:     spinRepo.NewMemoryRepository(),
			Referrals: referralRepo.NewMemoryRepository(),
		}, nil
	}

	conn, err := db.Open(ctx, a.config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, conn.Close)
	a.log.Info("Using SQLite storage at %s", a.config.DBPath)
	return sqliteRepositories(conn), nil
}

func sqliteRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		Accounts:  accountRepo.NewSQLiteRepository(conn),
		Clubs:     clubRepo.NewSQLiteRepository(conn),
		Prizes:    prizeRepo.NewSQLiteRepository(conn),
		Spins:     spinRepo.NewSQLiteRepository(conn),
		Referrals: referralRepo.NewSQLiteRepository(conn),
	}
}

// openFeed shares the recent-wins list through Redis when configured, in process otherwise
func (a *App) openFeed(ctx context.Context) feed.Feed {
	if a.config.RedisAddr == "" {
		return feed.NewRing(a.config.RecentWinsCapacity)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.config.RedisAddr,
		Password: a.config.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		a.log.Warn("Redis ping failed, keeping recent wins in process: %v", err)
		client.Close()
		return feed.NewRing(a.config.RecentWinsCapacity)
	}

	a.closers = append(a.closers, client.Close)
	a.log.Info("Sharing recent wins through Redis at %s", a.config.RedisAddr)
	return feed.NewRedisFeed(client, feed.DefaultRedisKey, a.config.RecentWinsCapacity)
}

// openNotifier always logs wins and also posts them to Discord when a token is set
func (a *App) openNotifier(logger *logging.Logger) notify.Notifier {
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if a.config.DiscordToken == "" {
		return notifiers
	}

	session, err := notify.NewSession(a.config.DiscordToken)
	if err != nil {
		a.log.Warn("Discord announcements disabled: %v", err)
		return notifiers
	}
	discord := notify.NewDiscordNotifier(session, a.config.DiscordWinsChannelID)
	a.closers = append(a.closers, discord.Close)
	return append(notifiers, discord)
}

// Start launches the background workers and the HTTP server
func (a *App) Start(ctx context.Context) error {
	a.pool.Start(ctx)
	a.maintenance.Start(ctx)

	errs := make(chan error, 1)
	a.shutdownWg.Add(1)
	go func() {
		defer a.shutdownWg.Done()
		if err := a.server.Listen(a.config.HTTPAddr); err != nil {
			a.log.Error("HTTP server stopped: %v", err)
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	default:
		return nil
	}
}

// Shutdown stops the HTTP server first, then drains background work and closes connections
func (a *App) Shutdown(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("Error shutting down HTTP server: %v", err)
	}
	a.shutdownWg.Wait()

	a.maintenance.Stop()
	a.pool.Stop()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("Error closing resource: %v", err)
		}
	}
}
