package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-kv-service/library/config"
	"github.com/Astemirdum/library-kv-service/library/internal/events"
	"github.com/Astemirdum/library-kv-service/library/internal/handler"
	"github.com/Astemirdum/library-kv-service/library/internal/repository"
	"github.com/Astemirdum/library-kv-service/library/internal/server"
	"github.com/Astemirdum/library-kv-service/library/internal/service"
	"github.com/Astemirdum/library-kv-service/library/migrations"
	"github.com/Astemirdum/library-kv-service/pkg/breaker"
	"github.com/Astemirdum/library-kv-service/pkg/kafka"
	"github.com/Astemirdum/library-kv-service/pkg/kv"
	"github.com/Astemirdum/library-kv-service/pkg/kv/dynamo"
	"github.com/Astemirdum/library-kv-service/pkg/kv/memkv"
	"github.com/Astemirdum/library-kv-service/pkg/kv/pgkv"
	"github.com/Astemirdum/library-kv-service/pkg/logger"
	"github.com/Astemirdum/library-kv-service/pkg/postgres"
)

const shutdownTimeout = 5 * time.Second

// Run serves the HTTP API until SIGINT/SIGTERM or ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config")
	}

	store, closeStore, err := newStore(ctx, cfg, log)
	if err != nil {
		return errors.Wrap(err, "store init")
	}
	defer closeStore()

	publisher, closePublisher, err := newPublisher(cfg.Kafka, log)
	if err != nil {
		return errors.Wrap(err, "kafka.NewProducer")
	}
	defer closePublisher()

	categories := repository.NewCategoryRepository(store, cfg.Tables.Categories, log)
	books := repository.NewBookRepository(store, cfg.Tables.Books, categories, log)
	emprunts := repository.NewEmpruntRepository(store, cfg.Tables.Emprunts, cfg.Tables.LoanLocks, books, log)
	svc := service.NewService(categories, books, emprunts, publisher, log)

	h := handler.New(svc, log, handler.WithAllowOrigins(cfg.Server.AllowOrigins...))
	srv := server.NewServer(cfg.Server, h.NewRouter())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
			zap.String("driver", string(cfg.Driver)))
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown")

		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}

// Migrate prepares the storage of the configured driver: goose migrations for
// postgres, missing tables for dynamodb.
func Migrate(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "migrate")
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config")
	}
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Migrate(ctx, &cfg.Database, migrations.MigrationFiles)
	case config.DriverDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.Dynamo)
		if err != nil {
			return err
		}
		return dynamo.New(client, log).EnsureTables(ctx, cfg.Tables.All()...)
	}
	log.Info("nothing to migrate", zap.String("driver", string(cfg.Driver)))
	return nil
}

func newStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (kv.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.Dynamo)
		if err != nil {
			return nil, nil, err
		}
		store := dynamo.New(client, log)
		if cfg.Dynamo.CreateTables {
			if err := store.EnsureTables(ctx, cfg.Tables.All()...); err != nil {
				return nil, nil, errors.Wrap(err, "ensure tables")
			}
		}
		return store, func() {}, nil
	case config.DriverPostgres:
		pool, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
		if err != nil {
			return nil, nil, err
		}
		return pgkv.New(pool, log), pool.Close, nil
	case config.DriverMemory:
		log.Warn("in-memory store: data is lost on exit")
		return memkv.New(), func() {}, nil
	}
	return nil, nil, errors.Errorf("unknown driver %q", cfg.Driver)
}

func newPublisher(cfg kafka.Config, log *zap.Logger) (events.Publisher, func(), error) {
	if !cfg.Enabled() {
		return events.Noop{}, func() {}, nil
	}
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, nil, err
	}
	p := events.NewKafkaPublisher(producer, kafka.EmpruntsTopic, breaker.New(breaker.Settings{
		RecordLength:     10,
		Timeout:          30 * time.Second,
		Percentile:       0.5,
		RecoveryRequests: 3,
	}))
	return p, func() {
		if err := p.Close(); err != nil {
			log.Error("producer close", zap.Error(err))
		}
	}, nil
}
