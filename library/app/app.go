package app

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/book-library/library/config"
	"github.com/Astemirdum/book-library/library/internal/handler"
	"github.com/Astemirdum/book-library/library/internal/repository"
	"github.com/Astemirdum/book-library/library/internal/server"
	"github.com/Astemirdum/book-library/library/internal/service"
	"github.com/Astemirdum/book-library/library/internal/service/metadata"
	"github.com/Astemirdum/book-library/library/migrations"
	"github.com/Astemirdum/book-library/pkg/auth"
	"github.com/Astemirdum/book-library/pkg/kafka"
	"github.com/Astemirdum/book-library/pkg/logger"
	"github.com/Astemirdum/book-library/pkg/postgres"
)

const shutdownTimeout = 5 * time.Second

// Run serves the HTTP API until SIGINT or SIGTERM.
func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		return errors.Wrap(err, "token issuer")
	}

	var publisher service.Publisher = service.NopPublisher{}
	if cfg.Kafka.Enabled() {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return errors.Wrap(err, "kafka.NewProducer")
		}
		defer closeProducer(producer, log)
		topic := cfg.Kafka.Topic
		if topic == "" {
			topic = kafka.TransactionsTopic
		}
		publisher = service.NewKafkaPublisher(producer, topic)
		log.Info("ledger events enabled", zap.Strings("addrs", cfg.Kafka.Addrs), zap.String("topic", topic))
	}

	svc, err := newService(db, cfg, issuer, publisher, log)
	if err != nil {
		return err
	}

	h := handler.New(svc, issuer, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server start ON: ",
			zap.String("addr",
				net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
		return srv.Run()
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Debug("Graceful shutdown", zap.Error(context.Cause(gCtx)))

		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "server")
	}
	log.Info("Graceful shutdown finished")
	return nil
}

// Migrate applies pending migrations and exits.
func Migrate(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "migrate")
	}
	log.Info("migrations applied")
	return db.Close()
}

// CreateAdmin stores an administrator account.
func CreateAdmin(ctx context.Context, cfg *config.Config, username, password string) error {
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()

	svc, err := newService(db, cfg, nil, nil, log)
	if err != nil {
		return err
	}
	user, err := svc.CreateAdmin(ctx, username, password)
	if err != nil {
		return err
	}
	log.Info("admin created", zap.Int("id", user.ID), zap.String("username", user.Username))
	return nil
}

func newService(db *sqlx.DB, cfg *config.Config, issuer service.TokenIssuer, publisher service.Publisher, log *zap.Logger) (*service.Service, error) {
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return nil, errors.Wrap(err, "repo")
	}
	lookup := metadata.NewService(log, cfg.Metadata)
	return service.NewService(repo, lookup, issuer, publisher, log), nil
}

func closeProducer(producer sarama.SyncProducer, log *zap.Logger) {
	if err := producer.Close(); err != nil {
		log.Error("kafka producer close", zap.Error(err))
	}
}
