package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"plotbot/config"
	"plotbot/pkg/logger"
	"plotbot/storage"
)

type Store struct {
	pool *pgxpool.Pool
	log  logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IStorage, error) {
	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDB,
	)

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("Postgres ping failed", logger.Error(err))
		return nil, err
	}

	if err := runMigrations(url, cfg.MigrationsPath, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected", logger.String("host", cfg.PostgresHost), logger.String("db", cfg.PostgresDB))

	return &Store{
		pool: pool,
		log:  log,
	}, nil
}

func runMigrations(url, dir string, log logger.ILogger) error {
	mPath := dir
	if !filepath.IsAbs(mPath) {
		cwd, _ := os.Getwd()
		mPath = filepath.Join(cwd, dir)
	}

	if _, err := os.Stat(mPath); err != nil {
		log.Warning("migrations directory not found, skipping", logger.String("path", mPath))
		return nil
	}

	m, err := migrate.New("file://"+mPath, url)
	if err != nil {
		log.Error("migration init error", logger.Error(err))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) User() storage.IUserStorage                 { return NewUserRepo(s.pool, s.log) }
func (s *Store) Reading() storage.IReadingStorage           { return NewReadingRepo(s.pool, s.log) }
func (s *Store) Payment() storage.IPaymentStorage           { return NewPaymentRepo(s.pool, s.log) }
func (s *Store) Tariff() storage.ITariffStorage             { return NewTariffRepo(s.pool, s.log) }
func (s *Store) Registration() storage.IRegistrationStorage { return NewRegistrationRepo(s.pool, s.log) }
func (s *Store) BotAction() storage.IBotActionStorage       { return NewBotActionRepo(s.pool, s.log) }
func (s *Store) Notification() storage.INotificationStorage { return NewNotificationRepo(s.pool, s.log) }
