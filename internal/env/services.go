package environment

import (
	"context"
	"log/slog"

	"wb-tariffs/internal/config"
	"wb-tariffs/internal/migrations"
	"wb-tariffs/internal/seeds"
	"wb-tariffs/internal/storage"
	"wb-tariffs/internal/stories/tariffs"
	"wb-tariffs/internal/worker"
	"wb-tariffs/internal/workers/tariffsync"

	"github.com/pkg/errors"
)

type Services struct {
	Migrator      *migrations.Migrator
	Seeder        *seeds.Seeder
	WorkerService *worker.Service
	TariffSync    *tariffsync.Worker
}

func newServices(_ context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	migrator, err := migrations.New(clients.DB.DB.DB, clients.DB.Driver(), logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create migrator")
	}
	s.Migrator = migrator
	s.Seeder = seeds.New(clients.DB.DB, nil, logger)

	storageImpl := storage.New(clients.DB.DB)
	tariffService := tariffs.NewService(storageImpl)

	location, err := cfg.Sync.Location()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sync timezone")
	}

	s.TariffSync = tariffsync.NewWorker(
		clients.Wildberries,
		tariffService,
		storageImpl,
		clients.Sheets,
		tariffsync.Config{
			SheetName: cfg.Sheets.SheetName,
			SortBy:    cfg.Sheets.SortBy,
			Location:  location,
		},
		logger,
	)

	s.WorkerService = worker.NewService(worker.Config{
		Location:   location,
		RunTimeout: cfg.Sync.RunTimeout,
	}, logger)

	if err := s.WorkerService.Add(cfg.Sync.Schedule, s.TariffSync); err != nil {
		return nil, errors.Wrap(err, "failed to schedule tariff sync")
	}

	return &s, nil
}

// Prepare brings the schema to the latest version and applies the seeds.
func (s *Services) Prepare(ctx context.Context, logger *slog.Logger) error {
	applied, err := s.Migrator.Latest(ctx)
	if err != nil {
		return errors.Wrap(err, "migrate")
	}
	inserted, err := s.Seeder.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "seed")
	}
	logger.Info("Database prepared", "applied_migrations", applied, "seeded_rows", inserted)
	return nil
}
