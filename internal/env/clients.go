package environment

import (
	"context"
	"fmt"
	"log/slog"

	"wb-tariffs/internal/config"
	"wb-tariffs/internal/httpclient"
	"wb-tariffs/internal/infra/database"
	"wb-tariffs/internal/infra/gsheets"
	"wb-tariffs/internal/infra/xlsx"
	"wb-tariffs/internal/wildberries"
	"wb-tariffs/internal/workers/tariffsync"
)

type Clients struct {
	DB          *database.DB
	Wildberries *wildberries.Client
	Sheets      tariffsync.Publisher
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, []closer, error) {
	var closers []closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := provideDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	})

	wb, wbClosers, err := provideWildberries(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, wbClosers...)

	sheets, err := provideSheets(ctx, cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &Clients{
		DB:          db,
		Wildberries: wb,
		Sheets:      sheets,
	}, closers, nil
}

func provideDatabase(ctx context.Context, cfg config.Config) (*database.DB, error) {
	var opts []database.Option

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		opts = []database.Option{
			database.WithDriver(database.DriverSQLite),
			database.WithDSN(cfg.SQLite.Path),
			database.WithMaxOpenConns(cfg.SQLite.MaxOpenConns),
			database.WithMaxIdleConns(cfg.SQLite.MaxIdleConns),
			database.WithConnMaxLifetime(cfg.SQLite.MaxLifetime),
		}
	default:
		pg := cfg.Postgres
		opts = []database.Option{
			database.WithDriver(database.DriverPostgres),
			database.WithDSN(database.PostgresDSN(pg.Host, pg.Port, pg.DB, pg.User, pg.Password, pg.SSLMode)),
			database.WithMaxOpenConns(pg.MaxOpenConns),
			database.WithMaxIdleConns(pg.MaxIdleConns),
			database.WithConnMaxLifetime(pg.MaxLifetime),
		}
	}

	return database.New(ctx, opts...)
}

func provideWildberries(cfg config.Config, logger *slog.Logger) (*wildberries.Client, []closer, error) {
	wb := cfg.Wildberries

	var (
		opts    []httpclient.Option
		closers []closer
	)
	if wb.LogPayloads && wb.LogPath != "" {
		f, err := httpclient.OpenExchangeLog(wb.LogPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, httpclient.WithExchangeLog(f))
		closers = append(closers, func() { _ = f.Close() })
	}

	client := wildberries.NewClient(wildberries.Config{
		BaseURL:     wb.BaseURL,
		APIKey:      wb.APIKey,
		UserAgent:   wb.UserAgent,
		Timeout:     wb.Timeout,
		Retries:     wb.MaxRetries,
		RetryDelay:  wb.RetryInterval,
		RateLimit:   wb.RateLimit.RPS,
		RateBurst:   wb.RateLimit.Burst,
		LogPayloads: wb.LogPayloads,
	}, logger, opts...)

	return client, closers, nil
}

func provideSheets(ctx context.Context, cfg config.Config, logger *slog.Logger) (tariffsync.Publisher, error) {
	switch cfg.Sheets.Backend {
	case config.SheetsXLSX:
		client, err := xlsx.NewClient(cfg.Sheets.XLSXDir, logger)
		if err != nil {
			return nil, fmt.Errorf("xlsx client: %w", err)
		}
		return client, nil
	default:
		client, err := gsheets.NewClient(ctx, cfg.Sheets.CredentialsFile, logger)
		if err != nil {
			return nil, fmt.Errorf("google sheets client: %w", err)
		}
		return client, nil
	}
}
