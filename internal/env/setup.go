package environment

import (
	"context"
	"fmt"
	"log/slog"

	"wb-tariffs/internal/config"
	"wb-tariffs/internal/infra/database"

	"github.com/joho/godotenv"
)

type closer func()

type Env struct {
	Config   *config.Config
	Logger   *slog.Logger
	Servers  *Servers
	Clients  *Clients
	Services *Services

	Closers []closer
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig(ctx context.Context) (*config.Config, error) {
	// .env может отсутствовать, ошибку игнорируем
	_ = godotenv.Load()

	return config.Load(ctx)
}

func Setup(ctx context.Context) (*Env, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(*cfg)
	if err != nil {
		return nil, fmt.Errorf("initLogger: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var e Env
	e.Config = cfg
	e.Logger = logger

	clients, closers, err := newClients(ctx, *cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("newClients: %w", err)
	}
	e.Clients = clients
	e.Closers = closers

	services, err := newServices(ctx, clients, cfg, logger)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("newServices: %w", err)
	}
	e.Services = services

	e.Servers = newServers(*cfg, logger, clients)

	return &e, nil
}

// Close runs the closers in reverse order of acquisition.
func (e *Env) Close() {
	for i := len(e.Closers) - 1; i >= 0; i-- {
		e.Closers[i]()
	}
	e.Closers = nil
}

// Tooling is the reduced environment of the database CLI: it needs no
// marketplace credentials and no spreadsheet backend.
type Tooling struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *database.DB
}

func SetupTooling(ctx context.Context) (*Tooling, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	logger, err := initLogger(*cfg)
	if err != nil {
		return nil, fmt.Errorf("initLogger: %w", err)
	}

	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}

	db, err := provideDatabase(ctx, *cfg)
	if err != nil {
		return nil, err
	}

	return &Tooling{Config: cfg, Logger: logger, DB: db}, nil
}
