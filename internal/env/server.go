package environment

import (
	"log/slog"
	"net/http"

	"wb-tariffs/internal/config"
)

type Servers struct {
	HTTP struct {
		Observability *http.Server
	}
}

func newServers(cfg config.Config, logger *slog.Logger, clients *Clients) *Servers {
	var servers Servers

	servers.HTTP.Observability = initObservability(logger.WithGroup("http"), clients, cfg)

	return &servers
}
