package providers

import (
	"github.com/samber/do/v2"

	"github.com/bookscoutapp/bookscout-server/internal/config"
	"github.com/bookscoutapp/bookscout-server/internal/hardcover"
	"github.com/bookscoutapp/bookscout-server/internal/logger"
)

// HardcoverClientHandle wraps the Hardcover client with shutdown capability.
type HardcoverClientHandle struct {
	*hardcover.Client
}

// Shutdown implements do.Shutdownable.
func (h *HardcoverClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideHardcoverClient provides the rate-limited Hardcover GraphQL client.
// The client is created even without a token; calls fail with a
// configuration error until one is set, and the server still serves the
// local mirror and stored suggestions.
func ProvideHardcoverClient(i do.Injector) (*HardcoverClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client := hardcover.New(hardcover.Config{
		Token:         cfg.Hardcover.Token,
		Endpoint:      cfg.Hardcover.Endpoint,
		SearchTimeout: cfg.Hardcover.SearchTimeout,
		ListTimeout:   cfg.Hardcover.ListTimeout,
	}, log.Logger)

	if cfg.Hardcover.Token == "" {
		log.Warn("No Hardcover token configured - crawling disabled until HARDCOVER_TOKEN is set")
	}

	return &HardcoverClientHandle{Client: client}, nil
}
