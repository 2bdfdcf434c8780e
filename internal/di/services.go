package di

import (
	"github.com/aristath/noteengine/internal/config"
	"github.com/aristath/noteengine/internal/events"
	"github.com/aristath/noteengine/internal/modules/products"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event bus and the product service
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.ProductService = products.NewService(container.ProductRepo, container.EventBus, cfg.DefaultCurrency, log)
	log.Debug().Msg("Services initialized")
	return nil
}
