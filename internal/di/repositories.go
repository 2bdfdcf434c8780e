package di

import (
	"github.com/aristath/noteengine/internal/modules/products"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories over the opened databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	container.ProductRepo = products.NewRepository(container.NotesDB.Conn(), log)
	log.Debug().Msg("Repositories initialized")
	return nil
}
