package di

import (
	"fmt"

	"github.com/aristath/noteengine/internal/config"
	"github.com/aristath/noteengine/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens notes.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// notes.db - product terms, prices and the append-only observation history
	notesDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger, // breach and fixing history is never rewritten
		Name:    "notes",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notes database: %w", err)
	}

	if err := notesDB.Migrate(); err != nil {
		notesDB.Close()
		return nil, fmt.Errorf("failed to migrate notes database: %w", err)
	}
	container.NotesDB = notesDB

	log.Info().Str("path", notesDB.Path()).Msg("Notes database initialized")
	return container, nil
}
