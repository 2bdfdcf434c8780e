// Package di wires the note engine's databases, repositories, services and jobs.
package di

import (
	"github.com/aristath/noteengine/internal/database"
	"github.com/aristath/noteengine/internal/events"
	"github.com/aristath/noteengine/internal/modules/products"
	"github.com/aristath/noteengine/internal/scheduler"
)

// Container holds all application dependencies.
// It is the single source of truth for service instances and is handed to the server.
type Container struct {
	// Databases
	NotesDB *database.DB

	// Repositories
	ProductRepo *products.Repository

	// Services
	EventBus       *events.Bus
	ProductService *products.Service

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs for manual triggering
type JobInstances struct {
	BarrierMonitor *scheduler.BarrierMonitorJob
	WALCheckpoint  *scheduler.WALCheckpointJob
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.NotesDB == nil {
		return nil
	}
	return c.NotesDB.Close()
}
