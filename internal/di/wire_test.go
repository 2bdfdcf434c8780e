package di

import (
	"path/filepath"
	"testing"

	"github.com/aristath/noteengine/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:         t.TempDir(),
		MonitorSchedule: "0 */15 * * * *",
		DefaultCurrency: "EUR",
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.NotesDB)
	assert.NotNil(t, container.ProductRepo)
	assert.NotNil(t, container.ProductService)
	assert.NotNil(t, container.EventBus)
	require.NotNil(t, container.Scheduler)

	assert.NotNil(t, jobs.BarrierMonitor)
	assert.NotNil(t, jobs.WALCheckpoint)
	assert.ElementsMatch(t, []string{"barrier_monitor", "wal_checkpoint"}, container.Scheduler.Jobs())

	assert.Equal(t, filepath.Join(cfg.DataDir, "notes.db"), container.NotesDB.Path())
	assert.NoError(t, container.Scheduler.RunNow("barrier_monitor"))
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonitorSchedule = "*/15 * * * *"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}
