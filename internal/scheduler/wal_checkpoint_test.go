package scheduler

import (
	"testing"

	testutil "github.com/aristath/noteengine/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestWALCheckpointJob_Name(t *testing.T) {
	job := NewWALCheckpointJob(nil, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", job.Name())
}

func TestWALCheckpointJob_Run_NoDatabase(t *testing.T) {
	job := NewWALCheckpointJob(nil, zerolog.Nop())
	assert.NoError(t, job.Run())
}

func TestWALCheckpointJob_Run(t *testing.T) {
	db, cleanup := testutil.NewTestDB(t, "notes")
	defer cleanup()

	job := NewWALCheckpointJob(db, zerolog.Nop())
	assert.NoError(t, job.Run())
}
