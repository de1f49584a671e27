package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/geofence"
	"github.com/luxfi/geofence/detect"
	"github.com/luxfi/geofence/index"
	"github.com/luxfi/geofence/internal/catalog"
	"github.com/luxfi/geofence/internal/engine"
	"github.com/luxfi/geofence/internal/queue"
)

func newDetector(t *testing.T) *detect.Detector {
	t.Helper()
	c, err := geofence.NewContextFromLiteral(geofence.PN13QP206)
	require.NoError(t, err)
	d, err := engine.NewDetector(c, catalog.Fallback(), index.Config{}, detect.DefaultConfig())
	require.NoError(t, err)
	return d
}

func waitFor(t *testing.T, q queue.Queue, id string) *queue.Job {
	t.Helper()
	var job *queue.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.Get(context.Background(), id)
		if err != nil {
			return false
		}
		return job.Status == queue.StatusCompleted || job.Status == queue.StatusFailed
	}, 30*time.Second, 20*time.Millisecond)
	return job
}

func TestPool(t *testing.T) {
	q := queue.NewMemoryQueue(8)
	defer q.Close()

	pool := NewPool(q, newDetector(t), 2)
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrRunning)

	inside := queue.NewJob(38.65676812, -8.89353369)
	outside := queue.NewJob(38.66, -8.89)
	north := queue.NewJob(45.0, -8.0)
	for _, job := range []*queue.Job{inside, outside, north} {
		require.NoError(t, q.Push(context.Background(), job))
	}

	got := waitFor(t, q, inside.ID)
	require.Equal(t, queue.StatusCompleted, got.Status)
	assert.Equal(t, []string{"1212"}, got.Report.Matches())

	got = waitFor(t, q, outside.ID)
	require.Equal(t, queue.StatusCompleted, got.Status)
	assert.Empty(t, got.Report.Matches())
	require.Len(t, got.Report.Results, 1)
	assert.Equal(t, -1, got.Report.Results[0].Geofence)

	got = waitFor(t, q, north.ID)
	require.Equal(t, queue.StatusCompleted, got.Status)
	assert.Equal(t, detect.NoZonesEvaluated, got.Report.Message)

	require.NoError(t, pool.Stop())
	assert.Equal(t, int64(3), pool.Succeeded())
	assert.Zero(t, pool.Failed())
	require.NoError(t, pool.Stop())
}

func TestPoolStopsOnClose(t *testing.T) {
	q := queue.NewMemoryQueue(1)
	pool := NewPool(q, newDetector(t), 1)
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, q.Close())
	require.NoError(t, pool.Stop())
}
