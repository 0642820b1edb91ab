package jobs_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rhymeswithjazz/pull-list/internal/jobs"
	"github.com/rhymeswithjazz/pull-list/internal/websocket"
)

func TestManager_NewManager(t *testing.T) {
	mgr := jobs.NewManager(websocket.NewHub())
	assert.NotNil(t, mgr)
	statuses := mgr.GetStatus()
	assert.Len(t, statuses, 1)
	assert.Equal(t, "idle", statuses[0].Status)
}

func TestManager_BeginAndFinish(t *testing.T) {
	mgr := jobs.NewManager(nil)

	assert.NoError(t, mgr.Begin(jobs.JobGenerate))
	assert.True(t, mgr.IsRunning())

	statuses := mgr.GetStatus()
	assert.Equal(t, "running", statuses[0].Status)

	mgr.Finish(jobs.JobGenerate, nil)
	assert.False(t, mgr.IsRunning())
	statuses = mgr.GetStatus()
	assert.Equal(t, "success", statuses[0].Status)
	assert.False(t, statuses[0].EndTime.IsZero())
}

func TestManager_FinishWithError(t *testing.T) {
	mgr := jobs.NewManager(nil)
	assert.NoError(t, mgr.Begin(jobs.JobGenerate))
	mgr.Finish(jobs.JobGenerate, errors.New("library unreachable"))

	statuses := mgr.GetStatus()
	assert.Equal(t, "failed", statuses[0].Status)
	assert.Contains(t, statuses[0].Message, "library unreachable")
}

func TestManager_SingleFlight(t *testing.T) {
	mgr := jobs.NewManager(nil)
	assert.NoError(t, mgr.Begin(jobs.JobGenerate))
	assert.Error(t, mgr.Begin(jobs.JobGenerate), "second begin must fail while running")
	mgr.Finish(jobs.JobGenerate, nil)
	assert.NoError(t, mgr.Begin(jobs.JobGenerate), "slot must free up after finish")
	mgr.Finish(jobs.JobGenerate, nil)
}

func TestManager_Concurrency(t *testing.T) {
	mgr := jobs.NewManager(nil)

	var mu sync.Mutex
	var started int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mgr.Begin(jobs.JobGenerate); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, started, "only one begin should win concurrently")
}
