package jobs

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rhymeswithjazz/pull-list/internal/config"
	"github.com/rhymeswithjazz/pull-list/internal/notify"
	"github.com/rhymeswithjazz/pull-list/internal/pulllist"
	"github.com/rhymeswithjazz/pull-list/internal/websocket"
)

// JobGenerate is the id of the pull-list generation job.
const JobGenerate = "pulllist-generate"

// JobContext is an interface that provides the necessary dependencies for a
// job to run. The core.App struct implements this interface.
type JobContext interface {
	DB() *sql.DB
	Config() *config.Config
	WsHub() *websocket.Hub
	JobManager() *JobManager
	PullList() *pulllist.Service
	Notifier() *notify.Notifier
}

// JobStatus is the dashboard-visible state of one job.
type JobStatus struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // "idle", "running", "success", "failed"
	Message   string    `json:"message"`
	StartTime time.Time `json:"start_time,omitempty"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

// JobManager is a single-flight guard: at most one job runs at a time,
// whether triggered by the scheduler or by hand. Callers bracket their work
// with Begin and Finish rather than handing the manager a closure, so a
// manual trigger can run synchronously and return its result to the client.
type JobManager struct {
	mu      sync.Mutex
	status  map[string]*JobStatus
	running bool
	hub     *websocket.Hub // nil in tests
}

// NewManager creates a JobManager. hub may be nil, in which case status
// changes are not broadcast.
func NewManager(hub *websocket.Hub) *JobManager {
	jm := &JobManager{
		status: make(map[string]*JobStatus),
		hub:    hub,
	}
	jm.status[JobGenerate] = &JobStatus{ID: JobGenerate, Status: "idle"}
	return jm
}

// Begin claims the single run slot for a job. It fails when any job is
// already running.
func (jm *JobManager) Begin(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if jm.running {
		return fmt.Errorf("a job is already running")
	}
	st, ok := jm.status[id]
	if !ok {
		st = &JobStatus{ID: id}
		jm.status[id] = st
	}

	jm.running = true
	st.Status = "running"
	st.Message = "Job started..."
	st.StartTime = time.Now()
	st.EndTime = time.Time{}

	log.Printf("Starting job: %s", id)
	jm.broadcastLocked(st)
	return nil
}

// Finish releases the run slot and records the outcome.
func (jm *JobManager) Finish(id string, err error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	st, ok := jm.status[id]
	if !ok {
		return
	}
	st.EndTime = time.Now()
	if err != nil {
		st.Status = "failed"
		st.Message = err.Error()
	} else {
		st.Status = "success"
		st.Message = "Job completed successfully."
	}
	jm.running = false

	log.Printf("Finished job: %s (%s)", id, st.Status)
	jm.broadcastLocked(st)
}

// GetStatus returns a snapshot of every known job's status.
func (jm *JobManager) GetStatus() []*JobStatus {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	var statuses []*JobStatus
	for _, s := range jm.status {
		copied := *s
		statuses = append(statuses, &copied)
	}
	return statuses
}

// IsRunning reports whether any job currently holds the run slot.
func (jm *JobManager) IsRunning() bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.running
}

func (jm *JobManager) broadcastLocked(st *JobStatus) {
	if jm.hub == nil {
		return
	}
	copied := *st
	jm.hub.BroadcastJSON(struct {
		Type string    `json:"type"`
		Job  JobStatus `json:"job"`
	}{Type: "job_status", Job: copied})
}
