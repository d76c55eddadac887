package main

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
)

// Job states.
const (
	jobPending = "pending"
	jobRunning = "running"
	jobDone    = "done"
	jobEmpty   = "empty"
	jobFailed  = "failed"
)

// job is an asynchronous pipeline run started through POST /jobs.
type job struct {
	ID          string             `json:"job_id"`
	Status      string             `json:"status"`
	Filter      model.SearchFilter `json:"filter"`
	File        string             `json:"file,omitempty"`
	DownloadURL string             `json:"download_url,omitempty"`
	Stats       *pipeline.Stats    `json:"stats,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
}

// shortID returns the first eight characters of a UUID, enough to keep
// output names apart.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newRunTag() string { return shortID(uuid.NewString()) }

// jobStore keeps job state in memory for the lifetime of the server.
type jobStore struct {
	mu   sync.RWMutex
	jobs map[string]*job
}

func newJobStore() *jobStore {
	return &jobStore{jobs: make(map[string]*job)}
}

func (s *jobStore) create(f model.SearchFilter, now time.Time) job {
	j := &job{ID: uuid.NewString(), Status: jobPending, Filter: f, CreatedAt: now}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return *j
}

// get returns a copy of the job.
func (s *jobStore) get(id string) (job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return job{}, false
	}
	return *j, true
}

func (s *jobStore) update(id string, fn func(*job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}

func (s *jobStore) remove(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}
