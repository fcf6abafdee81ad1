package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job tracks the progress of an asynchronous batch operation.
type Job struct {
	ID        string
	Name      string
	StartedAt time.Time
	Total     int

	mu         sync.Mutex
	done       bool
	finishedAt time.Time
	processed  int
	succeeded  int
	failed     int
	notified   int
}

// JobStatus is an immutable snapshot of a Job.
type JobStatus struct {
	ID         string    `json:"job_id"`
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Notified   int       `json:"notified"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

func newJob(name string, total int) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: time.Now(),
		Total:     total,
	}
}

func (j *Job) record(res checkResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed++
	if res.succeeded {
		j.succeeded++
	} else {
		j.failed++
	}
	if res.notified {
		j.notified++
	}
}

func (j *Job) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.done = true
	j.finishedAt = time.Now()
}

func (j *Job) Snapshot() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	state := "running"
	if j.done {
		state = "done"
	}
	return JobStatus{
		ID:         j.ID,
		Name:       j.Name,
		State:      state,
		Total:      j.Total,
		Processed:  j.processed,
		Succeeded:  j.succeeded,
		Failed:     j.failed,
		Notified:   j.notified,
		StartedAt:  j.StartedAt,
		FinishedAt: j.finishedAt,
	}
}
