// Package scheduler runs the daily ingestion and trend jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrUnknownJob is returned by RunNow for a name that was never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// JobStatus is a snapshot of a registered job.
type JobStatus struct {
	Name       string    `json:"name"`
	Spec       string    `json:"spec"`
	Running    bool      `json:"running"`
	Runs       int       `json:"runs"`
	Skipped    int       `json:"skipped"`
	LastStart  time.Time `json:"last_start,omitempty"`
	LastFinish time.Time `json:"last_finish,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Next       time.Time `json:"next,omitempty"`
}

type jobState struct {
	name    string
	spec    string
	job     Job
	entryID cron.EntryID

	running    bool
	runs       int
	skipped    int
	lastStart  time.Time
	lastFinish time.Time
	lastErr    error
}

// Scheduler manages cron jobs. A job never overlaps with itself: a tick
// that fires while the previous run is still active is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *log.Logger

	mu   sync.Mutex
	jobs map[string]*jobState
}

// New creates a new Scheduler. Jobs receive ctx when they run.
func New(ctx context.Context, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		logger: logger,
		jobs:   make(map[string]*jobState),
	}
}

// Register adds a job under name with a six-field cron spec.
func (s *Scheduler) Register(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("register %s: already registered", name)
	}

	st := &jobState{name: name, spec: spec, job: job}
	id, err := s.cron.AddFunc(spec, func() { s.execute(st) })
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	st.entryID = id
	s.jobs[name] = st
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Printf("[scheduler] started with %d jobs", n)
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Printf("[scheduler] stopped")
}

// RunNow executes a registered job synchronously (manual trigger / run on start).
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	st, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(st)
}

// Status returns a snapshot of every job ordered by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, st := range s.jobs {
		js := JobStatus{
			Name:       st.name,
			Spec:       st.spec,
			Running:    st.running,
			Runs:       st.runs,
			Skipped:    st.skipped,
			LastStart:  st.lastStart,
			LastFinish: st.lastFinish,
			Next:       s.cron.Entry(st.entryID).Next,
		}
		if st.lastErr != nil {
			js.LastError = st.lastErr.Error()
		}
		out = append(out, js)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(st *jobState) error {
	s.mu.Lock()
	if st.running {
		st.skipped++
		s.mu.Unlock()
		s.logger.Printf("[scheduler] WARN: %s still running, skipping tick", st.name)
		return nil
	}
	st.running = true
	st.lastStart = time.Now()
	s.mu.Unlock()

	s.logger.Printf("[scheduler] running %s", st.name)
	err := st.job(s.ctx)

	s.mu.Lock()
	st.running = false
	st.runs++
	st.lastFinish = time.Now()
	st.lastErr = err
	elapsed := st.lastFinish.Sub(st.lastStart)
	s.mu.Unlock()

	if err != nil {
		s.logger.Printf("[scheduler] ERROR: %s failed after %s: %v", st.name, elapsed.Round(time.Millisecond), err)
		return err
	}
	s.logger.Printf("[scheduler] %s finished in %s", st.name, elapsed.Round(time.Millisecond))
	return nil
}
