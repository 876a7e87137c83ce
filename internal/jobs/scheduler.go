package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder persists job records. Satisfied by the vault store.
type Recorder interface {
	CreateJob(j *Job) error
	MarkJobRunning(id string) error
	FinishJob(id string, status Status, errMsg string) error
	UpdateJobProgress(id string, progress float64, message string) error
	CancelJob(id string) (bool, error)
}

// Fn is the work a job performs. It should return promptly once the ticket's
// context is cancelled.
type Fn func(ctx context.Context, t *Ticket) error

// Scheduler runs jobs on a bounded worker pool. Job state lives in memory
// and is mirrored to the Recorder; the in-memory view is authoritative for
// the life of the process.
type Scheduler struct {
	rec     Recorder
	sem     chan struct{}
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*task
	order []string
	subs  []chan Update
}

type task struct {
	job    Job
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler running at most workers jobs at once.
func NewScheduler(rec Recorder, workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		rec:     rec,
		sem:     make(chan struct{}, workers),
		baseCtx: ctx,
		stop:    cancel,
		tasks:   make(map[string]*task),
	}
}

// Submit queues a job and returns its ID.
func (s *Scheduler) Submit(kind, citekey string, fn Fn) (string, error) {
	j := Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Citekey:   citekey,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.rec.CreateJob(&j); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	t := &task{job: j, cancel: cancel}

	s.mu.Lock()
	s.tasks[j.ID] = t
	s.order = append(s.order, j.ID)
	s.mu.Unlock()
	s.notify(Update{JobID: j.ID, Status: StatusPending})

	s.wg.Add(1)
	go s.run(ctx, j.ID, fn)

	return j.ID, nil
}

// Cancel requests cancellation. It returns true iff the job was still
// pending or running; terminal jobs are left untouched.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || t.job.Status.Terminal() {
		s.mu.Unlock()
		return false
	}

	now := time.Now().UTC()
	t.job.Status = StatusCancelled
	t.job.FinishedAt = &now
	cancel := t.cancel
	s.mu.Unlock()

	cancel()
	s.rec.CancelJob(id)
	s.notify(Update{JobID: id, Status: StatusCancelled})
	return true
}

// Status returns a job's current state.
func (s *Scheduler) Status(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Job{}, false
	}
	return t.job, true
}

// Snapshot returns all jobs in submission order.
func (s *Scheduler) Snapshot() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id].job)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Subscribe returns a channel of job updates. Slow subscribers drop
// notifications rather than stalling workers.
func (s *Scheduler) Subscribe() <-chan Update {
	ch := make(chan Update, 64)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Wait blocks until all submitted jobs finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Shutdown cancels outstanding jobs, waits for workers, and closes
// subscriber channels.
func (s *Scheduler) Shutdown() {
	s.stop()
	s.wg.Wait()

	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, ch := range subs {
		close(ch)
	}
}

func (s *Scheduler) run(ctx context.Context, id string, fn Fn) {
	defer s.wg.Done()

	// Wait for a worker slot; a job cancelled while pending never starts.
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return
	}

	s.mu.Lock()
	t := s.tasks[id]
	if t.job.Status != StatusPending {
		s.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	t.job.Status = StatusRunning
	t.job.StartedAt = &now
	s.mu.Unlock()

	s.rec.MarkJobRunning(id)
	s.notify(Update{JobID: id, Status: StatusRunning})

	err := fn(ctx, &Ticket{s: s, id: id, ctx: ctx})

	s.mu.Lock()
	if t.job.Status.Terminal() {
		// Cancel already recorded the terminal state.
		s.mu.Unlock()
		return
	}
	finished := time.Now().UTC()
	t.job.FinishedAt = &finished

	status := StatusCompleted
	errMsg := ""
	if err != nil {
		status = StatusFailed
		errMsg = err.Error()
		t.job.Error = errMsg
	} else {
		t.job.Progress = 1
	}
	t.job.Status = status
	progress := t.job.Progress
	s.mu.Unlock()

	s.rec.FinishJob(id, status, errMsg)
	s.notify(Update{JobID: id, Status: status, Progress: progress, Error: errMsg})
}

func (s *Scheduler) notify(u Update) {
	s.mu.Lock()
	subs := make([]chan Update, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Ticket is handed to a running job for progress reporting and
// cancellation checks.
type Ticket struct {
	s   *Scheduler
	id  string
	ctx context.Context
}

// Context returns the job's cancellation context.
func (t *Ticket) Context() context.Context {
	return t.ctx
}

// Cancelled reports whether cancellation was requested.
func (t *Ticket) Cancelled() bool {
	return t.ctx.Err() != nil
}

// SetProgress records progress in [0, 1]. Progress never decreases;
// regressions are ignored.
func (t *Ticket) SetProgress(p float64, message string) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	t.s.mu.Lock()
	tk, ok := t.s.tasks[t.id]
	if !ok || tk.job.Status.Terminal() || p < tk.job.Progress {
		t.s.mu.Unlock()
		return
	}
	tk.job.Progress = p
	tk.job.Message = message
	status := tk.job.Status
	t.s.mu.Unlock()

	t.s.rec.UpdateJobProgress(t.id, p, message)
	t.s.notify(Update{JobID: t.id, Status: status, Progress: p, Message: message})
}
