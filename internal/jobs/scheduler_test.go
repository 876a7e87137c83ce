package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memRecorder is an in-memory Recorder for tests.
type memRecorder struct {
	mu      sync.Mutex
	created []string
	states  map[string]Status
}

func newMemRecorder() *memRecorder {
	return &memRecorder{states: make(map[string]Status)}
}

func (r *memRecorder) CreateJob(j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, j.ID)
	r.states[j.ID] = j.Status
	return nil
}

func (r *memRecorder) MarkJobRunning(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = StatusRunning
	return nil
}

func (r *memRecorder) FinishJob(id string, status Status, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = status
	return nil
}

func (r *memRecorder) UpdateJobProgress(id string, progress float64, message string) error {
	return nil
}

func (r *memRecorder) CancelJob(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[id] = StatusCancelled
	return true, nil
}

func (r *memRecorder) state(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[id]
}

func waitForStatus(t *testing.T, s *Scheduler, id string, want Status) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if j, ok := s.Status(id); ok && j.Status == want {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	j, _ := s.Status(id)
	t.Fatalf("job %s status = %q, want %q", id, j.Status, want)
	return Job{}
}

func TestJobCompletes(t *testing.T) {
	rec := newMemRecorder()
	s := NewScheduler(rec, 2)
	defer s.Shutdown()

	id, err := s.Submit("fetch", "smith2020", func(ctx context.Context, tk *Ticket) error {
		tk.SetProgress(0.5, "halfway")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	j := waitForStatus(t, s, id, StatusCompleted)
	if j.Progress != 1 {
		t.Errorf("completed progress = %v, want 1", j.Progress)
	}
	if rec.state(id) != StatusCompleted {
		t.Errorf("recorder state = %q", rec.state(id))
	}
}

func TestJobFailureRecordsError(t *testing.T) {
	rec := newMemRecorder()
	s := NewScheduler(rec, 1)
	defer s.Shutdown()

	id, err := s.Submit("fetch", "smith2020", func(ctx context.Context, tk *Ticket) error {
		return errors.New("no source found")
	})
	if err != nil {
		t.Fatal(err)
	}

	j := waitForStatus(t, s, id, StatusFailed)
	if j.Error != "no source found" {
		t.Errorf("error = %q", j.Error)
	}
}

func TestCancelPendingJobNeverRuns(t *testing.T) {
	rec := newMemRecorder()
	s := NewScheduler(rec, 1)
	defer s.Shutdown()

	release := make(chan struct{})
	blocker, err := s.Submit("fetch", "a", func(ctx context.Context, tk *Ticket) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, s, blocker, StatusRunning)

	ran := make(chan struct{})
	pending, err := s.Submit("fetch", "b", func(ctx context.Context, tk *Ticket) error {
		close(ran)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if !s.Cancel(pending) {
		t.Fatal("Cancel() = false for a pending job")
	}
	close(release)
	s.Wait()

	select {
	case <-ran:
		t.Error("cancelled pending job still ran")
	default:
	}

	j, _ := s.Status(pending)
	if j.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", j.Status)
	}
	if s.Cancel(pending) {
		t.Error("Cancel() = true for an already-cancelled job")
	}
}

func TestCancelRunningJobStopsIt(t *testing.T) {
	rec := newMemRecorder()
	s := NewScheduler(rec, 1)
	defer s.Shutdown()

	id, err := s.Submit("summarize", "a", func(ctx context.Context, tk *Ticket) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, s, id, StatusRunning)

	if !s.Cancel(id) {
		t.Fatal("Cancel() = false for a running job")
	}
	s.Wait()

	j, _ := s.Status(id)
	if j.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled (not failed)", j.Status)
	}
	if rec.state(id) != StatusCancelled {
		t.Errorf("recorder state = %q", rec.state(id))
	}
}

func TestCancelCompletedJobReturnsFalse(t *testing.T) {
	s := NewScheduler(newMemRecorder(), 1)
	defer s.Shutdown()

	id, _ := s.Submit("fetch", "a", func(ctx context.Context, tk *Ticket) error { return nil })
	waitForStatus(t, s, id, StatusCompleted)

	if s.Cancel(id) {
		t.Error("Cancel() = true for a completed job")
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	s := NewScheduler(newMemRecorder(), 1)
	defer s.Shutdown()

	probe := make(chan float64, 3)
	id, _ := s.Submit("summarize", "a", func(ctx context.Context, tk *Ticket) error {
		tk.SetProgress(0.6, "")
		j, _ := tk.s.Status(tk.id)
		probe <- j.Progress

		tk.SetProgress(0.3, "") // regression, ignored
		j, _ = tk.s.Status(tk.id)
		probe <- j.Progress

		tk.SetProgress(1.7, "") // clamped
		j, _ = tk.s.Status(tk.id)
		probe <- j.Progress
		return nil
	})
	waitForStatus(t, s, id, StatusCompleted)

	if got := <-probe; got != 0.6 {
		t.Errorf("progress = %v, want 0.6", got)
	}
	if got := <-probe; got != 0.6 {
		t.Errorf("progress after regression = %v, want 0.6", got)
	}
	if got := <-probe; got != 1 {
		t.Errorf("progress after overshoot = %v, want 1", got)
	}
}

func TestSubscribeSeesLifecycle(t *testing.T) {
	s := NewScheduler(newMemRecorder(), 1)
	updates := s.Subscribe()

	id, _ := s.Submit("fetch", "a", func(ctx context.Context, tk *Ticket) error { return nil })
	s.Wait()
	s.Shutdown()

	seen := map[Status]bool{}
	for u := range updates {
		if u.JobID == id {
			seen[u.Status] = true
		}
	}
	for _, want := range []Status{StatusPending, StatusRunning, StatusCompleted} {
		if !seen[want] {
			t.Errorf("missing %q update", want)
		}
	}
}

func TestWorkerPoolBound(t *testing.T) {
	s := NewScheduler(newMemRecorder(), 2)
	defer s.Shutdown()

	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})

	for i := 0; i < 5; i++ {
		s.Submit("fetch", "x", func(ctx context.Context, tk *Ticket) error {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			<-release

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	s.Wait()

	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}
