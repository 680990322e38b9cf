// SPDX-License-Identifier: Apache-2.0

package execution

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mouhalis/voiceval/internal/domain"
)

func newTestService(store Store, runner StepRunner, models []string) *Service {
	return NewService(context.Background(), Deps{
		Store:  store,
		Runner: runner,
		Models: models,
		Retry:  fastPolicy(2),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func waitForState(t *testing.T, s *Service, id uuid.UUID, want domain.ExecutionState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status(id).Status == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("scenario %s never reached state %q, last = %q", id, want, s.Status(id).Status)
}

func TestServiceStartExecutionValidation(t *testing.T) {
	withAudio := testScenario(1)
	noAudio := testScenario(1)
	noAudio.Steps[0].AudioPath = ""
	store := newFakeStore(withAudio, noAudio)
	s := newTestService(store, &fakeRunner{}, []string{"gemini-2.5-pro"})

	if err := s.StartExecution(context.Background(), uuid.New()); !errors.Is(err, domain.ErrScenarioNotFound) {
		t.Errorf("unknown scenario error = %v, want %v", err, domain.ErrScenarioNotFound)
	}
	if err := s.StartExecution(context.Background(), noAudio.ID); !errors.Is(err, domain.ErrNoEligibleSteps) {
		t.Errorf("no-audio scenario error = %v, want %v", err, domain.ErrNoEligibleSteps)
	}

	s.tracker.SetStatus(withAudio.ID, domain.ExecutionStatus{Status: domain.ExecRunning})
	if err := s.StartExecution(context.Background(), withAudio.ID); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("running scenario error = %v, want %v", err, domain.ErrAlreadyRunning)
	}
}

func TestServiceStartExecutionRunsInBackground(t *testing.T) {
	sc := testScenario(2)
	store := newFakeStore(sc)
	s := newTestService(store, &fakeRunner{}, []string{"gemini-2.5-pro", "gemini-2.5-flash"})

	if err := s.StartExecution(context.Background(), sc.ID); err != nil {
		t.Fatalf("StartExecution() error = %v", err)
	}
	waitForState(t, s, sc.ID, domain.ExecCompleted)

	st := s.Status(sc.ID)
	if st.StepsProcessed != 4 {
		t.Errorf("StepsProcessed = %d, want 4", st.StepsProcessed)
	}
	if got := s.Logs(sc.ID, 0); len(got) == 0 {
		t.Error("Logs() is empty after an execution")
	}
}

func TestServiceStatusDefaultsToPending(t *testing.T) {
	s := newTestService(newFakeStore(), &fakeRunner{}, []string{"gemini-2.5-pro"})
	if got := s.Status(uuid.New()).Status; got != domain.ExecPending {
		t.Errorf("Status() = %q for untracked scenario, want %q", got, domain.ExecPending)
	}
}

func TestQueueEnqueueValidation(t *testing.T) {
	ok := testScenario(1)
	noAudio := testScenario(1)
	noAudio.Steps[0].AudioPath = ""
	store := newFakeStore(ok, noAudio)

	runner := &fakeRunner{}
	release := make(chan struct{})
	runner.onStep = func(req StepRequest) (StepOutcome, error) {
		<-release
		return StepOutcome{PredictedCart: req.CurrentCart}, nil
	}
	s := newTestService(store, runner, []string{"gemini-2.5-pro"})

	report := s.EnqueueBatch(context.Background(), []uuid.UUID{ok.ID, noAudio.ID, uuid.New(), ok.ID})
	if len(report.Added) != 1 || report.Added[0].ScenarioID != ok.ID {
		t.Fatalf("Added = %+v, want exactly the eligible scenario", report.Added)
	}
	if len(report.Skipped) != 3 {
		t.Fatalf("Skipped = %+v, want 3 entries", report.Skipped)
	}

	close(release)
	waitForState(t, s, ok.ID, domain.ExecCompleted)
}

func TestQueueDrainsSeriallyInFIFOOrder(t *testing.T) {
	a := testScenario(2)
	b := testScenario(2)
	store := newFakeStore(a, b)
	runner := &fakeRunner{}
	s := newTestService(store, runner, []string{"gemini-2.5-pro", "gemini-2.5-flash"})

	s.EnqueueBatch(context.Background(), []uuid.UUID{a.ID, b.ID})
	waitForState(t, s, a.ID, domain.ExecCompleted)
	waitForState(t, s, b.ID, domain.ExecCompleted)

	// Strictly serial: every call for the first scenario precedes every
	// call for the second, while models within one scenario interleave.
	runner.mu.Lock()
	defer runner.mu.Unlock()
	lastA, firstB := -1, len(runner.calls)
	for i, call := range runner.calls {
		switch call.ScenarioID {
		case a.ID:
			lastA = i
		case b.ID:
			if i < firstB {
				firstB = i
			}
		}
	}
	if lastA > firstB {
		t.Errorf("scenario executions overlapped: last call for first = %d, first call for second = %d", lastA, firstB)
	}

	st := s.QueueState()
	if st.IsBatchRunning || len(st.Queue) != 0 {
		t.Errorf("QueueState() = %+v after drain, want empty and idle", st)
	}
}

func TestQueueRemoveAndReorderWhileDraining(t *testing.T) {
	a := testScenario(1)
	b := testScenario(1)
	c := testScenario(1)
	store := newFakeStore(a, b, c)

	runner := &fakeRunner{}
	release := make(chan struct{})
	runner.onStep = func(req StepRequest) (StepOutcome, error) {
		<-release
		return StepOutcome{PredictedCart: req.CurrentCart}, nil
	}
	s := newTestService(store, runner, []string{"gemini-2.5-pro"})

	s.EnqueueBatch(context.Background(), []uuid.UUID{a.ID, b.ID, c.ID})
	waitForState(t, s, a.ID, domain.ExecRunning)

	st := s.QueueState()
	if st.CurrentlyExecuting == nil || *st.CurrentlyExecuting != a.ID {
		t.Fatalf("CurrentlyExecuting = %v, want %s", st.CurrentlyExecuting, a.ID)
	}
	if len(st.Queue) != 2 {
		t.Fatalf("queue length = %d, want 2", len(st.Queue))
	}

	reordered := s.ReorderQueue([]uuid.UUID{c.ID})
	if len(reordered) != 2 || reordered[0].ScenarioID != c.ID || reordered[1].ScenarioID != b.ID {
		t.Fatalf("ReorderQueue() = %+v, want c then b", reordered)
	}

	if err := s.RemoveFromQueue(b.ID); err != nil {
		t.Fatalf("RemoveFromQueue(b) error = %v", err)
	}
	if err := s.RemoveFromQueue(a.ID); !errors.Is(err, domain.ErrNotQueued) {
		t.Errorf("RemoveFromQueue(running) error = %v, want %v", err, domain.ErrNotQueued)
	}

	close(release)
	waitForState(t, s, a.ID, domain.ExecCompleted)
	waitForState(t, s, c.ID, domain.ExecCompleted)

	// The removed scenario never ran and its tracked state is gone.
	if got := s.Status(b.ID).Status; got != domain.ExecPending {
		t.Errorf("removed scenario status = %q, want default %q", got, domain.ExecPending)
	}
}

func TestQueueCancelAllClearsQueueAndFlagsRunning(t *testing.T) {
	a := testScenario(2)
	b := testScenario(1)
	store := newFakeStore(a, b)

	runner := &fakeRunner{}
	release := make(chan struct{})
	runner.onStep = func(req StepRequest) (StepOutcome, error) {
		<-release
		return StepOutcome{PredictedCart: req.CurrentCart}, nil
	}
	s := newTestService(store, runner, []string{"gemini-2.5-pro"})

	s.EnqueueBatch(context.Background(), []uuid.UUID{a.ID, b.ID})
	waitForState(t, s, a.ID, domain.ExecRunning)

	running, cleared := s.CancelBatch()
	if running != 1 {
		t.Errorf("running = %d, want 1", running)
	}
	if cleared != 1 {
		t.Errorf("cleared = %d, want 1", cleared)
	}

	close(release)
	waitForState(t, s, a.ID, domain.ExecCancelled)

	st := s.QueueState()
	if len(st.Queue) != 0 {
		t.Errorf("queue length = %d after CancelBatch, want 0", len(st.Queue))
	}
}

// The pending status write must precede the entry's visibility to the drain
// goroutine. Enqueueing against a hot drain loop must never let a scenario's
// step run while its tracked status still reads pending.
func TestQueueEnqueueNeverClobbersRunningStatus(t *testing.T) {
	scenarios := make([]domain.Scenario, 25)
	for i := range scenarios {
		scenarios[i] = testScenario(1)
	}
	store := newFakeStore(scenarios...)

	runner := &fakeRunner{}
	var s *Service
	seen := make(chan domain.ExecutionState, len(scenarios))
	runner.onStep = func(req StepRequest) (StepOutcome, error) {
		seen <- s.Status(req.ScenarioID).Status
		return StepOutcome{PredictedCart: req.CurrentCart}, nil
	}
	s = newTestService(store, runner, []string{"gemini-2.5-pro"})

	for _, sc := range scenarios {
		s.EnqueueBatch(context.Background(), []uuid.UUID{sc.ID})
	}
	for _, sc := range scenarios {
		waitForState(t, s, sc.ID, domain.ExecCompleted)
	}

	close(seen)
	for st := range seen {
		if st == domain.ExecPending {
			t.Fatal("step ran while the scenario status still read pending")
		}
	}
}
