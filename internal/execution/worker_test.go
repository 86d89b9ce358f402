package execution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/riverqueue/river"

	"github.com/BogateyDi/ai-service-frontend/internal/flow"
)

type stubRunner struct {
	mu   sync.Mutex
	jobs []flow.SectionJob
	err  error
}

func (s *stubRunner) Run(_ context.Context, job flow.SectionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return s.err
}

func TestSectionsWorker_RunsJob(t *testing.T) {
	r := &stubRunner{}
	w := NewSectionsWorker(r)
	args := SectionsJobArgs{Device: "dev", Flow: flow.Book, Token: 7}

	if err := w.Work(context.Background(), &river.Job[SectionsJobArgs]{Args: args}); err != nil {
		t.Fatal(err)
	}
	if len(r.jobs) != 1 || r.jobs[0] != (flow.SectionJob{Device: "dev", Flow: flow.Book, Token: 7}) {
		t.Fatalf("unexpected jobs %+v", r.jobs)
	}
}

func TestSectionsWorker_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	w := NewSectionsWorker(&stubRunner{err: boom})
	err := w.Work(context.Background(), &river.Job[SectionsJobArgs]{Args: SectionsJobArgs{Flow: flow.Science}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSectionsWorker_NoJobTimeout(t *testing.T) {
	w := NewSectionsWorker(&stubRunner{})
	if got := w.Timeout(&river.Job[SectionsJobArgs]{}); got >= 0 {
		t.Fatalf("expected no job timeout, got %v", got)
	}
}

func TestDispatcher_Inserts(t *testing.T) {
	var got SectionsJobArgs
	d := NewDispatcher(func(_ context.Context, args SectionsJobArgs) error {
		got = args
		return nil
	})
	if err := d.Dispatch(context.Background(), flow.SectionJob{Device: "dev", Flow: flow.Business, Token: 3}); err != nil {
		t.Fatal(err)
	}
	if got.Flow != flow.Business || got.Token != 3 || got.Device != "dev" {
		t.Fatalf("unexpected args %+v", got)
	}
	if (SectionsJobArgs{}).InsertOpts().MaxAttempts != 1 {
		t.Error("sections jobs must not retry")
	}
}
