// Package execution runs multi-section generations as River background jobs
// when Postgres is configured.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/BogateyDi/ai-service-frontend/internal/flow"
)

type SectionsJobArgs struct {
	Device string    `json:"device"`
	Flow   flow.Name `json:"flow"`
	Token  uint64    `json:"token"`
}

func (SectionsJobArgs) Kind() string { return "generate_sections" }

// InsertOpts disables retries: the plan was paid for once and a failed run
// already put the flow back on the review step.
func (SectionsJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// Runner generates the sections of a scheduled job.
type Runner interface {
	Run(ctx context.Context, job flow.SectionJob) error
}

type SectionsWorker struct {
	river.WorkerDefaults[SectionsJobArgs]
	runner Runner
}

func NewSectionsWorker(r Runner) *SectionsWorker {
	return &SectionsWorker{runner: r}
}

// Timeout disables River's job timeout. A plan can take several backend
// calls, and each call is already bounded by the client's own deadline.
func (w *SectionsWorker) Timeout(*river.Job[SectionsJobArgs]) time.Duration {
	return -1
}

func (w *SectionsWorker) Work(ctx context.Context, job *river.Job[SectionsJobArgs]) error {
	args := job.Args
	if err := w.runner.Run(ctx, flow.SectionJob{Device: args.Device, Flow: args.Flow, Token: args.Token}); err != nil {
		return fmt.Errorf("generate sections for %s: %w", args.Flow, err)
	}
	return nil
}

// InsertFunc enqueues a sections job. main sets it once the River client
// exists.
type InsertFunc func(ctx context.Context, args SectionsJobArgs) error

// Dispatcher hands flow section jobs to River.
type Dispatcher struct {
	insert InsertFunc
}

func NewDispatcher(insert InsertFunc) *Dispatcher {
	return &Dispatcher{insert: insert}
}

func (d *Dispatcher) Dispatch(ctx context.Context, job flow.SectionJob) error {
	return d.insert(ctx, SectionsJobArgs{Device: job.Device, Flow: job.Flow, Token: job.Token})
}
