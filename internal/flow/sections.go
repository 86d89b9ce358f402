package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const stepPlanReview Step = "plan_review"

// planCall describes the paid backend call that produces an outline.
type planCall struct {
	from     Step
	cost     int
	docType  models.DocumentType
	progress string
	op       string
	payload  any
	files    []backend.File
}

// runPlan moves from call.from to generating, debits and fetches the plan
// into out. On failure the flow is back on call.from and the returned error
// is non-nil; on success the caller stores out and moves to the review step
// with the returned token.
func runPlan[P any](ctx context.Context, env *Env, w *Wizard[P], c Call, call planCall, out any) (uint64, error) {
	token, err := w.startWork(call.from, StepGenerating)
	if err != nil {
		return 0, err
	}
	if err := env.charge(ctx, c.Code, call.cost, call.docType); err != nil {
		w.Fail(token, call.from, err)
		return 0, err
	}
	ctx = context.WithoutCancel(ctx)
	w.SetProgress(token, call.progress)
	if len(call.files) > 0 {
		err = env.Backend.CallWithFiles(ctx, call.op, call.payload, call.files, out)
	} else {
		err = env.Backend.Call(ctx, call.op, call.payload, out)
	}
	if err != nil {
		w.Fail(token, call.from, err)
		return 0, err
	}
	return token, nil
}

func validateSections(title string, sections []backend.Section) error {
	if strings.TrimSpace(title) == "" {
		return invalid("plan title is required")
	}
	if len(sections) == 0 {
		return invalid("plan has no sections")
	}
	for i, s := range sections {
		if strings.TrimSpace(s.Title) == "" {
			return invalid(fmt.Sprintf("section %d has no title", i+1))
		}
	}
	return nil
}

// startSections debits the whole plan up front and hands the generation to
// the dispatcher. The debit is kept whatever happens to the sections.
func startSections[P any](ctx context.Context, env *Env, w *Wizard[P], c Call, review, generating Step, cost int, run func(context.Context, *Env, uint64) error) error {
	token, err := w.startWork(review, generating)
	if err != nil {
		return err
	}
	if err := env.charge(ctx, c.Code, cost, w.DocType()); err != nil {
		w.Fail(token, review, err)
		return err
	}
	w.SetProgress(token, "preparing the generation")
	if env.Dispatcher == nil {
		return run(context.WithoutCancel(ctx), env, token)
	}
	job := SectionJob{Device: c.Device, Flow: w.Name(), Token: token}
	if err := env.Dispatcher.Dispatch(ctx, job); err != nil {
		env.log().Error("dispatch section generation", "flow", w.Name(), "error", err)
		w.Fail(token, review, err)
		return err
	}
	return nil
}

// sectionRun is a snapshot of a reviewed plan ready to be generated.
type sectionRun struct {
	code     string
	docType  models.DocumentType
	title    string
	label    string
	sections []backend.Section
	op       string
	payload  func(backend.Section) any
	heading  func(i int, s backend.Section) string
	returnTo Step
	plan     any
}

// runSections generates the sections one after another with env.SectionDelay
// between calls. It stops quietly when the flow was reset. A failed section
// discards everything generated so far and returns the flow to the review.
func runSections[P any](ctx context.Context, env *Env, w *Wizard[P], token uint64, run sectionRun) error {
	var b strings.Builder
	b.WriteString("# " + run.title + "\n\n")
	total := len(run.sections)
	for i, sec := range run.sections {
		if i > 0 && env.SectionDelay > 0 {
			t := time.NewTimer(env.SectionDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				w.Fail(token, run.returnTo, ctx.Err())
				return ctx.Err()
			}
		}
		if !w.current(token) {
			env.log().Info("section generation abandoned", "flow", w.Name(), "done", i, "total", total)
			return nil
		}
		w.SetProgress(token, fmt.Sprintf("generating %s %d/%d: %q", run.label, i+1, total, sec.Title))

		var res backend.Result
		if err := env.Backend.Call(ctx, run.op, run.payload(sec), &res); err != nil {
			w.Fail(token, run.returnTo, err)
			return err
		}
		b.WriteString(run.heading(i, sec))
		b.WriteString(res.Text)
		b.WriteString("\n\n")
	}
	if !w.current(token) {
		return nil
	}

	text := b.String()
	m := Metrics(text)
	out := &Result{
		DocType:    run.docType,
		Title:      run.title,
		Text:       text,
		TokenCount: m.TokenCount,
		PageCount:  m.PageCount,
		Plan:       run.plan,
	}
	warning := env.record(ctx, run.code, out)
	w.Complete(token, out, warning)
	return nil
}

// Executor runs dispatched section jobs against the session that owns them.
type Executor struct {
	env    *Env
	lookup func(device string) (*Set, bool)
	log    *slog.Logger
}

func NewExecutor(env *Env, lookup func(device string) (*Set, bool), log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{env: env, lookup: lookup, log: log}
}

// Run generates the sections of job. A job whose session has expired is
// dropped.
func (x *Executor) Run(ctx context.Context, job SectionJob) error {
	set, ok := x.lookup(job.Device)
	if !ok {
		x.log.Info("section job dropped: session gone", "device", job.Device, "flow", job.Flow)
		return nil
	}
	f, err := set.Get(job.Flow)
	if err != nil {
		return err
	}
	sf, ok := f.(sectionFlow)
	if !ok {
		return fmt.Errorf("%w: %s", errNotSectioned, job.Flow)
	}
	return sf.runSections(ctx, x.env, job.Token)
}

// InlineDispatcher runs section jobs on a goroutine bound to a long-lived
// context instead of the request's.
type InlineDispatcher struct {
	ctx  context.Context
	exec *Executor
}

func NewInlineDispatcher(ctx context.Context, exec *Executor) *InlineDispatcher {
	return &InlineDispatcher{ctx: ctx, exec: exec}
}

func (d *InlineDispatcher) Dispatch(_ context.Context, job SectionJob) error {
	go func() {
		if err := d.exec.Run(d.ctx, job); err != nil {
			d.exec.log.Warn("section job failed", "flow", job.Flow, "error", err)
		}
	}()
	return nil
}
