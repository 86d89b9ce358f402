package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Accounts is the slice of the account service flows use.
type Accounts interface {
	Balance(code string) (int, error)
	Charge(ctx context.Context, code string, cost int, reason string) error
	RecordGeneration(ctx context.Context, code string, docType models.DocumentType, title, text string) (*models.GenerationRecord, error)
}

// SectionJob identifies a multi-section generation waiting to run. Token
// ties it to the flow state that scheduled it.
type SectionJob struct {
	Device string `json:"device"`
	Flow   Name   `json:"flow"`
	Token  uint64 `json:"token"`
}

// Dispatcher schedules a multi-section generation outside the request.
type Dispatcher interface {
	Dispatch(ctx context.Context, job SectionJob) error
}

// Env carries the collaborators every flow action needs.
type Env struct {
	Accounts     Accounts
	Backend      backend.Caller
	Dispatcher   Dispatcher
	SectionDelay time.Duration
	Log          *slog.Logger
}

func (e *Env) log() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}

// Call is one user action against a flow.
type Call struct {
	Device string
	Code   string
	Body   json.RawMessage
	Files  []backend.File
}

// decode reads the action body into T. An empty body yields the zero value.
func decode[T any](c Call) (T, error) {
	var v T
	if len(bytes.TrimSpace(c.Body)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(c.Body, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return v, nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// requireBalance is the entry guard: it compares the current balance with
// a flow's minimum cost without debiting.
func requireBalance(env *Env, code string, min int) error {
	if min <= 0 {
		return nil
	}
	bal, err := env.Accounts.Balance(code)
	if err != nil {
		return err
	}
	if bal < min {
		return &ledger.InsufficientBalanceError{Required: min, Available: bal}
	}
	return nil
}

// StorageWarning is shown with a result that could not be saved to history.
const StorageWarning = "storage limit reached: the result is shown but was not saved to history; clear history to free space"

// record saves res to the account history. Failing to save never fails the
// generation; the returned warning is shown instead.
func (e *Env) record(ctx context.Context, code string, res *Result) string {
	rec, err := e.Accounts.RecordGeneration(ctx, code, res.DocType, res.Title, res.Text)
	switch {
	case errors.Is(err, ledger.ErrStorageLimitExceeded):
		return StorageWarning
	case err != nil:
		e.log().Error("record generation", "code", code, "error", err)
		return "the result could not be saved to history"
	}
	res.RecordID = rec.ID
	return ""
}

func (e *Env) charge(ctx context.Context, code string, cost int, docType models.DocumentType) error {
	if cost <= 0 {
		return nil
	}
	return e.Accounts.Charge(ctx, code, cost, string(docType))
}

// oneShot is a single paid backend call that ends the flow.
type oneShot struct {
	from      Step
	to        Step
	returnTo  Step
	cost      int
	docType   models.DocumentType
	title     string
	progress  string
	op        string
	payload   any
	files     []backend.File
	withFiles bool
}

// runOneShot moves from job.from to generating, debits, calls the backend
// and completes. Any failure returns the flow to job.returnTo with the
// error; the debit is kept. Once debited, the call outlives the caller's
// context and is bounded by the backend client's deadline.
func runOneShot[P any](ctx context.Context, env *Env, w *Wizard[P], c Call, job oneShot) error {
	to := job.to
	if to == "" {
		to = StepGenerating
	}
	returnTo := job.returnTo
	if returnTo == "" {
		returnTo = job.from
	}
	token, err := w.startWork(job.from, to)
	if err != nil {
		return err
	}
	if err := env.charge(ctx, c.Code, job.cost, job.docType); err != nil {
		w.Fail(token, returnTo, err)
		return err
	}
	ctx = context.WithoutCancel(ctx)
	w.SetProgress(token, job.progress)

	var res backend.Result
	if job.withFiles || len(job.files) > 0 {
		err = env.Backend.CallWithFiles(ctx, job.op, job.payload, job.files, &res)
	} else {
		err = env.Backend.Call(ctx, job.op, job.payload, &res)
	}
	if err != nil {
		w.Fail(token, returnTo, err)
		return err
	}

	out := newResult(job.docType, job.title, res)
	warning := env.record(ctx, c.Code, out)
	w.Complete(token, out, warning)
	return nil
}

func newResult(docType models.DocumentType, title string, res backend.Result) *Result {
	out := &Result{
		DocType:    docType,
		Title:      title,
		Text:       res.Text,
		TokenCount: res.TokenCount,
		PageCount:  res.PageCount,
		Sources:    res.Sources,
	}
	if out.TokenCount == 0 {
		m := Metrics(out.Text)
		out.TokenCount, out.PageCount = m.TokenCount, m.PageCount
	}
	return out
}
