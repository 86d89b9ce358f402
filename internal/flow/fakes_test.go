package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

type fakeAccounts struct {
	mu        sync.Mutex
	balance   map[string]int
	records   []*models.GenerationRecord
	recordErr error
}

func newFakeAccounts(code string, balance int) *fakeAccounts {
	return &fakeAccounts{balance: map[string]int{code: balance}}
}

func (f *fakeAccounts) Balance(code string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balance[code]
	if !ok {
		return 0, fmt.Errorf("unknown code %s", code)
	}
	return bal, nil
}

func (f *fakeAccounts) Charge(_ context.Context, code string, cost int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance[code] < cost {
		return &ledger.InsufficientBalanceError{Required: cost, Available: f.balance[code]}
	}
	f.balance[code] -= cost
	return nil
}

func (f *fakeAccounts) RecordGeneration(_ context.Context, _ string, docType models.DocumentType, title, text string) (*models.GenerationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	rec := &models.GenerationRecord{
		ID:        fmt.Sprintf("rec-%d", len(f.records)+1),
		Timestamp: time.Now().UnixMilli(),
		DocType:   docType,
		Title:     title,
		Text:      text,
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeAccounts) bal(code string) int {
	b, _ := f.Balance(code)
	return b
}

func (f *fakeAccounts) recorded() []*models.GenerationRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.GenerationRecord(nil), f.records...)
}

// ---------------------------------------------------------------------------
// Backend
// ---------------------------------------------------------------------------

type backendCall struct {
	op      string
	payload any
	files   []backend.File
	ctxErr  error
}

// fakeBackend answers each operation with the JSON its responder returns.
type fakeBackend struct {
	mu        sync.Mutex
	calls     []backendCall
	responses map[string]func(payload any) (string, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{responses: make(map[string]func(any) (string, error))}
}

func (f *fakeBackend) on(op string, fn func(payload any) (string, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[op] = fn
}

func (f *fakeBackend) reply(op, body string) {
	f.on(op, func(any) (string, error) { return body, nil })
}

func (f *fakeBackend) Call(ctx context.Context, op string, payload, out any) error {
	return f.CallWithFiles(ctx, op, payload, nil, out)
}

func (f *fakeBackend) CallWithFiles(ctx context.Context, op string, payload any, files []backend.File, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, backendCall{op: op, payload: payload, files: files, ctxErr: ctx.Err()})
	fn := f.responses[op]
	f.mu.Unlock()
	if fn == nil {
		return fmt.Errorf("no response for %s", op)
	}
	body, err := fn(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeBackend) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op
	}
	return out
}

func (f *fakeBackend) last() backendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

type captureDispatcher struct {
	mu   sync.Mutex
	jobs []SectionJob
}

func (d *captureDispatcher) Dispatch(_ context.Context, job SectionJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return nil
}

const testCode = "ABCDEFGHJK"

func newTestEnv(balance int) (*Env, *fakeAccounts, *fakeBackend) {
	acc := newFakeAccounts(testCode, balance)
	be := newFakeBackend()
	return &Env{Accounts: acc, Backend: be}, acc, be
}

func call(body string, files ...backend.File) Call {
	return Call{Device: "dev-1", Code: testCode, Body: json.RawMessage(body), Files: files}
}
