// Package flow implements the generation wizards. Every flow is a finite
// state machine over named steps with a typed transition table; a generic
// Wizard carries the step, the flow's draft (form input and plan), progress,
// the last error and the completed result.
package flow

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Phase is the generic state a concrete step belongs to.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseConfiguring Phase = "configuring"
	PhaseReviewing   Phase = "reviewing"
	PhaseGenerating  Phase = "generating"
	PhaseCompleted   Phase = "completed"
	PhaseError       Phase = "error"
)

// Step is a flow-specific step name.
type Step string

const (
	StepNone       Step = "none"
	StepGenerating Step = "generating"
	StepCompleted  Step = "completed"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in the current step")
	ErrUnknownFlow       = errors.New("unknown flow")
	ErrUnknownAction     = errors.New("unknown action")
	ErrInvalidInput      = errors.New("invalid input")
)

// Definition is a flow's transition table. Steps missing from Phases are
// idle; Fail may only return to configuring or reviewing steps.
type Definition struct {
	Name       Name
	MinBalance int
	Phases     map[Step]Phase
	Next       map[Step][]Step
}

func (d *Definition) phase(s Step) Phase {
	if p, ok := d.Phases[s]; ok {
		return p
	}
	return PhaseIdle
}

func (d *Definition) allowed(from, to Step) bool {
	if to == StepNone {
		return true
	}
	return slices.Contains(d.Next[from], to)
}

// Result is a completed generation as shown to the user.
type Result struct {
	DocType    models.DocumentType `json:"doc_type"`
	Title      string              `json:"title"`
	Text       string              `json:"text"`
	TokenCount int                 `json:"token_count,omitempty"`
	PageCount  float64             `json:"page_count,omitempty"`
	Sources    []models.WebSource  `json:"sources,omitempty"`
	RecordID   string              `json:"record_id,omitempty"`
	Plan       any                 `json:"plan,omitempty"`
}

// View is the read-only snapshot returned to clients.
type View struct {
	Flow     Name                 `json:"flow"`
	Step     Step                 `json:"step"`
	Phase    Phase                `json:"phase"`
	DocType  models.DocumentType  `json:"doc_type,omitempty"`
	Error    string               `json:"error,omitempty"`
	Progress string               `json:"progress,omitempty"`
	Warning  string               `json:"warning,omitempty"`
	Draft    any                  `json:"draft,omitempty"`
	Result   *Result              `json:"result,omitempty"`
	Messages []models.ChatMessage `json:"messages,omitempty"`
}

// Wizard is the state shared by every flow. P is the flow's draft type.
// token changes on every reset; work started under an old token must not
// touch the state.
type Wizard[P any] struct {
	def *Definition

	mu       sync.Mutex
	token    uint64
	step     Step
	docType  models.DocumentType
	errMsg   string
	progress string
	warning  string
	draft    P
	result   *Result
	messages []models.ChatMessage
}

func newWizard[P any](def *Definition) *Wizard[P] {
	return &Wizard[P]{def: def, step: StepNone}
}

func (w *Wizard[P]) Name() Name { return w.def.Name }

func (w *Wizard[P]) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Reset discards all state, including any plan, and invalidates in-flight
// work.
func (w *Wizard[P]) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *Wizard[P]) resetLocked() {
	var zero P
	w.token++
	w.step = StepNone
	w.docType = ""
	w.errMsg = ""
	w.progress = ""
	w.warning = ""
	w.draft = zero
	w.result = nil
	w.messages = nil
}

// refuse records an entry-guard failure: the flow stays idle with a message.
func (w *Wizard[P]) refuse(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	w.errMsg = err.Error()
}

// enter moves an idle flow to its first configuring step.
func (w *Wizard[P]) enter(to Step, docType models.DocumentType) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.def.allowed(w.step, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, w.def.Name, w.step, to)
	}
	w.step = to
	w.docType = docType
	w.errMsg = ""
	return nil
}

// Advance moves to step to when the transition table allows it and returns
// the token the caller must present to finish the work.
func (w *Wizard[P]) Advance(to Step) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.def.allowed(w.step, to) {
		return 0, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, w.def.Name, w.step, to)
	}
	w.step = to
	w.errMsg = ""
	w.warning = ""
	w.progress = ""
	if w.def.phase(to) != PhaseCompleted {
		w.result = nil
	}
	return w.token, nil
}

// startWork moves from step from to step to in one locked transition. It
// fails when the flow is elsewhere, which rejects double submits.
func (w *Wizard[P]) startWork(from, to Step) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != from || !w.def.allowed(from, to) {
		return 0, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, w.def.Name, w.step, to)
	}
	w.step = to
	w.errMsg = ""
	w.warning = ""
	w.progress = ""
	w.result = nil
	return w.token, nil
}

// begin checks that the flow is in one of the steps an action is valid in.
func (w *Wizard[P]) begin(from ...Step) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(from, w.step) {
		return 0, fmt.Errorf("%w: %s is at %s", ErrInvalidTransition, w.def.Name, w.step)
	}
	return w.token, nil
}

func (w *Wizard[P]) current(token uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.token == token
}

// Fail returns the flow to an input step with err as the message. It is a
// no-op when the flow was reset since token was issued.
func (w *Wizard[P]) Fail(token uint64, returnTo Step, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token != token {
		return
	}
	if p := w.def.phase(returnTo); p != PhaseConfiguring && p != PhaseReviewing {
		panic(fmt.Sprintf("flow %s: %s is not an input step", w.def.Name, returnTo))
	}
	w.step = returnTo
	w.errMsg = err.Error()
	w.progress = ""
}

// Complete stores the result. warning is shown alongside it, typically when
// the result could not be saved to history.
func (w *Wizard[P]) Complete(token uint64, res *Result, warning string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token != token {
		return false
	}
	w.step = StepCompleted
	w.result = res
	w.warning = warning
	w.progress = ""
	return true
}

func (w *Wizard[P]) SetProgress(token uint64, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token == token {
		w.progress = msg
	}
}

// MoveTo is Advance for a token-bound step change after asynchronous work,
// such as landing on a plan review once the outline arrived.
func (w *Wizard[P]) MoveTo(token uint64, to Step) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token != token || !w.def.allowed(w.step, to) {
		return false
	}
	w.step = to
	w.progress = ""
	return true
}

func (w *Wizard[P]) Draft() P {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// UpdateDraft applies fn to the draft under the lock when token is current.
func (w *Wizard[P]) UpdateDraft(token uint64, fn func(*P)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token != token {
		return false
	}
	fn(&w.draft)
	return true
}

func (w *Wizard[P]) DocType() models.DocumentType {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.docType
}

func (w *Wizard[P]) appendMessages(token uint64, msgs ...models.ChatMessage) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.token != token {
		return false
	}
	w.messages = append(w.messages, msgs...)
	return true
}

func (w *Wizard[P]) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := View{
		Flow:     w.def.Name,
		Step:     w.step,
		Phase:    w.def.phase(w.step),
		DocType:  w.docType,
		Error:    w.errMsg,
		Progress: w.progress,
		Warning:  w.warning,
		Result:   w.result,
		Messages: slices.Clone(w.messages),
	}
	if w.step != StepNone {
		v.Draft = w.draft
	}
	if w.errMsg != "" && w.step != StepNone {
		v.Phase = PhaseError
	}
	return v
}
