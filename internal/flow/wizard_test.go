package flow

import (
	"errors"
	"strings"
	"testing"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// ---------------------------------------------------------------------------
// Wizard bookkeeping
// ---------------------------------------------------------------------------

func TestWizard_StaleTokenIsIgnored(t *testing.T) {
	w := newWizard[formDraft](formDefinition(Standard, stepForm))
	if err := w.enter(stepForm, ""); err != nil {
		t.Fatal(err)
	}
	token, err := w.startWork(stepForm, StepGenerating)
	if err != nil {
		t.Fatal(err)
	}
	w.Reset()

	if w.Complete(token, &Result{Text: "late"}, "") {
		t.Fatal("complete with a stale token must be ignored")
	}
	w.Fail(token, stepForm, errors.New("late"))
	v := w.View()
	if v.Step != StepNone || v.Result != nil || v.Error != "" {
		t.Fatalf("reset state touched: %+v", v)
	}
}

func TestWizard_FailPanicsOnNonInputStep(t *testing.T) {
	w := newWizard[formDraft](formDefinition(Standard, stepForm))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	w.Fail(0, StepCompleted, errors.New("x"))
}

func TestWizard_StartWorkRejectsDoubleSubmit(t *testing.T) {
	w := newWizard[formDraft](formDefinition(Standard, stepForm))
	_ = w.enter(stepForm, "")
	if _, err := w.startWork(stepForm, StepGenerating); err != nil {
		t.Fatal(err)
	}
	if _, err := w.startWork(stepForm, StepGenerating); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestWizard_RefuseStaysIdle(t *testing.T) {
	w := newWizard[formDraft](formDefinition(Standard, stepForm))
	w.refuse(errors.New("not enough"))
	v := w.View()
	if v.Phase != PhaseIdle || v.Error != "not enough" || v.Draft != nil {
		t.Fatalf("unexpected view %+v", v)
	}
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func TestMetrics(t *testing.T) {
	if m := Metrics(""); m.TokenCount != 0 || m.PageCount != 0 {
		t.Fatalf("empty text: %+v", m)
	}

	text := strings.TrimSpace(strings.Repeat("слово ", 750))
	m := Metrics(text)
	if m.PageCount != 1.5 {
		t.Errorf("pages = %v, want 1.5", m.PageCount)
	}
	runes := len([]rune(text))
	if m.TokenCount != (runes+3)/4 {
		t.Errorf("tokens = %d, want %d", m.TokenCount, (runes+3)/4)
	}
}

func TestClip(t *testing.T) {
	if got := clip("короткий", 40); got != "короткий" {
		t.Errorf("got %q", got)
	}
	if got := clip("абвгд", 3); got != "абв..." {
		t.Errorf("got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Set lookup
// ---------------------------------------------------------------------------

func TestSet_FlowFor(t *testing.T) {
	s := NewSet()
	cases := map[models.DocumentType]Name{
		models.DocEssay:          Standard,
		models.DocBookWriting:    Book,
		models.DocSwotAnalysis:   Business,
		models.DocThesis:         Thesis,
		models.DocAnalysisVerify: Analysis,
		models.DocAudioScript:    Creative,
	}
	for doc, want := range cases {
		if got, ok := s.FlowFor(doc); !ok || got != want {
			t.Errorf("FlowFor(%s) = %q, %v; want %q", doc, got, ok, want)
		}
	}
	if _, ok := s.FlowFor("Неизвестно"); ok {
		t.Error("unknown doc type must not resolve")
	}
	if _, ok := s.FlowFor(""); ok {
		t.Error("empty doc type must not resolve")
	}
}
