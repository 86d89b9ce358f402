package flow

import (
	"context"
	"fmt"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const stepGeneratingChapters Step = "generating_chapters"

var bookDefinition = &Definition{
	Name: Book,
	Phases: map[Step]Phase{
		stepForm:               PhaseConfiguring,
		StepGenerating:         PhaseGenerating,
		stepPlanReview:         PhaseReviewing,
		stepGeneratingChapters: PhaseGenerating,
		StepCompleted:          PhaseCompleted,
	},
	Next: map[Step][]Step{
		StepNone:       {stepForm},
		stepForm:       {StepGenerating},
		StepGenerating: {stepPlanReview},
		stepPlanReview: {stepGeneratingChapters, stepForm},
		StepCompleted:  {stepForm},
	},
}

type bookRequest struct {
	Genre         string `json:"genre"`
	Style         string `json:"style"`
	ChaptersCount int    `json:"chaptersCount"`
	UserPrompt    string `json:"userPrompt"`
	ReaderAge     int    `json:"readerAge"`
}

type bookDraft struct {
	Request bookRequest       `json:"request"`
	Plan    *backend.BookPlan `json:"plan,omitempty"`
	code    string
}

type bookFlow struct {
	*Wizard[bookDraft]
}

func newBookFlow() *bookFlow {
	return &bookFlow{Wizard: newWizard[bookDraft](bookDefinition)}
}

func (f *bookFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, models.DocBookWriting)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: stepForm, docType: d, min: ledger.CostPlan}, nil
}

func (f *bookFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionPlan:
		in, err := decode[bookRequest](c)
		if err != nil {
			return err
		}
		if in.ChaptersCount <= 0 {
			return invalid("chaptersCount must be positive")
		}
		if err := required("genre", in.Genre); err != nil {
			return err
		}
		var plan backend.BookPlan
		token, err := runPlan(ctx, env, f.Wizard, c, planCall{
			from:     stepForm,
			cost:     ledger.CostPlan,
			docType:  models.DocBookWriting,
			progress: "working out the plot",
			op:       backend.OpBookPlan,
			payload:  in,
		}, &plan)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *bookDraft) {
			d.Request = in
			d.Plan = &plan
		})
		f.MoveTo(token, stepPlanReview)
		return nil

	case ActionEditPlan:
		plan, err := decode[backend.BookPlan](c)
		if err != nil {
			return err
		}
		if err := validateSections(plan.Title, plan.Chapters); err != nil {
			return err
		}
		token, err := f.begin(stepPlanReview)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *bookDraft) { d.Plan = &plan })
		return nil

	case ActionGenerate:
		token, err := f.begin(stepPlanReview)
		if err != nil {
			return err
		}
		d := f.Draft()
		if d.Plan == nil || len(d.Plan.Chapters) == 0 {
			return invalid("the book has no plan")
		}
		f.UpdateDraft(token, func(d *bookDraft) { d.code = c.Code })
		return startSections(ctx, env, f.Wizard, c, stepPlanReview, stepGeneratingChapters, len(d.Plan.Chapters), f.runSections)

	case ActionBack:
		if _, err := f.begin(stepPlanReview); err != nil {
			return err
		}
		_, err := f.Advance(stepForm)
		return err

	case ActionRestart:
		_, err := f.Advance(stepForm)
		return err
	}
	return ErrUnknownAction
}

func (f *bookFlow) runSections(ctx context.Context, env *Env, token uint64) error {
	if !f.current(token) {
		return nil
	}
	d := f.Draft()
	if d.Plan == nil {
		return fmt.Errorf("%w: book plan missing", ErrInvalidTransition)
	}
	plan := *d.Plan
	req := d.Request
	return runSections(ctx, env, f.Wizard, token, sectionRun{
		code:     d.code,
		docType:  models.DocBookWriting,
		title:    plan.Title,
		label:    "chapter",
		sections: plan.Chapters,
		op:       backend.OpBookChapter,
		payload: func(s backend.Section) any {
			return map[string]any{
				"chapter":   s,
				"bookTitle": plan.Title,
				"genre":     req.Genre,
				"style":     req.Style,
				"readerAge": req.ReaderAge,
			}
		},
		heading: func(_ int, s backend.Section) string {
			return "## " + s.Title + "\n\n"
		},
		returnTo: stepPlanReview,
		plan:     plan,
	})
}
