package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const stepArticleForm Step = "article_form"

var scienceDefinition = &Definition{
	Name: Science,
	Phases: map[Step]Phase{
		stepArticleForm: PhaseConfiguring,
		stepPlanReview:  PhaseReviewing,
		StepGenerating:  PhaseGenerating,
		StepCompleted:   PhaseCompleted,
	},
	Next: map[Step][]Step{
		StepNone:        {stepArticleForm},
		stepArticleForm: {StepGenerating},
		StepGenerating:  {stepPlanReview},
		stepPlanReview:  {StepGenerating, stepArticleForm},
		StepCompleted:   {stepArticleForm},
	},
}

type articleInput struct {
	Topic         string `json:"topic"`
	Hypothesis    string `json:"hypothesis"`
	Field         string `json:"field"`
	SectionsCount int    `json:"sectionsCount"`
}

type scienceFlow struct {
	*Wizard[sectionDraft]
}

func newScienceFlow() *scienceFlow {
	return &scienceFlow{Wizard: newWizard[sectionDraft](scienceDefinition)}
}

func (f *scienceFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, models.DocAcademicArticle, models.DocGrantProposal)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: stepArticleForm, docType: d, min: ledger.CostPlan}, nil
}

func (f *scienceFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionPlan:
		in, err := decode[articleInput](c)
		if err != nil {
			return err
		}
		if err := required("topic", in.Topic); err != nil {
			return err
		}
		if in.SectionsCount <= 0 {
			return invalid("sectionsCount must be positive")
		}
		call := planCall{
			from:     stepArticleForm,
			cost:     ledger.CostPlan,
			docType:  f.DocType(),
			progress: "building the article outline",
			op:       backend.OpArticlePlan,
			payload:  in,
		}
		// A grant proposal may come with one supporting file.
		if f.DocType() == models.DocGrantProposal {
			call.op = backend.OpGrantPlan
			call.progress = "building the grant outline"
			if len(c.Files) > 0 {
				call.files = c.Files[:1]
			}
		}
		var plan backend.SectionPlan
		token, err := runPlan(ctx, env, f.Wizard, c, call, &plan)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *sectionDraft) {
			d.Request = append(json.RawMessage(nil), c.Body...)
			d.Plan = &plan
			d.Field = in.Field
		})
		f.MoveTo(token, stepPlanReview)
		return nil

	case ActionEditPlan:
		return editSectionPlan(f.Wizard, c)

	case ActionGenerate:
		return generateSectionPlan(ctx, env, f.Wizard, c, f.runSections)

	case ActionBack:
		if _, err := f.begin(stepPlanReview); err != nil {
			return err
		}
		_, err := f.Advance(stepArticleForm)
		return err

	case ActionRestart:
		_, err := f.Advance(stepArticleForm)
		return err
	}
	return ErrUnknownAction
}

func (f *scienceFlow) runSections(ctx context.Context, env *Env, token uint64) error {
	if !f.current(token) {
		return nil
	}
	d := f.Draft()
	if d.Plan == nil {
		return fmt.Errorf("%w: article plan missing", ErrInvalidTransition)
	}
	plan := *d.Plan
	return runSections(ctx, env, f.Wizard, token, sectionRun{
		code:     d.code,
		docType:  f.DocType(),
		title:    plan.Title,
		label:    "section",
		sections: plan.Sections,
		op:       backend.OpArticleSection,
		payload: func(s backend.Section) any {
			return map[string]any{"section": s, "planTitle": plan.Title, "field": d.Field}
		},
		heading:  numberedHeading,
		returnTo: stepPlanReview,
		plan:     plan,
	})
}
