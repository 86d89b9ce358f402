package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const (
	stepSwotForm         Step = "swot_form"
	stepProposalForm     Step = "proposal_form"
	stepBusinessPlanForm Step = "business_plan_form"
	stepMarketingForm    Step = "marketing_form"
)

const (
	ActionSwot      = "swot"
	ActionProposal  = "proposal"
	ActionMarketing = "marketing"
)

var businessForms = []Step{stepSwotForm, stepProposalForm, stepBusinessPlanForm, stepMarketingForm}

var businessDefinition = &Definition{
	Name: Business,
	Phases: map[Step]Phase{
		stepSwotForm:         PhaseConfiguring,
		stepProposalForm:     PhaseConfiguring,
		stepBusinessPlanForm: PhaseConfiguring,
		stepMarketingForm:    PhaseConfiguring,
		stepPlanReview:       PhaseReviewing,
		StepGenerating:       PhaseGenerating,
		StepCompleted:        PhaseCompleted,
	},
	Next: map[Step][]Step{
		StepNone:             businessForms,
		stepSwotForm:         {StepGenerating},
		stepProposalForm:     {StepGenerating},
		stepBusinessPlanForm: {StepGenerating},
		stepMarketingForm:    {StepGenerating},
		StepGenerating:       {stepPlanReview},
		stepPlanReview:       {StepGenerating, stepBusinessPlanForm},
		StepCompleted:        businessForms,
	},
}

// sectionDraft is the draft of the flows that review a sectioned plan:
// business plans and scientific articles.
type sectionDraft struct {
	Request json.RawMessage      `json:"request,omitempty"`
	Plan    *backend.SectionPlan `json:"plan,omitempty"`
	Field   string               `json:"field,omitempty"`
	code    string
}

type businessFlow struct {
	*Wizard[sectionDraft]
}

func newBusinessFlow() *businessFlow {
	return &businessFlow{Wizard: newWizard[sectionDraft](businessDefinition)}
}

func businessForm(docType models.DocumentType) Step {
	switch docType {
	case models.DocSwotAnalysis:
		return stepSwotForm
	case models.DocCommercial:
		return stepProposalForm
	case models.DocMarketingCopy:
		return stepMarketingForm
	}
	return stepBusinessPlanForm
}

func (f *businessFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, models.DocBusinessPlan, models.DocSwotAnalysis, models.DocCommercial, models.DocMarketingCopy)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: businessForm(d), docType: d, min: 1}, nil
}

type swotInput struct {
	Description string `json:"description"`
}

type proposalInput struct {
	Product string `json:"product"`
	Client  string `json:"client"`
	Goals   string `json:"goals"`
}

type marketingInput struct {
	CopyType string `json:"copyType"`
	Product  string `json:"product"`
	Audience string `json:"audience"`
	Tone     string `json:"tone"`
	Details  string `json:"details"`
}

type businessPlanInput struct {
	Idea          string `json:"idea"`
	Industry      string `json:"industry"`
	SectionsCount int    `json:"sectionsCount"`
}

func (f *businessFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionSwot:
		in, err := decode[swotInput](c)
		if err != nil {
			return err
		}
		if err := required("description", in.Description); err != nil {
			return err
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepSwotForm,
			cost:     ledger.CostSwot,
			docType:  models.DocSwotAnalysis,
			title:    "SWOT: " + clip(in.Description, 50),
			progress: "running the SWOT analysis",
			op:       backend.OpSwotAnalysis,
			payload:  in,
		})

	case ActionProposal:
		in, err := decode[proposalInput](c)
		if err != nil {
			return err
		}
		if err := required("client", in.Client); err != nil {
			return err
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepProposalForm,
			cost:     ledger.CostProposal,
			docType:  models.DocCommercial,
			title:    "КП для: " + in.Client,
			progress: "writing the commercial proposal",
			op:       backend.OpCommercialProposal,
			payload:  in,
		})

	case ActionMarketing:
		in, err := decode[marketingInput](c)
		if err != nil {
			return err
		}
		if err := required("product", in.Product); err != nil {
			return err
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepMarketingForm,
			cost:     ledger.CostMarketing,
			docType:  models.DocMarketingCopy,
			title:    in.CopyType + ": " + in.Product,
			progress: "writing the marketing copy",
			op:       backend.OpMarketingCopy,
			payload:  in,
		})

	case ActionPlan:
		in, err := decode[businessPlanInput](c)
		if err != nil {
			return err
		}
		if err := required("idea", in.Idea); err != nil {
			return err
		}
		if in.SectionsCount <= 0 {
			return invalid("sectionsCount must be positive")
		}
		var plan backend.SectionPlan
		token, err := runPlan(ctx, env, f.Wizard, c, planCall{
			from:     stepBusinessPlanForm,
			cost:     ledger.CostBusinessPlan,
			docType:  models.DocBusinessPlan,
			progress: "building the business plan outline",
			op:       backend.OpBusinessPlan,
			payload:  in,
		}, &plan)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *sectionDraft) {
			d.Request = append(json.RawMessage(nil), c.Body...)
			d.Plan = &plan
			d.Field = in.Industry
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
		_, err := f.Advance(stepBusinessPlanForm)
		return err

	case ActionRestart:
		_, err := f.Advance(businessForm(f.DocType()))
		return err
	}
	return ErrUnknownAction
}

func (f *businessFlow) runSections(ctx context.Context, env *Env, token uint64) error {
	if !f.current(token) {
		return nil
	}
	d := f.Draft()
	if d.Plan == nil {
		return fmt.Errorf("%w: business plan missing", ErrInvalidTransition)
	}
	plan := *d.Plan
	return runSections(ctx, env, f.Wizard, token, sectionRun{
		code:     d.code,
		docType:  models.DocBusinessPlan,
		title:    plan.Title,
		label:    "section",
		sections: plan.Sections,
		op:       backend.OpBusinessSection,
		payload: func(s backend.Section) any {
			return map[string]any{"section": s, "planTitle": plan.Title, "industry": d.Field}
		},
		heading:  numberedHeading,
		returnTo: stepPlanReview,
		plan:     plan,
	})
}

func numberedHeading(i int, s backend.Section) string {
	return "## " + strconv.Itoa(i+1) + ". " + s.Title + "\n\n"
}

func editSectionPlan(w *Wizard[sectionDraft], c Call) error {
	plan, err := decode[backend.SectionPlan](c)
	if err != nil {
		return err
	}
	if err := validateSections(plan.Title, plan.Sections); err != nil {
		return err
	}
	token, err := w.begin(stepPlanReview)
	if err != nil {
		return err
	}
	w.UpdateDraft(token, func(d *sectionDraft) { d.Plan = &plan })
	return nil
}

// generateSectionPlan charges one generation per section of the reviewed
// plan and starts the section run.
func generateSectionPlan(ctx context.Context, env *Env, w *Wizard[sectionDraft], c Call, run func(context.Context, *Env, uint64) error) error {
	token, err := w.begin(stepPlanReview)
	if err != nil {
		return err
	}
	d := w.Draft()
	if d.Plan == nil || len(d.Plan.Sections) == 0 {
		return invalid("there is no plan to generate")
	}
	w.UpdateDraft(token, func(d *sectionDraft) { d.code = c.Code })
	return startSections(ctx, env, w, c, stepPlanReview, StepGenerating, len(d.Plan.Sections), run)
}
