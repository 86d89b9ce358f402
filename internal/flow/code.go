package flow

import (
	"context"
	"fmt"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const stepCodeReview Step = "review"

const ActionAnalyze = "analyze"

var codeDefinition = &Definition{
	Name: Code,
	Phases: map[Step]Phase{
		stepForm:       PhaseConfiguring,
		StepGenerating: PhaseGenerating,
		stepCodeReview: PhaseReviewing,
		StepCompleted:  PhaseCompleted,
	},
	Next: map[Step][]Step{
		StepNone:       {stepForm},
		stepForm:       {StepGenerating},
		StepGenerating: {stepCodeReview},
		stepCodeReview: {StepGenerating, stepForm},
		StepCompleted:  {stepForm},
	},
}

type codeRequest struct {
	Language        string `json:"language"`
	TaskDescription string `json:"taskDescription"`
}

type codeDraft struct {
	Request  *codeRequest          `json:"request,omitempty"`
	Analysis *backend.CodeAnalysis `json:"analysis,omitempty"`
}

// codeFlow prices a programming task with a paid analysis first; the user
// then accepts the quoted cost or cancels.
type codeFlow struct {
	*Wizard[codeDraft]
}

func newCodeFlow() *codeFlow {
	return &codeFlow{Wizard: newWizard[codeDraft](codeDefinition)}
}

func (f *codeFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, models.DocCodeGeneration)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: stepForm, docType: d, min: ledger.CostCodeAnalysis}, nil
}

func (f *codeFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionAnalyze:
		in, err := decode[codeRequest](c)
		if err != nil {
			return err
		}
		if err := required("language", in.Language); err != nil {
			return err
		}
		if err := required("taskDescription", in.TaskDescription); err != nil {
			return err
		}
		var analysis backend.CodeAnalysis
		token, err := runPlan(ctx, env, f.Wizard, c, planCall{
			from:     stepForm,
			cost:     ledger.CostCodeAnalysis,
			docType:  models.DocCodeGeneration,
			progress: "analysing the task",
			op:       backend.OpAnalyzeCodeTask,
			payload:  in,
		}, &analysis)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *codeDraft) {
			d.Request = &in
			d.Analysis = &analysis
		})
		f.MoveTo(token, stepCodeReview)
		return nil

	case ActionGenerate:
		if _, err := f.begin(stepCodeReview); err != nil {
			return err
		}
		d := f.Draft()
		if d.Request == nil || d.Analysis == nil {
			return invalid("the task has not been analysed")
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepCodeReview,
			cost:     d.Analysis.Cost,
			docType:  models.DocCodeGeneration,
			title:    fmt.Sprintf("Код (%s): %s", d.Request.Language, clip(d.Request.TaskDescription, 40)),
			progress: "generating the code",
			op:       backend.OpGenerateCode,
			payload:  d.Request,
		})

	case ActionCancel:
		token, err := f.begin(stepCodeReview)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *codeDraft) { *d = codeDraft{} })
		_, err = f.Advance(stepForm)
		return err

	case ActionRestart:
		_, err := f.Advance(stepForm)
		return err
	}
	return ErrUnknownAction
}
