package flow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Actions shared by several flows.
const (
	ActionSubmit   = "submit"
	ActionRestart  = "restart"
	ActionBack     = "back"
	ActionSelect   = "select"
	ActionPlan     = "plan"
	ActionEditPlan = "edit_plan"
	ActionGenerate = "generate"
	ActionMessage  = "message"
	ActionCancel   = "cancel"
)

const (
	stepForm       Step = "form"
	stepUploadForm Step = "upload_form"
)

// formDefinition is the table of a flow with one input step.
func formDefinition(name Name, form Step) *Definition {
	return &Definition{
		Name: name,
		Phases: map[Step]Phase{
			form:           PhaseConfiguring,
			StepGenerating: PhaseGenerating,
			StepCompleted:  PhaseCompleted,
		},
		Next: map[Step][]Step{
			StepNone:      {form},
			form:          {StepGenerating},
			StepCompleted: {form},
		},
	}
}

// formDraft keeps the last submitted input so a failed generation returns
// to a filled form.
type formDraft struct {
	Input json.RawMessage `json:"input,omitempty"`
}

// formFlow is a flow whose single form submission makes one paid backend
// call.
type formFlow struct {
	*Wizard[formDraft]
	form     Step
	docTypes []models.DocumentType
	min      func(models.DocumentType) int
	submit   func(c Call, docType models.DocumentType) (oneShot, error)
}

func fixedMin(n int) func(models.DocumentType) int {
	return func(models.DocumentType) int { return n }
}

func (f *formFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, f.docTypes...)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: f.form, docType: d, min: f.min(d)}, nil
}

func (f *formFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionSubmit:
		token, err := f.begin(f.form)
		if err != nil {
			return err
		}
		job, err := f.submit(c, f.DocType())
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *formDraft) { d.Input = append(json.RawMessage(nil), c.Body...) })
		job.from = f.form
		return runOneShot(ctx, env, f.Wizard, c, job)
	case ActionRestart:
		_, err := f.Advance(f.form)
		return err
	}
	return ErrUnknownAction
}

// clip shortens s to n characters and marks the cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field + " is required")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Standard generation
// ---------------------------------------------------------------------------

type standardInput struct {
	Topic string `json:"topic"`
	Age   int    `json:"age"`
}

func newStandardFlow() *formFlow {
	return &formFlow{
		Wizard:   newWizard[formDraft](formDefinition(Standard, stepForm)),
		form:     stepForm,
		docTypes: models.StandardDocTypes,
		min:      fixedMin(ledger.CostStandard),
		submit: func(c Call, docType models.DocumentType) (oneShot, error) {
			in, err := decode[standardInput](c)
			if err != nil {
				return oneShot{}, err
			}
			if err := required("topic", in.Topic); err != nil {
				return oneShot{}, err
			}
			if in.Age <= 0 {
				return oneShot{}, invalid("age must be positive")
			}
			return oneShot{
				cost:     ledger.CostStandard,
				docType:  docType,
				title:    in.Topic,
				progress: "sending the request",
				op:       backend.OpGenerateText,
				payload:  map[string]any{"docType": docType, "topic": in.Topic, "age": in.Age},
			}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// Personal analysis
// ---------------------------------------------------------------------------

type personalInput struct {
	Gender     string `json:"gender"`
	UserPrompt string `json:"userPrompt"`
}

func newPersonalFlow() *formFlow {
	return &formFlow{
		Wizard:   newWizard[formDraft](formDefinition(Personal, stepForm)),
		form:     stepForm,
		docTypes: []models.DocumentType{models.DocPersonalAnalysis},
		min:      fixedMin(ledger.CostPersonalAnalysis),
		submit: func(c Call, docType models.DocumentType) (oneShot, error) {
			in, err := decode[personalInput](c)
			if err != nil {
				return oneShot{}, err
			}
			if in.Gender != "male" && in.Gender != "female" {
				return oneShot{}, invalid("gender must be male or female")
			}
			if err := required("userPrompt", in.UserPrompt); err != nil {
				return oneShot{}, err
			}
			return oneShot{
				cost:     ledger.CostPersonalAnalysis,
				docType:  docType,
				title:    `Анализ: "` + clip(in.UserPrompt, 40) + `"`,
				progress: "running the personal analysis",
				op:       backend.OpPersonalAnalysis,
				payload:  in,
			}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// File based flows
// ---------------------------------------------------------------------------

type promptInput struct {
	Prompt string `json:"prompt"`
}

func requireFiles(c Call) error {
	if len(c.Files) == 0 {
		return invalid("at least one file is required")
	}
	return nil
}

func newDocAnalysisFlow() *formFlow {
	return &formFlow{
		Wizard:   newWizard[formDraft](formDefinition(DocAnalysis, stepUploadForm)),
		form:     stepUploadForm,
		docTypes: []models.DocumentType{models.DocDocumentAnalysis},
		min:      fixedMin(ledger.CostDocumentAnalysis),
		submit: func(c Call, docType models.DocumentType) (oneShot, error) {
			in, err := decode[promptInput](c)
			if err != nil {
				return oneShot{}, err
			}
			if err := requireFiles(c); err != nil {
				return oneShot{}, err
			}
			return oneShot{
				cost:      ledger.CostDocumentAnalysis,
				docType:   docType,
				title:     `Анализ документов: "` + clip(in.Prompt, 40) + `"`,
				progress:  "uploading files",
				op:        backend.OpAnalyzeUserDocuments,
				payload:   in,
				files:     c.Files,
				withFiles: true,
			}, nil
		},
	}
}

func newFileTaskFlow() *formFlow {
	return &formFlow{
		Wizard:   newWizard[formDraft](formDefinition(FileTask, stepUploadForm)),
		form:     stepUploadForm,
		docTypes: []models.DocumentType{models.DocDoHomework, models.DocSolveControlWork},
		min:      fixedMin(1),
		submit: func(c Call, docType models.DocumentType) (oneShot, error) {
			in, err := decode[promptInput](c)
			if err != nil {
				return oneShot{}, err
			}
			if err := requireFiles(c); err != nil {
				return oneShot{}, err
			}
			return oneShot{
				cost:      ledger.FileTaskCost(docType),
				docType:   docType,
				title:     string(docType) + ": " + orDefault(in.Prompt, "Файлы без темы"),
				progress:  "uploading files",
				op:        backend.OpSolveTaskFromFiles,
				payload:   map[string]any{"prompt": in.Prompt, "docType": docType},
				files:     c.Files,
				withFiles: true,
			}, nil
		},
	}
}

func newScienceFileFlow() *formFlow {
	return &formFlow{
		Wizard:   newWizard[formDraft](formDefinition(ScienceFile, stepUploadForm)),
		form:     stepUploadForm,
		docTypes: []models.DocumentType{models.DocScientific, models.DocTechImprovement},
		min:      fixedMin(ledger.CostScienceFiles),
		submit: func(c Call, docType models.DocumentType) (oneShot, error) {
			in, err := decode[promptInput](c)
			if err != nil {
				return oneShot{}, err
			}
			if err := requireFiles(c); err != nil {
				return oneShot{}, err
			}
			return oneShot{
				cost:      ledger.CostScienceFiles,
				docType:   docType,
				title:     string(docType) + ": " + orDefault(in.Prompt, "Анализ файлов"),
				progress:  "uploading files",
				op:        backend.OpScienceTaskFromFiles,
				payload:   map[string]any{"prompt": in.Prompt, "docType": docType},
				files:     c.Files,
				withFiles: true,
			}, nil
		},
	}
}

func newAnalysisFlow() *formFlow {
	return &formFlow{
		Wizard:   newWizard[formDraft](formDefinition(Analysis, stepUploadForm)),
		form:     stepUploadForm,
		docTypes: []models.DocumentType{models.DocAnalysisShort, models.DocAnalysisVerify},
		min:      ledger.AnalysisCost,
		submit: func(c Call, docType models.DocumentType) (oneShot, error) {
			in, err := decode[promptInput](c)
			if err != nil {
				return oneShot{}, err
			}
			if strings.TrimSpace(in.Prompt) == "" && len(c.Files) == 0 {
				return oneShot{}, invalid("a prompt or a file is required")
			}
			subject := in.Prompt
			if strings.TrimSpace(subject) == "" && len(c.Files) > 0 {
				subject = c.Files[0].Name
			}
			return oneShot{
				cost:      ledger.AnalysisCost(docType),
				docType:   docType,
				title:     string(docType) + ": " + orDefault(subject, "Анализ"),
				progress:  "running the analysis",
				op:        backend.OpPerformAnalysis,
				payload:   map[string]any{"prompt": in.Prompt, "docType": docType},
				files:     c.Files,
				withFiles: true,
			}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// Forecasting
// ---------------------------------------------------------------------------

func newForecastingFlow() *formFlow {
	return &formFlow{
		Wizard:   newWizard[formDraft](formDefinition(Forecasting, stepForm)),
		form:     stepForm,
		docTypes: []models.DocumentType{models.DocForecasting},
		min:      fixedMin(ledger.CostForecast),
		submit: func(c Call, docType models.DocumentType) (oneShot, error) {
			in, err := decode[promptInput](c)
			if err != nil {
				return oneShot{}, err
			}
			if err := required("prompt", in.Prompt); err != nil {
				return oneShot{}, err
			}
			return oneShot{
				cost:     ledger.CostForecast,
				docType:  docType,
				title:    "Прогноз: " + clip(in.Prompt, 40),
				progress: "collecting data for the forecast",
				op:       backend.OpForecasting,
				payload:  in,
			}, nil
		},
	}
}
