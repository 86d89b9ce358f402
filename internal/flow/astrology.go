package flow

import (
	"context"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const (
	stepSelection     Step = "selection"
	stepNatalForm     Step = "natal_form"
	stepHoroscopeForm Step = "horoscope_form"
)

const (
	ActionNatal     = "natal"
	ActionHoroscope = "horoscope"
)

var astrologyDefinition = &Definition{
	Name: Astrology,
	Phases: map[Step]Phase{
		stepSelection:     PhaseConfiguring,
		stepNatalForm:     PhaseConfiguring,
		stepHoroscopeForm: PhaseConfiguring,
		StepGenerating:    PhaseGenerating,
		StepCompleted:     PhaseCompleted,
	},
	Next: map[Step][]Step{
		StepNone:          {stepSelection},
		stepSelection:     {stepNatalForm, stepHoroscopeForm},
		stepNatalForm:     {StepGenerating, stepSelection},
		stepHoroscopeForm: {StepGenerating, stepSelection},
		StepCompleted:     {stepSelection},
	},
}

type astrologyDraft struct {
	Kind string `json:"kind,omitempty"`
}

type astrologyFlow struct {
	*Wizard[astrologyDraft]
}

func newAstrologyFlow() *astrologyFlow {
	return &astrologyFlow{Wizard: newWizard[astrologyDraft](astrologyDefinition)}
}

func (f *astrologyFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, models.DocAstrology)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: stepSelection, docType: d, min: ledger.CostHoroscope}, nil
}

type natalInput struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Place string `json:"place"`
}

type horoscopeInput struct {
	Date string `json:"date"`
}

func (f *astrologyFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionSelect:
		in, err := decode[struct {
			Kind string `json:"kind"`
		}](c)
		if err != nil {
			return err
		}
		token, err := f.begin(stepSelection)
		if err != nil {
			return err
		}
		switch in.Kind {
		case ActionNatal:
			// The natal chart costs more than the flow minimum, so it is
			// checked again here and the user stays on the selection.
			if err := requireBalance(env, c.Code, ledger.CostNatalChart); err != nil {
				f.Fail(token, stepSelection, err)
				return err
			}
			_, err = f.Advance(stepNatalForm)
		case ActionHoroscope:
			_, err = f.Advance(stepHoroscopeForm)
		default:
			return invalid("kind must be natal or horoscope")
		}
		if err == nil {
			f.UpdateDraft(token, func(d *astrologyDraft) { d.Kind = in.Kind })
		}
		return err

	case ActionNatal:
		in, err := decode[natalInput](c)
		if err != nil {
			return err
		}
		if in.Date == "" || in.Time == "" || in.Place == "" {
			return invalid("date, time and place are required")
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepNatalForm,
			cost:     ledger.CostNatalChart,
			docType:  models.DocAstrology,
			title:    "Натальная карта",
			progress: "building the chart",
			op:       backend.OpNatalChart,
			payload:  in,
		})

	case ActionHoroscope:
		in, err := decode[horoscopeInput](c)
		if err != nil {
			return err
		}
		if err := required("date", in.Date); err != nil {
			return err
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepHoroscopeForm,
			cost:     ledger.CostHoroscope,
			docType:  models.DocAstrology,
			title:    "Гороскоп",
			progress: "composing the forecast",
			op:       backend.OpHoroscope,
			payload:  in,
		})

	case ActionBack:
		if _, err := f.begin(stepNatalForm, stepHoroscopeForm); err != nil {
			return err
		}
		_, err := f.Advance(stepSelection)
		return err

	case ActionRestart:
		_, err := f.Advance(stepSelection)
		return err
	}
	return ErrUnknownAction
}
