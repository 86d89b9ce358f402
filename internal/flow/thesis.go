package flow

import (
	"context"
	"strings"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

type thesisInput struct {
	Topic    string                  `json:"topic"`
	Field    string                  `json:"field"`
	Sections []backend.ThesisSection `json:"sections"`
}

type thesisFlow struct {
	*Wizard[formDraft]
}

func newThesisFlow() *thesisFlow {
	return &thesisFlow{Wizard: newWizard[formDraft](formDefinition(Thesis, stepForm))}
}

func (f *thesisFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, models.DocThesis)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: stepForm, docType: d}, nil
}

// ThesisCost is one generation per page requested from generate sections.
func ThesisCost(sections []backend.ThesisSection) int {
	cost := 0
	for _, s := range sections {
		if s.ContentType == backend.ThesisGenerate {
			cost += s.PagesToGenerate
		}
	}
	return cost
}

func validateThesis(in thesisInput) error {
	if err := required("topic", in.Topic); err != nil {
		return err
	}
	own := false
	for _, s := range in.Sections {
		switch s.ContentType {
		case backend.ThesisGenerate:
			if s.PagesToGenerate < 0 {
				return invalid("pagesToGenerate must not be negative")
			}
		case backend.ThesisText, backend.ThesisFile:
			own = true
		case backend.ThesisSkip:
		default:
			return invalid("unknown section content type " + s.ContentType)
		}
	}
	if ThesisCost(in.Sections) == 0 && !own {
		return invalid("choose at least one section to generate or add your own content")
	}
	return nil
}

// assembleThesis joins the sections in order. Generated text wins over the
// section's own content; file sections get a placeholder naming the file.
func assembleThesis(topic string, sections []backend.ThesisSection, generated []backend.ThesisSectionText) string {
	byID := make(map[string]string, len(generated))
	for _, g := range generated {
		byID[g.ID] = g.Text
	}
	var b strings.Builder
	b.WriteString("# Дипломная работа\n## Тема: " + topic + "\n\n")
	for _, s := range sections {
		if s.ContentType == backend.ThesisSkip {
			continue
		}
		b.WriteString("\n\n### " + s.Title + "\n\n")
		if text, ok := byID[s.ID]; ok {
			b.WriteString(text)
			continue
		}
		switch {
		case s.ContentType == backend.ThesisText:
			b.WriteString(s.Content)
		case s.ContentType == backend.ThesisFile && s.FileName != "":
			b.WriteString("[Содержимое файла " + s.FileName + " будет вставлено здесь]")
		}
	}
	return b.String()
}

func (f *thesisFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionSubmit:
		in, err := decode[thesisInput](c)
		if err != nil {
			return err
		}
		if err := validateThesis(in); err != nil {
			return err
		}
		token, err := f.startWork(stepForm, StepGenerating)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *formDraft) { d.Input = append([]byte(nil), c.Body...) })
		if err := env.charge(ctx, c.Code, ThesisCost(in.Sections), models.DocThesis); err != nil {
			f.Fail(token, stepForm, err)
			return err
		}
		f.SetProgress(token, "working on the thesis")

		var toGenerate []backend.ThesisSection
		for _, s := range in.Sections {
			if s.ContentType == backend.ThesisGenerate {
				toGenerate = append(toGenerate, s)
			}
		}
		var generated []backend.ThesisSectionText
		if len(toGenerate) > 0 {
			err := env.Backend.Call(ctx, backend.OpThesisSections, map[string]any{
				"topic":    in.Topic,
				"field":    in.Field,
				"sections": toGenerate,
			}, &generated)
			if err != nil {
				f.Fail(token, stepForm, err)
				return err
			}
		}

		text := assembleThesis(in.Topic, in.Sections, generated)
		m := Metrics(text)
		out := &Result{
			DocType:    models.DocThesis,
			Title:      "Диплом: " + in.Topic,
			Text:       text,
			TokenCount: m.TokenCount,
			PageCount:  m.PageCount,
		}
		warning := env.record(ctx, c.Code, out)
		f.Complete(token, out, warning)
		return nil

	case ActionRestart:
		_, err := f.Advance(stepForm)
		return err
	}
	return ErrUnknownAction
}
