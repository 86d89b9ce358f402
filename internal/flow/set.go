package flow

import (
	"context"
	"errors"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Name identifies a flow.
type Name string

const (
	Standard     Name = "standard"
	Astrology    Name = "astrology"
	Book         Name = "book"
	Personal     Name = "personal"
	DocAnalysis  Name = "doc_analysis"
	Consultation Name = "consultation"
	Tutor        Name = "tutor"
	FileTask     Name = "file_task"
	Business     Name = "business"
	Creative     Name = "creative"
	Science      Name = "science"
	ScienceFile  Name = "science_file"
	Code         Name = "code"
	Thesis       Name = "thesis"
	Analysis     Name = "analysis"
	Forecasting  Name = "forecasting"
)

// Flow is one wizard. Wizard supplies the bookkeeping; concrete flows supply
// entry and Act.
type Flow interface {
	Name() Name
	View() View
	Reset()
	Step() Step
	Act(ctx context.Context, env *Env, c Call, action string) error

	entry(docType models.DocumentType) (entryPoint, error)
	refuse(err error)
	enter(to Step, docType models.DocumentType) error
}

// Set holds one instance of every flow for a session.
type Set struct {
	order []Name
	flows map[Name]Flow
}

func NewSet() *Set {
	all := []Flow{
		newStandardFlow(),
		newAstrologyFlow(),
		newBookFlow(),
		newPersonalFlow(),
		newDocAnalysisFlow(),
		newConsultationFlow(),
		newTutorFlow(),
		newFileTaskFlow(),
		newBusinessFlow(),
		newCreativeFlow(),
		newScienceFlow(),
		newScienceFileFlow(),
		newCodeFlow(),
		newThesisFlow(),
		newAnalysisFlow(),
		newForecastingFlow(),
	}
	s := &Set{flows: make(map[Name]Flow, len(all))}
	for _, f := range all {
		s.order = append(s.order, f.Name())
		s.flows[f.Name()] = f
	}
	return s
}

func (s *Set) Get(name Name) (Flow, error) {
	f, ok := s.flows[name]
	if !ok {
		return nil, ErrUnknownFlow
	}
	return f, nil
}

// Reset discards every flow's state. In-flight work finishes without
// touching the reset state.
func (s *Set) Reset() {
	for _, f := range s.flows {
		f.Reset()
	}
}

// Start resets all flows and enters the named one. When the balance is below
// the flow's minimum the flow stays idle with the error recorded.
func (s *Set) Start(ctx context.Context, env *Env, c Call, name Name, docType models.DocumentType) (View, error) {
	f, err := s.Get(name)
	if err != nil {
		return View{}, err
	}
	s.Reset()
	ep, err := f.entry(docType)
	if err != nil {
		return f.View(), err
	}
	if err := requireBalance(env, c.Code, ep.min); err != nil {
		f.refuse(err)
		return f.View(), err
	}
	if err := f.enter(ep.step, ep.docType); err != nil {
		return f.View(), err
	}
	return f.View(), nil
}

// Act runs a user action against the named flow.
func (s *Set) Act(ctx context.Context, env *Env, c Call, name Name, action string) (View, error) {
	f, err := s.Get(name)
	if err != nil {
		return View{}, err
	}
	err = f.Act(ctx, env, c, action)
	return f.View(), err
}

// FlowFor returns the first flow that handles docType.
func (s *Set) FlowFor(docType models.DocumentType) (Name, bool) {
	if docType == "" {
		return "", false
	}
	for _, name := range s.order {
		if _, err := s.flows[name].entry(docType); err == nil {
			return name, true
		}
	}
	return "", false
}

// Active returns the view of the flow that is not idle, if any.
func (s *Set) Active() (View, bool) {
	for _, name := range s.order {
		f := s.flows[name]
		if f.Step() != StepNone {
			return f.View(), true
		}
	}
	return View{}, false
}

// sectionFlow is implemented by flows that generate a plan section by
// section.
type sectionFlow interface {
	Flow
	runSections(ctx context.Context, env *Env, token uint64) error
}

var errNotSectioned = errors.New("flow does not generate sections")

// entryPoint is where Start puts a flow for a document type and the
// minimum balance needed to get there.
type entryPoint struct {
	step    Step
	docType models.DocumentType
	min     int
}

// pickDocType defaults an empty document type to the flow's first one and
// rejects types the flow does not handle.
func pickDocType(docType models.DocumentType, allowed ...models.DocumentType) (models.DocumentType, error) {
	if docType == "" {
		return allowed[0], nil
	}
	for _, d := range allowed {
		if d == docType {
			return d, nil
		}
	}
	return "", invalid("document type " + string(docType) + " is not handled by this flow")
}
