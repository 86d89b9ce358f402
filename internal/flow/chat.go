package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const (
	stepSubjectSelection Step = "subject_selection"
	stepChatting         Step = "chatting"
)

func chatDefinition(name Name, selection Step) *Definition {
	return &Definition{
		Name: name,
		Phases: map[Step]Phase{
			selection:    PhaseConfiguring,
			stepChatting: PhaseReviewing,
		},
		Next: map[Step][]Step{
			StepNone:     {selection},
			selection:    {stepChatting},
			stepChatting: {selection},
		},
	}
}

type chatDraft struct {
	ChatID     string              `json:"chat_id,omitempty"`
	Specialist *backend.Specialist `json:"specialist,omitempty"`
	Subject    string              `json:"subject,omitempty"`
	Age        int                 `json:"age,omitempty"`
}

// chatFlow is a paid conversation held in a backend chat session: the
// specialist consultation and the tutor. Messages live only in the session.
type chatFlow struct {
	*Wizard[chatDraft]
	selection Step
	docType   models.DocumentType

	// sendMu keeps one backend call in flight per conversation.
	sendMu sync.Mutex

	open func(c Call) (payload any, draft chatDraft, intro string, err error)
}

func (f *chatFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, f.docType)
	if err != nil {
		return entryPoint{}, err
	}
	return entryPoint{step: f.selection, docType: d, min: ledger.CostChatMessage}, nil
}

type messageInput struct {
	Text string `json:"text"`
}

func (f *chatFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionSelect:
		token, err := f.begin(f.selection)
		if err != nil {
			return err
		}
		payload, draft, intro, err := f.open(c)
		if err != nil {
			return err
		}
		var session backend.ChatSession
		if err := env.Backend.Call(ctx, backend.OpStartChatSession, payload, &session); err != nil {
			f.Fail(token, f.selection, fmt.Errorf("could not start the chat: %w", err))
			return err
		}
		draft.ChatID = session.ChatID
		if !f.MoveTo(token, stepChatting) {
			return ErrInvalidTransition
		}
		f.UpdateDraft(token, func(d *chatDraft) { *d = draft })
		f.appendMessages(token, models.ChatMessage{Role: models.RoleModel, Text: intro, Timestamp: time.Now().UnixMilli()})
		return nil

	case ActionMessage:
		in, err := decode[messageInput](c)
		if err != nil {
			return err
		}
		if err := required("text", in.Text); err != nil {
			return err
		}
		f.sendMu.Lock()
		defer f.sendMu.Unlock()

		token, err := f.begin(stepChatting)
		if err != nil {
			return err
		}
		if err := env.charge(ctx, c.Code, ledger.CostChatMessage, f.docType); err != nil {
			return err
		}
		f.appendMessages(token, models.ChatMessage{Role: models.RoleUser, Text: in.Text, Timestamp: time.Now().UnixMilli()})

		var reply backend.ChatReply
		err = env.Backend.Call(ctx, backend.OpSendMessageInSession, map[string]string{
			"chatId":  f.Draft().ChatID,
			"message": in.Text,
		}, &reply)
		if err != nil {
			f.appendMessages(token, models.ChatMessage{Role: models.RoleModel, Text: "Ошибка: " + err.Error(), Timestamp: time.Now().UnixMilli()})
			return err
		}
		f.appendMessages(token, models.ChatMessage{Role: models.RoleModel, Text: reply.Text, Sources: reply.Sources, Timestamp: time.Now().UnixMilli()})
		return nil

	case ActionBack:
		if _, err := f.begin(stepChatting); err != nil {
			return err
		}
		f.Reset()
		return f.enter(f.selection, f.docType)
	}
	return ErrUnknownAction
}

func newConsultationFlow() *chatFlow {
	return &chatFlow{
		Wizard:    newWizard[chatDraft](chatDefinition(Consultation, stepSelection)),
		selection: stepSelection,
		docType:   models.DocConsultation,
		open: func(c Call) (any, chatDraft, string, error) {
			in, err := decode[struct {
				Specialist backend.Specialist `json:"specialist"`
			}](c)
			if err != nil {
				return nil, chatDraft{}, "", err
			}
			sp := in.Specialist
			if sp.ID == "" || sp.Name == "" {
				return nil, chatDraft{}, "", invalid("specialist id and name are required")
			}
			intro := fmt.Sprintf(`Здравствуйте! Я ваш виртуальный ассистент в роли "%s". Чем могу помочь?`, strings.ToLower(sp.Name))
			return map[string]any{"specialist": sp}, chatDraft{Specialist: &sp}, intro, nil
		},
	}
}

func newTutorFlow() *chatFlow {
	return &chatFlow{
		Wizard:    newWizard[chatDraft](chatDefinition(Tutor, stepSubjectSelection)),
		selection: stepSubjectSelection,
		docType:   models.DocTutor,
		open: func(c Call) (any, chatDraft, string, error) {
			in, err := decode[struct {
				Subject string `json:"subject"`
				Age     int    `json:"age"`
			}](c)
			if err != nil {
				return nil, chatDraft{}, "", err
			}
			if err := required("subject", in.Subject); err != nil {
				return nil, chatDraft{}, "", err
			}
			intro := fmt.Sprintf("Привет! Я твой личный репетитор по предмету \"%s\". "+
				"Задавай любые вопросы по этой теме, проси объяснить сложный материал или помочь с домашним заданием. С чего начнем?", in.Subject)
			return map[string]any{"tutorSubject": in.Subject, "age": in.Age},
				chatDraft{Subject: in.Subject, Age: in.Age}, intro, nil
		},
	}
}
