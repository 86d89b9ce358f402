package flow

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

const (
	stepRewritingForm     Step = "rewriting_form"
	stepScriptUploadForm  Step = "script_upload_form"
	stepAudioScriptTopic  Step = "audio_script_topic"
	stepAudioScriptConfig Step = "audio_script_config"
)

const (
	ActionRewrite    = "rewrite"
	ActionScript     = "script"
	ActionAudioTopic = "audio_topic"
	ActionAudio      = "audio"
)

var creativeDefinition = &Definition{
	Name: Creative,
	Phases: map[Step]Phase{
		stepRewritingForm:     PhaseConfiguring,
		stepScriptUploadForm:  PhaseConfiguring,
		stepAudioScriptTopic:  PhaseConfiguring,
		stepAudioScriptConfig: PhaseConfiguring,
		StepGenerating:        PhaseGenerating,
		StepCompleted:         PhaseCompleted,
	},
	Next: map[Step][]Step{
		StepNone:              {stepRewritingForm, stepScriptUploadForm, stepAudioScriptTopic},
		stepRewritingForm:     {StepGenerating},
		stepScriptUploadForm:  {StepGenerating},
		stepAudioScriptTopic:  {stepAudioScriptConfig},
		stepAudioScriptConfig: {StepGenerating, stepAudioScriptTopic},
		StepCompleted:         {stepRewritingForm, stepScriptUploadForm, stepAudioScriptTopic},
	},
}

type audioTopic struct {
	Topic    string `json:"topic"`
	Duration int    `json:"duration"`
}

type creativeDraft struct {
	Audio *audioTopic `json:"audio,omitempty"`
}

type creativeFlow struct {
	*Wizard[creativeDraft]
}

func newCreativeFlow() *creativeFlow {
	return &creativeFlow{Wizard: newWizard[creativeDraft](creativeDefinition)}
}

func creativeEntry(docType models.DocumentType) (Step, int) {
	switch docType {
	case models.DocScript:
		return stepScriptUploadForm, ledger.CostScriptAnalysis
	case models.DocAudioScript:
		return stepAudioScriptTopic, ledger.CostMinAudioScript
	}
	return stepRewritingForm, 1
}

func (f *creativeFlow) entry(docType models.DocumentType) (entryPoint, error) {
	d, err := pickDocType(docType, models.DocTextRewriting, models.DocScript, models.DocAudioScript)
	if err != nil {
		return entryPoint{}, err
	}
	step, min := creativeEntry(d)
	return entryPoint{step: step, docType: d, min: min}, nil
}

type rewriteInput struct {
	OriginalText string `json:"originalText"`
	Goal         string `json:"goal"`
	Style        string `json:"style,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

type scriptInput struct {
	Text   string `json:"text"`
	Prompt string `json:"prompt"`
}

type audioConfig struct {
	Format string `json:"format"`
	Type   string `json:"type"`
	Voice1 string `json:"voice1,omitempty"`
	Voice2 string `json:"voice2,omitempty"`
}

var errAudioTopicMissing = errors.New("audio topic or duration missing")

func (f *creativeFlow) Act(ctx context.Context, env *Env, c Call, action string) error {
	switch action {
	case ActionRewrite:
		in, err := decode[rewriteInput](c)
		if err != nil {
			return err
		}
		files := c.Files
		if len(files) > 1 {
			files = files[:1]
		}
		if strings.TrimSpace(in.OriginalText) == "" && len(files) == 0 {
			return invalid("text or a file is required")
		}
		if err := required("goal", in.Goal); err != nil {
			return err
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepRewritingForm,
			cost:     ledger.RewriteCost(utf8.RuneCountInString(in.OriginalText), len(files) > 0),
			docType:  models.DocTextRewriting,
			title:    "Переработка текста (Цель: " + in.Goal + ")",
			progress: "rewriting the text",
			op:       backend.OpRewriteText,
			payload:  in,
			files:    files,
		})

	case ActionScript:
		in, err := decode[scriptInput](c)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.Text) == "" && len(c.Files) == 0 {
			return invalid("text or a file is required")
		}
		docType := f.DocType()
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:      stepScriptUploadForm,
			cost:      ledger.CostScriptAnalysis,
			docType:   docType,
			title:     string(docType) + ": " + orDefault(in.Prompt, "Анализ материалов"),
			progress:  "analysing the materials",
			op:        backend.OpCreativeTaskFromFiles,
			payload:   map[string]any{"text": in.Text, "prompt": in.Prompt, "docType": docType},
			files:     c.Files,
			withFiles: true,
		})

	case ActionAudioTopic:
		in, err := decode[audioTopic](c)
		if err != nil {
			return err
		}
		if err := required("topic", in.Topic); err != nil {
			return err
		}
		if in.Duration <= 0 {
			return invalid("duration must be positive")
		}
		token, err := f.Advance(stepAudioScriptConfig)
		if err != nil {
			return err
		}
		f.UpdateDraft(token, func(d *creativeDraft) { d.Audio = &in })
		return nil

	case ActionAudio:
		cfg, err := decode[audioConfig](c)
		if err != nil {
			return err
		}
		if cfg.Format != "dialogue" && cfg.Format != "monologue" {
			return invalid("format must be dialogue or monologue")
		}
		topic := f.Draft().Audio
		if topic == nil || topic.Topic == "" || topic.Duration <= 0 {
			token, err := f.begin(stepAudioScriptConfig)
			if err != nil {
				return err
			}
			f.Fail(token, stepAudioScriptTopic, errAudioTopicMissing)
			return errAudioTopicMissing
		}
		return runOneShot(ctx, env, f.Wizard, c, oneShot{
			from:     stepAudioScriptConfig,
			cost:     ledger.AudioScriptCost(topic.Duration),
			docType:  models.DocAudioScript,
			title:    "Аудио-скрипт: " + clip(topic.Topic, 40),
			progress: "writing the audio script",
			op:       backend.OpAudioScript,
			payload: map[string]any{
				"topic":    topic.Topic,
				"duration": topic.Duration,
				"format":   cfg.Format,
				"type":     cfg.Type,
				"voice1":   cfg.Voice1,
				"voice2":   cfg.Voice2,
			},
		})

	case ActionBack:
		if _, err := f.begin(stepAudioScriptConfig); err != nil {
			return err
		}
		_, err := f.Advance(stepAudioScriptTopic)
		return err

	case ActionRestart:
		step, _ := creativeEntry(f.DocType())
		_, err := f.Advance(step)
		return err
	}
	return ErrUnknownAction
}
