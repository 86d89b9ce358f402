package backend

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrInvalidResponse means the backend answered 2xx with a body that does not
// match the shape the operation promises.
var ErrInvalidResponse = errors.New("invalid backend response")

// responseSchemas maps an operation to the schema file its response must
// satisfy. Operations without an entry are not checked.
var responseSchemas = map[string]string{
	OpGenerateText:          "text_result",
	OpNatalChart:            "text_result",
	OpHoroscope:             "text_result",
	OpBookChapter:           "text_result",
	OpSolveTaskFromFiles:    "text_result",
	OpScienceTaskFromFiles:  "text_result",
	OpCreativeTaskFromFiles: "text_result",
	OpAnalyzeUserDocuments:  "text_result",
	OpSwotAnalysis:          "text_result",
	OpCommercialProposal:    "text_result",
	OpBusinessSection:       "text_result",
	OpMarketingCopy:         "text_result",
	OpRewriteText:           "text_result",
	OpAudioScript:           "text_result",
	OpArticleSection:        "text_result",
	OpGenerateCode:          "text_result",
	OpPersonalAnalysis:      "text_result",
	OpPerformAnalysis:       "text_result",
	OpForecasting:           "text_result",
	OpSendMessageInSession:  "text_result",
	OpSendAssistantMessage:  "text_result",
	OpBookPlan:              "book_plan",
	OpBusinessPlan:          "section_plan",
	OpArticlePlan:           "section_plan",
	OpGrantPlan:             "section_plan",
	OpAnalyzeCodeTask:       "code_analysis",
	OpThesisSections:        "thesis_sections",
	OpStartChatSession:      "chat_session",
}

// Validator checks backend responses against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	compiled := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		compiled[name], err = jsonschema.CompileString("https://ai-service.local/schemas/"+name, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	for op, name := range responseSchemas {
		if _, ok := compiled[name]; !ok {
			return nil, fmt.Errorf("operation %q: schema %q missing", op, name)
		}
	}
	return &Validator{schemas: compiled}, nil
}

// ValidateResponse returns ErrInvalidResponse when body does not match the
// operation's response schema.
func (v *Validator) ValidateResponse(op string, body json.RawMessage) error {
	name, ok := responseSchemas[op]
	if !ok {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := v.schemas[name].Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, op, err)
	}
	return nil
}
