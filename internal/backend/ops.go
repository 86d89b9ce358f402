package backend

import (
	"encoding/json"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Operation names understood by the generation backend.
const (
	OpGenerateText           = "generateText"
	OpNatalChart             = "generateNatalChart"
	OpHoroscope              = "generateHoroscope"
	OpBookPlan               = "generateBookPlan"
	OpBookChapter            = "generateSingleChapter"
	OpSolveTaskFromFiles     = "solveTaskFromFiles"
	OpScienceTaskFromFiles   = "analyzeScienceTaskFromFiles"
	OpCreativeTaskFromFiles  = "analyzeCreativeTaskFromFiles"
	OpAnalyzeUserDocuments   = "analyzeUserDocuments"
	OpSwotAnalysis           = "generateSwotAnalysis"
	OpCommercialProposal     = "generateCommercialProposal"
	OpBusinessPlan           = "generateBusinessPlan"
	OpBusinessSection        = "generateSingleBusinessSection"
	OpMarketingCopy          = "generateMarketingCopy"
	OpRewriteText            = "rewriteText"
	OpAudioScript            = "generateAudioScript"
	OpArticlePlan            = "generateArticlePlan"
	OpGrantPlan              = "generateGrantPlan"
	OpArticleSection         = "generateSingleArticleSection"
	OpThesisSections         = "generateThesisSections"
	OpAnalyzeCodeTask        = "analyzeCodeTask"
	OpGenerateCode           = "generateCode"
	OpPersonalAnalysis       = "generatePersonalAnalysis"
	OpPerformAnalysis        = "performAnalysis"
	OpForecasting            = "generateForecasting"
	OpStartChatSession       = "startChatSession"
	OpSendMessageInSession   = "sendMessageInSession"
	OpSendAssistantMessage   = "sendMessage"
)

// Result is the common generation response.
type Result struct {
	DocType    models.DocumentType `json:"docType"`
	Text       string              `json:"text"`
	Uniqueness float64             `json:"uniqueness,omitempty"`
	TokenCount int                 `json:"tokenCount,omitempty"`
	PageCount  float64             `json:"pageCount,omitempty"`
	Sources    []models.WebSource  `json:"sources,omitempty"`
	Plan       json.RawMessage     `json:"plan,omitempty"`
}

// Section is one entry of a plan: a book chapter, a business plan section
// or an article section.
type Section struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	GenerationPrompt string `json:"generationPrompt"`
}

type BookPlan struct {
	Title    string    `json:"title"`
	Chapters []Section `json:"chapters"`
}

// SectionPlan is the outline returned for business plans, articles and
// grant proposals.
type SectionPlan struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

type CodeAnalysis struct {
	Plan       string `json:"plan"`
	Complexity string `json:"complexity"`
	Cost       int    `json:"cost"`
}

// Thesis section content types.
const (
	ThesisGenerate = "generate"
	ThesisText     = "text"
	ThesisFile     = "file"
	ThesisSkip     = "skip"
)

type ThesisSection struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ContentType     string `json:"contentType"`
	PagesToGenerate int    `json:"pagesToGenerate"`
	Content         string `json:"content"`
	FileName        string `json:"fileName,omitempty"`
}

type ThesisSectionText struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Specialist struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Category          string `json:"category,omitempty"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
}

type ChatSession struct {
	ChatID string `json:"chatId"`
}

type ChatReply struct {
	Text    string             `json:"text"`
	Sources []models.WebSource `json:"sources,omitempty"`
}

// ChatContext accompanies a message to one of the personal assistants.
type ChatContext struct {
	Assistant models.Assistant         `json:"assistant"`
	History   []models.ChatMessage     `json:"history"`
	Settings  models.AssistantSettings `json:"settings"`
}

type AssistantMessage struct {
	ChatContext ChatContext              `json:"chatContext"`
	Message     string                   `json:"message"`
	Attachment  *models.GenerationRecord `json:"attachment,omitempty"`
}
