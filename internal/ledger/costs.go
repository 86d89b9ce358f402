package ledger

import "github.com/BogateyDi/ai-service-frontend/internal/models"

// Fixed operation costs in generations.
const (
	CostStandard         = 1
	CostHoroscope        = 1
	CostNatalChart       = 2
	CostPlan             = 1
	CostBusinessPlan     = 2
	CostPersonalAnalysis = 1
	CostDocumentAnalysis = 2
	CostChatMessage      = 1
	CostSwot             = 2
	CostProposal         = 2
	CostMarketing        = 1
	CostScriptAnalysis   = 2
	CostScienceFiles     = 2
	CostCodeAnalysis     = 1
	CostForecast         = 3
	CostMinAudioScript   = 2
)

const (
	rewriteCharsPerGeneration = 5000
	chatCharsPerGeneration    = 5000
	audioMinutesPerUnit       = 5
)

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}

// RewriteCost charges per 5000 characters of source text plus one for an
// attached file, never less than 1.
func RewriteCost(textLen int, hasFile bool) int {
	cost := ceilDiv(textLen, rewriteCharsPerGeneration)
	if hasFile {
		cost++
	}
	return max(1, cost)
}

// AudioScriptCost charges 2 per started 5 minutes, never less than 2.
func AudioScriptCost(durationMinutes int) int {
	return max(CostMinAudioScript, ceilDiv(durationMinutes, audioMinutesPerUnit)*2)
}

// ChatExchangeCost charges per 5000 characters of message, reply and
// attachment combined, never less than 1.
func ChatExchangeCost(messageLen, replyLen, attachmentLen int) int {
	return max(1, ceilDiv(messageLen+replyLen+attachmentLen, chatCharsPerGeneration))
}

func FileTaskCost(docType models.DocumentType) int {
	if docType == models.DocDoHomework {
		return 2
	}
	return 1
}

func AnalysisCost(docType models.DocumentType) int {
	if docType == models.DocAnalysisVerify {
		return 3
	}
	return 2
}
