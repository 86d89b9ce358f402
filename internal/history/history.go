// Package history maintains the bounded per-account generation and chat
// logs. Functions mutate the account they are given; callers pass the working
// copy from ledger.ApplyIfWithinStorageLimit.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

func NewRecord(docType models.DocumentType, title, text string, now time.Time) models.GenerationRecord {
	return models.GenerationRecord{
		ID:        uuid.NewString(),
		Timestamp: now.UnixMilli(),
		DocType:   docType,
		Title:     title,
		Text:      text,
	}
}

// RecordGeneration prepends rec and keeps the newest entries up to the cap.
func RecordGeneration(acc *models.Account, rec models.GenerationRecord) {
	h := make([]models.GenerationRecord, 0, min(len(acc.GenerationHistory)+1, models.GenerationHistoryCap))
	h = append(h, rec)
	for _, r := range acc.GenerationHistory {
		if len(h) == models.GenerationHistoryCap {
			break
		}
		h = append(h, r)
	}
	acc.GenerationHistory = h
}

// AppendChatMessage adds msg to the assistant's log, dropping the oldest
// messages past the cap. When the assistant's memory is off nothing is
// stored and it returns false.
func AppendChatMessage(acc *models.Account, asst models.Assistant, msg models.ChatMessage) bool {
	if !acc.Settings(asst).MemoryEnabled {
		return false
	}
	acc.SetChatHistory(asst, TrimChat(append(acc.ChatHistory(asst), msg)))
	return true
}

// TrimChat keeps the newest messages up to the cap.
func TrimChat(msgs []models.ChatMessage) []models.ChatMessage {
	if len(msgs) <= models.ChatHistoryCap {
		return msgs
	}
	out := make([]models.ChatMessage, models.ChatHistoryCap)
	copy(out, msgs[len(msgs)-models.ChatHistoryCap:])
	return out
}

func FindGeneration(acc *models.Account, id string) (models.GenerationRecord, bool) {
	for _, r := range acc.GenerationHistory {
		if r.ID == id {
			return r, true
		}
	}
	return models.GenerationRecord{}, false
}

func FindGenerationByText(acc *models.Account, text string) (models.GenerationRecord, bool) {
	for _, r := range acc.GenerationHistory {
		if r.Text == text {
			return r, true
		}
	}
	return models.GenerationRecord{}, false
}
