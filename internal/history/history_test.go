package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

func TestRecordGeneration_CapAndOrder(t *testing.T) {
	acc := models.NewAccount(0)
	now := time.Unix(1700000000, 0)
	for i := 0; i < 45; i++ {
		rec := NewRecord(models.DocEssay, fmt.Sprintf("t%d", i), "body", now)
		RecordGeneration(acc, rec)
		require.LessOrEqual(t, len(acc.GenerationHistory), models.GenerationHistoryCap)
		assert.Equal(t, rec.ID, acc.GenerationHistory[0].ID, "newest record first")
	}
	assert.Len(t, acc.GenerationHistory, models.GenerationHistoryCap)
	assert.Equal(t, "t44", acc.GenerationHistory[0].Title)
	assert.Equal(t, "t25", acc.GenerationHistory[models.GenerationHistoryCap-1].Title)
}

func TestNewRecord_UniqueIDs(t *testing.T) {
	a := NewRecord(models.DocEssay, "t", "x", time.Now())
	b := NewRecord(models.DocEssay, "t", "x", time.Now())
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotZero(t, a.Timestamp)
}

func TestAppendChatMessage_CapDropsOldest(t *testing.T) {
	acc := models.NewAccount(0)
	for i := 0; i < 80; i++ {
		ok := AppendChatMessage(acc, models.Dary, models.ChatMessage{Role: models.RoleUser, Text: fmt.Sprintf("m%d", i)})
		require.True(t, ok)
		require.LessOrEqual(t, len(acc.DaryChatHistory), models.ChatHistoryCap)
	}
	assert.Equal(t, "m30", acc.DaryChatHistory[0].Text)
	assert.Equal(t, "m79", acc.DaryChatHistory[models.ChatHistoryCap-1].Text)
	assert.Empty(t, acc.MirraChatHistory, "other assistant untouched")
}

func TestAppendChatMessage_MemoryDisabled(t *testing.T) {
	acc := models.NewAccount(0)
	acc.MirraSettings.MemoryEnabled = false

	ok := AppendChatMessage(acc, models.Mirra, models.ChatMessage{Role: models.RoleUser, Text: "hi"})
	assert.False(t, ok)
	assert.Empty(t, acc.MirraChatHistory)
}

func TestFindGeneration(t *testing.T) {
	acc := models.NewAccount(0)
	rec := NewRecord(models.DocEssay, "t", "same text", time.Now())
	RecordGeneration(acc, rec)

	got, ok := FindGeneration(acc, rec.ID)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	got, ok = FindGenerationByText(acc, "same text")
	require.True(t, ok)
	assert.Equal(t, rec.ID, got.ID)

	_, ok = FindGeneration(acc, "nope")
	assert.False(t, ok)
}
