package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
)

func TestThesisCost(t *testing.T) {
	sections := []backend.ThesisSection{
		{ID: "1", ContentType: backend.ThesisGenerate, PagesToGenerate: 3},
		{ID: "2", ContentType: backend.ThesisText, PagesToGenerate: 9},
		{ID: "3", ContentType: backend.ThesisGenerate, PagesToGenerate: 2},
		{ID: "4", ContentType: backend.ThesisSkip, PagesToGenerate: 5},
	}
	if got := ThesisCost(sections); got != 5 {
		t.Fatalf("cost = %d, want 5", got)
	}
}

func TestAssembleThesis(t *testing.T) {
	sections := []backend.ThesisSection{
		{ID: "intro", Title: "Введение", ContentType: backend.ThesisGenerate, PagesToGenerate: 1},
		{ID: "lit", Title: "Обзор", ContentType: backend.ThesisText, Content: "мой текст"},
		{ID: "skip", Title: "Пропуск", ContentType: backend.ThesisSkip},
		{ID: "data", Title: "Данные", ContentType: backend.ThesisFile, FileName: "data.xlsx"},
		{ID: "empty", Title: "Без файла", ContentType: backend.ThesisFile},
	}
	generated := []backend.ThesisSectionText{{ID: "intro", Text: "сгенерировано"}}

	got := assembleThesis("Сети", sections, generated)
	want := "# Дипломная работа\n## Тема: Сети\n\n" +
		"\n\n### Введение\n\nсгенерировано" +
		"\n\n### Обзор\n\nмой текст" +
		"\n\n### Данные\n\n[Содержимое файла data.xlsx будет вставлено здесь]" +
		"\n\n### Без файла\n\n"
	assert.Equal(t, want, got)
}

func TestThesis_RejectsNothingToDo(t *testing.T) {
	env, _, be := newTestEnv(0)
	set := NewSet()
	ctx := context.Background()

	_, err := set.Start(ctx, env, call(""), Thesis, "")
	require.NoError(t, err, "the thesis has no entry minimum")

	body := `{"topic":"Сети","sections":[{"id":"a","title":"A","contentType":"skip"},{"id":"b","title":"B","contentType":"generate","pagesToGenerate":0}]}`
	_, err = set.Act(ctx, env, call(body), Thesis, ActionSubmit)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, be.ops())
}

func TestThesis_OwnContentIsFree(t *testing.T) {
	env, acc, be := newTestEnv(0)
	set := NewSet()
	ctx := context.Background()

	_, err := set.Start(ctx, env, call(""), Thesis, "")
	require.NoError(t, err)
	body := `{"topic":"Сети","sections":[{"id":"a","title":"A","contentType":"text","content":"готово"}]}`
	view, err := set.Act(ctx, env, call(body), Thesis, ActionSubmit)
	require.NoError(t, err)

	assert.Equal(t, StepCompleted, view.Step)
	assert.Empty(t, be.ops(), "nothing to generate")
	assert.Equal(t, "Диплом: Сети", acc.recorded()[0].Title)
	assert.Equal(t, 0, acc.bal(testCode))
}

func TestThesis_ChargesPagesAndGenerates(t *testing.T) {
	env, acc, be := newTestEnv(10)
	be.reply(backend.OpThesisSections, `[{"id":"a","text":"раздел"}]`)
	set := NewSet()
	ctx := context.Background()

	_, err := set.Start(ctx, env, call(""), Thesis, "")
	require.NoError(t, err)
	body := `{"topic":"Сети","field":"ИТ","sections":[{"id":"a","title":"A","contentType":"generate","pagesToGenerate":4},{"id":"b","title":"B","contentType":"skip"}]}`
	view, err := set.Act(ctx, env, call(body), Thesis, ActionSubmit)
	require.NoError(t, err)

	assert.Equal(t, 6, acc.bal(testCode))
	assert.Contains(t, view.Result.Text, "### A\n\nраздел")
	assert.NotContains(t, view.Result.Text, "### B")

	sent := be.last().payload.(map[string]any)["sections"].([]backend.ThesisSection)
	require.Len(t, sent, 1)
	assert.Equal(t, "a", sent[0].ID)
}

func TestThesis_InsufficientBalanceReturnsToForm(t *testing.T) {
	env, acc, be := newTestEnv(2)
	set := NewSet()
	ctx := context.Background()

	_, err := set.Start(ctx, env, call(""), Thesis, "")
	require.NoError(t, err)
	body := `{"topic":"Сети","sections":[{"id":"a","title":"A","contentType":"generate","pagesToGenerate":3}]}`
	view, err := set.Act(ctx, env, call(body), Thesis, ActionSubmit)
	require.Error(t, err)

	assert.Equal(t, stepForm, view.Step)
	assert.Equal(t, PhaseError, view.Phase)
	assert.Empty(t, be.ops())
	assert.Equal(t, 2, acc.bal(testCode))
}
