package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// ---------------------------------------------------------------------------
// failingKV rejects every write, like a browser store that hit its quota.
// ---------------------------------------------------------------------------

type failingKV struct {
	mu     sync.Mutex
	inner  *MemoryKV
	writes int
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	return f.inner.Get(ctx, key)
}

func (f *failingKV) Set(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return errors.New("quota exceeded")
}

func (f *failingKV) Delete(_ context.Context, _ string) error {
	return errors.New("quota exceeded")
}

func seed(t *testing.T, raw string) *MemoryKV {
	t.Helper()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), KeyAccounts, raw))
	return kv
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_MissingKey(t *testing.T) {
	accounts := Load(context.Background(), NewMemoryKV(), nil)
	assert.Empty(t, accounts)
}

func TestLoad_GarbageNeverFails(t *testing.T) {
	cases := []string{
		"not json",
		"{",
		"42",
		`"string"`,
		`[1,2,3]`,
		`[["ONLY_CODE"]]`,
		`[[null, {"generations": 3}]]`,
		`[["A", "not an account"]]`,
		`null`,
	}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			accounts := Load(context.Background(), seed(t, raw), nil)
			assert.Empty(t, accounts)
		})
	}
}

func TestLoad_UpgradesBareNumberAccount(t *testing.T) {
	accounts := Load(context.Background(), seed(t, `[["ABCDE12345", 37]]`), nil)

	acc, ok := accounts["ABCDE12345"]
	require.True(t, ok)
	assert.Equal(t, 37, acc.Generations)
	assert.Equal(t, models.DefaultMaxStorageSize, acc.MaxStorageSize)
	assert.Equal(t, models.DefaultAssistantSettings(), acc.MirraSettings)
	assert.Equal(t, models.DefaultAssistantSettings(), acc.DarySettings)
	assert.NotNil(t, acc.GenerationHistory)
	assert.NotNil(t, acc.FavoriteServices)
	assert.NotNil(t, acc.MirraChatHistory)
}

func TestLoad_AcceptsPlainObjectLayout(t *testing.T) {
	accounts := Load(context.Background(), seed(t, `{"ABCDE12345": {"generations": 4}}`), nil)
	require.Contains(t, accounts, "ABCDE12345")
	assert.Equal(t, 4, accounts["ABCDE12345"].Generations)
}

func TestLoad_RepairsMalformedFields(t *testing.T) {
	raw := `[["ABCDE12345", {
		"generations": -5,
		"favoriteServices": ["Эссе", {"docType": "Реферат", "age": 12}, "Эссе", {"age": 3}, {"docType": "Доклад"}],
		"mirraChatHistory": [
			{"role": "user", "text": "hi", "timestamp": 1700000000000},
			{"role": "system", "text": "dropped"},
			{"role": "model"},
			{"role": "model", "text": "ok", "sources": [{"uri": "u", "title": "t"}, {"uri": 5}], "sharedGenerationId": "g1"}
		],
		"generationHistory": [
			{"id": "1", "title": "a", "docType": "Эссе", "text": "x", "timestamp": 1},
			{"id": "2", "title": "b"}
		],
		"mirraSettings": {"memoryEnabled": false},
		"maxStorageSize": "huge"
	}]]`
	accounts := Load(context.Background(), seed(t, raw), nil)
	acc := accounts["ABCDE12345"]
	require.NotNil(t, acc)

	assert.Equal(t, 0, acc.Generations)
	require.Len(t, acc.FavoriteServices, 2)
	assert.Equal(t, models.DocEssay, acc.FavoriteServices[0].DocType)
	assert.Nil(t, acc.FavoriteServices[0].Age)
	require.NotNil(t, acc.FavoriteServices[1].Age)
	assert.Equal(t, 12, *acc.FavoriteServices[1].Age)

	require.Len(t, acc.MirraChatHistory, 2)
	assert.Equal(t, "hi", acc.MirraChatHistory[0].Text)
	assert.Equal(t, int64(1700000000000), acc.MirraChatHistory[0].Timestamp)
	assert.Equal(t, []models.WebSource{{URI: "u", Title: "t"}}, acc.MirraChatHistory[1].Sources)
	assert.Equal(t, "g1", acc.MirraChatHistory[1].SharedGenerationID)

	require.Len(t, acc.GenerationHistory, 1)
	assert.Equal(t, "1", acc.GenerationHistory[0].ID)

	assert.True(t, acc.MirraSettings.InternetEnabled)
	assert.False(t, acc.MirraSettings.MemoryEnabled)
	assert.Equal(t, models.DefaultMaxStorageSize, acc.MaxStorageSize)
}

func TestLoad_TruncatesHistoriesToCaps(t *testing.T) {
	var msgs, recs []string
	for i := 0; i < 70; i++ {
		msgs = append(msgs, fmt.Sprintf(`{"role":"user","text":"m%d"}`, i))
		recs = append(recs, fmt.Sprintf(`{"id":"r%d","title":"t","docType":"Эссе","text":"x","timestamp":%d}`, i, i))
	}
	raw := fmt.Sprintf(`[["ABCDE12345", {"generations": 1, "daryChatHistory": [%s], "generationHistory": [%s]}]]`,
		strings.Join(msgs, ","), strings.Join(recs, ","))

	acc := Load(context.Background(), seed(t, raw), nil)["ABCDE12345"]
	require.NotNil(t, acc)

	require.Len(t, acc.DaryChatHistory, models.ChatHistoryCap)
	assert.Equal(t, "m20", acc.DaryChatHistory[0].Text, "oldest messages are dropped")
	assert.Equal(t, "m69", acc.DaryChatHistory[models.ChatHistoryCap-1].Text)

	require.Len(t, acc.GenerationHistory, models.GenerationHistoryCap)
	assert.Equal(t, "r0", acc.GenerationHistory[0].ID, "newest records come first and are kept")
}

func TestSaveLoad_RoundTripIsStable(t *testing.T) {
	ctx := context.Background()
	age := 9
	a := models.NewAccount(12)
	a.ReferrerCode = "REFERRER01"
	a.HasDary = true
	a.FavoriteServices = []models.FavoriteService{{DocType: models.DocEssay, Age: &age}}
	a.GenerationHistory = []models.GenerationRecord{{ID: "x", Timestamp: 5, DocType: models.DocEssay, Title: "t", Text: "body"}}
	a.DaryChatHistory = []models.ChatMessage{{Role: models.RoleModel, Text: "hello", Sources: []models.WebSource{{URI: "u", Title: "t"}}}}
	original := map[string]*models.Account{
		"ZZZZZZZZZ1": models.NewAccount(0),
		"AAAAAAAAA1": a,
	}

	kv := NewMemoryKV()
	Save(ctx, kv, nil, original)
	first, _, _ := kv.Get(ctx, KeyAccounts)

	Save(ctx, kv, nil, Load(ctx, kv, nil))
	second, _, _ := kv.Get(ctx, KeyAccounts)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, `[["AAAAAAAAA1",`), "pairs are ordered by code")
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

func TestStore_UpdateFailureLeavesMapUntouched(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := New(ctx, kv, nil)
	require.NoError(t, s.Create(ctx, "CODE000001", models.NewAccount(3)))
	before, _, _ := kv.Get(ctx, KeyAccounts)

	_, err := s.Update(ctx, "CODE000001", func(a *models.Account) (*models.Account, error) {
		a.Generations = 100
		a.HasMirra = true
		return nil, errors.New("rejected")
	})
	require.Error(t, err)

	after, _, _ := kv.Get(ctx, KeyAccounts)
	assert.Equal(t, before, after)
	acc, _ := s.Get("CODE000001")
	assert.Equal(t, 3, acc.Generations)
	assert.False(t, acc.HasMirra)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, NewMemoryKV(), nil)
	require.NoError(t, s.Create(ctx, "CODE000001", models.NewAccount(3)))

	acc, _ := s.Get("CODE000001")
	acc.Generations = 999

	again, _ := s.Get("CODE000001")
	assert.Equal(t, 3, again.Generations)
}

func TestStore_WriteFailureKeepsMemoryAuthoritative(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{inner: NewMemoryKV()}
	s := New(ctx, kv, nil)

	require.NoError(t, s.Create(ctx, "CODE000001", models.NewAccount(3)))
	_, err := s.Update(ctx, "CODE000001", func(a *models.Account) (*models.Account, error) {
		a.Generations++
		return a, nil
	})
	require.NoError(t, err)

	acc, ok := s.Get("CODE000001")
	require.True(t, ok)
	assert.Equal(t, 4, acc.Generations)
	assert.Equal(t, 2, kv.writes)

	s.SaveActiveCode(ctx, "device-1", "CODE000001")
	assert.Equal(t, "", s.LoadActiveCode(ctx, "device-1"))
}

func TestStore_UpdateManyCreatesAndCredits(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, NewMemoryKV(), nil)
	require.NoError(t, s.Create(ctx, "REFERRER01", models.NewAccount(100)))

	err := s.UpdateMany(ctx, []string{"NEWCODE001", "REFERRER01"}, func(m map[string]*models.Account) error {
		if _, exists := m["NEWCODE001"]; exists {
			return ErrAccountExists
		}
		m["NEWCODE001"] = models.NewAccount(50)
		m["REFERRER01"].Generations += 50
		return nil
	})
	require.NoError(t, err)

	created, ok := s.Get("NEWCODE001")
	require.True(t, ok)
	assert.Equal(t, 50, created.Generations)
	ref, _ := s.Get("REFERRER01")
	assert.Equal(t, 150, ref.Generations)
}

func TestStore_CreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, NewMemoryKV(), nil)
	require.NoError(t, s.Create(ctx, "CODE000001", models.NewAccount(1)))
	err := s.Create(ctx, "CODE000001", models.NewAccount(2))
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestStore_ActiveCodeAndPendingReferral(t *testing.T) {
	ctx := context.Background()
	s := New(ctx, NewMemoryKV(), nil)

	assert.Equal(t, "", s.LoadActiveCode(ctx, "d1"))
	s.SaveActiveCode(ctx, "d1", "CODE000001")
	assert.Equal(t, "CODE000001", s.LoadActiveCode(ctx, "d1"))
	assert.Equal(t, "", s.LoadActiveCode(ctx, "d2"))
	s.SaveActiveCode(ctx, "d1", "")
	assert.Equal(t, "", s.LoadActiveCode(ctx, "d1"))

	s.SavePendingReferral(ctx, "d1", "REFERRER01")
	assert.Equal(t, "REFERRER01", s.PendingReferral(ctx, "d1"))
	s.SavePendingReferral(ctx, "d1", "")
	assert.Equal(t, "", s.PendingReferral(ctx, "d1"))
}

func TestStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := New(ctx, kv, nil)
	require.NoError(t, s.Create(ctx, "CODE000001", models.NewAccount(7)))

	reopened := New(ctx, kv, nil)
	acc, ok := reopened.Get("CODE000001")
	require.True(t, ok)
	assert.Equal(t, 7, acc.Generations)
}
