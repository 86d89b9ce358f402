package store

import (
	"encoding/json"
	"fmt"

	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

// Persisted account layouts, oldest first:
//
//	v0  a bare number holding the generation balance
//	v1  an object with any subset of fields; favorites may be bare strings
//	v2  every field present and well-typed, histories validated and capped
//
// Each upgrade takes the generic JSON value of one layout and returns the
// next. Values already in a newer layout pass through unchanged, so the whole
// chain runs on every load.
type upgrade func(v any) (any, error)

var upgradeChain = []upgrade{
	upgradeV0ToV1,
	upgradeV1ToV2,
}

// migrateAccount runs the upgrade chain and decodes the v2 result.
func migrateAccount(raw json.RawMessage) (*models.Account, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	for i, step := range upgradeChain {
		next, err := step(v)
		if err != nil {
			return nil, fmt.Errorf("upgrade step %d: %w", i, err)
		}
		v = next
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var acc models.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, fmt.Errorf("decode v2 account: %w", err)
	}
	return &acc, nil
}

func upgradeV0ToV1(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return map[string]any{"generations": t}, nil
	case map[string]any:
		return t, nil
	default:
		return nil, fmt.Errorf("unexpected account value of type %T", v)
	}
}

func upgradeV1ToV2(v any) (any, error) {
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("v1 account is %T, want object", v)
	}
	out := map[string]any{
		"generations":       nonNegative(doc["generations"]),
		"generationHistory": cleanGenerationHistory(doc["generationHistory"]),
		"favoriteServices":  cleanFavorites(doc["favoriteServices"]),
		"maxStorageSize":    storageLimit(doc["maxStorageSize"]),
		"hasMirra":          doc["hasMirra"] == true,
		"mirraChatHistory":  cleanChatHistory(doc["mirraChatHistory"]),
		"mirraSettings":     cleanSettings(doc["mirraSettings"]),
		"hasDary":           doc["hasDary"] == true,
		"daryChatHistory":   cleanChatHistory(doc["daryChatHistory"]),
		"darySettings":      cleanSettings(doc["darySettings"]),
	}
	if ref, ok := doc["referrerCode"].(string); ok && ref != "" {
		out["referrerCode"] = ref
	}
	return out, nil
}

func nonNegative(v any) int64 {
	n, ok := v.(float64)
	if !ok || n < 0 {
		return 0
	}
	return int64(n)
}

func storageLimit(v any) int64 {
	n, ok := v.(float64)
	if !ok || n <= 0 {
		return models.DefaultMaxStorageSize
	}
	return int64(n)
}

func cleanSettings(v any) map[string]any {
	def := models.DefaultAssistantSettings()
	out := map[string]any{
		"internetEnabled": def.InternetEnabled,
		"memoryEnabled":   def.MemoryEnabled,
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return out
	}
	if b, ok := doc["internetEnabled"].(bool); ok {
		out["internetEnabled"] = b
	}
	if b, ok := doc["memoryEnabled"].(bool); ok {
		out["memoryEnabled"] = b
	}
	return out
}

// cleanChatHistory drops malformed messages and keeps the newest entries.
func cleanChatHistory(v any) []any {
	items, _ := v.([]any)
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		text, ok := m["text"].(string)
		if !ok || (role != models.RoleUser && role != models.RoleModel) {
			continue
		}
		msg := map[string]any{"role": role, "text": text}
		if sources := cleanSources(m["sources"]); len(sources) > 0 {
			msg["sources"] = sources
		}
		if ts, ok := m["timestamp"].(float64); ok {
			msg["timestamp"] = int64(ts)
		}
		if id, ok := m["sharedGenerationId"].(string); ok && id != "" {
			msg["sharedGenerationId"] = id
		}
		out = append(out, msg)
	}
	if len(out) > models.ChatHistoryCap {
		out = out[len(out)-models.ChatHistoryCap:]
	}
	return out
}

func cleanSources(v any) []any {
	items, _ := v.([]any)
	var out []any
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uri, okURI := m["uri"].(string)
		title, okTitle := m["title"].(string)
		if okURI && okTitle {
			out = append(out, map[string]any{"uri": uri, "title": title})
		}
	}
	return out
}

// cleanGenerationHistory drops malformed records and keeps the newest entries,
// which come first.
func cleanGenerationHistory(v any) []any {
	items, _ := v.([]any)
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, ok1 := m["id"].(string)
		title, ok2 := m["title"].(string)
		docType, ok3 := m["docType"].(string)
		text, ok4 := m["text"].(string)
		ts, ok5 := m["timestamp"].(float64)
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		out = append(out, map[string]any{
			"id": id, "title": title, "docType": docType, "text": text, "timestamp": int64(ts),
		})
		if len(out) == models.GenerationHistoryCap {
			break
		}
	}
	return out
}

// cleanFavorites upgrades bare doc-type strings to objects, then drops
// duplicates and anything past the cap.
func cleanFavorites(v any) []any {
	items, _ := v.([]any)
	out := make([]any, 0, models.FavoritesCap)
	seen := make([]models.FavoriteService, 0, models.FavoritesCap)
	for _, item := range items {
		var fav models.FavoriteService
		switch t := item.(type) {
		case string:
			fav.DocType = models.DocumentType(t)
		case map[string]any:
			dt, ok := t["docType"].(string)
			if !ok {
				continue
			}
			fav.DocType = models.DocumentType(dt)
			if age, ok := t["age"].(float64); ok {
				a := int(age)
				fav.Age = &a
			}
		default:
			continue
		}
		if fav.DocType == "" || containsFavorite(seen, fav) {
			continue
		}
		seen = append(seen, fav)
		entry := map[string]any{"docType": string(fav.DocType)}
		if fav.Age != nil {
			entry["age"] = *fav.Age
		}
		out = append(out, entry)
		if len(out) == models.FavoritesCap {
			break
		}
	}
	return out
}

func containsFavorite(list []models.FavoriteService, f models.FavoriteService) bool {
	for _, x := range list {
		if x.Equal(f) {
			return true
		}
	}
	return false
}
