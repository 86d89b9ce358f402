package models

import "encoding/json"

// Account limits.
const (
	DefaultMaxStorageSize = 1024 * 1024
	GenerationHistoryCap  = 20
	ChatHistoryCap        = 50
	FavoritesCap          = 2
	AccessCodeLength      = 10
)

type AssistantSettings struct {
	InternetEnabled bool `json:"internetEnabled"`
	MemoryEnabled   bool `json:"memoryEnabled"`
}

func DefaultAssistantSettings() AssistantSettings {
	return AssistantSettings{InternetEnabled: true, MemoryEnabled: true}
}

// Account is keyed by its access code in the account map. Field names follow
// the persisted layout, so changing a json tag is a storage format change.
type Account struct {
	Generations       int                `json:"generations"`
	ReferrerCode      string             `json:"referrerCode,omitempty"`
	GenerationHistory []GenerationRecord `json:"generationHistory"`
	FavoriteServices  []FavoriteService  `json:"favoriteServices"`
	MaxStorageSize    int                `json:"maxStorageSize"`

	HasMirra         bool              `json:"hasMirra"`
	MirraChatHistory []ChatMessage     `json:"mirraChatHistory"`
	MirraSettings    AssistantSettings `json:"mirraSettings"`

	HasDary         bool              `json:"hasDary"`
	DaryChatHistory []ChatMessage     `json:"daryChatHistory"`
	DarySettings    AssistantSettings `json:"darySettings"`
}

// NewAccount returns an account with every collection initialized and
// default assistant settings.
func NewAccount(generations int) *Account {
	return &Account{
		Generations:       generations,
		GenerationHistory: []GenerationRecord{},
		FavoriteServices:  []FavoriteService{},
		MaxStorageSize:    DefaultMaxStorageSize,
		MirraChatHistory:  []ChatMessage{},
		MirraSettings:     DefaultAssistantSettings(),
		DaryChatHistory:   []ChatMessage{},
		DarySettings:      DefaultAssistantSettings(),
	}
}

// Clone returns a deep copy. Mutations always run on a clone so a rejected
// mutation never leaks into the stored account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	cp.GenerationHistory = append([]GenerationRecord{}, a.GenerationHistory...)
	cp.FavoriteServices = make([]FavoriteService, len(a.FavoriteServices))
	for i, f := range a.FavoriteServices {
		cp.FavoriteServices[i] = f.clone()
	}
	cp.MirraChatHistory = cloneMessages(a.MirraChatHistory)
	cp.DaryChatHistory = cloneMessages(a.DaryChatHistory)
	return &cp
}

// SerializedSize is the byte size of the account as it is persisted.
func (a *Account) SerializedSize() int {
	data, err := json.Marshal(a)
	if err != nil {
		return 0
	}
	return len(data)
}

func (a *Account) Owns(asst Assistant) bool {
	switch asst {
	case Mirra:
		return a.HasMirra
	case Dary:
		return a.HasDary
	}
	return false
}

func (a *Account) SetOwned(asst Assistant, owned bool) {
	switch asst {
	case Mirra:
		a.HasMirra = owned
	case Dary:
		a.HasDary = owned
	}
}

func (a *Account) Settings(asst Assistant) AssistantSettings {
	if asst == Dary {
		return a.DarySettings
	}
	return a.MirraSettings
}

func (a *Account) SetSettings(asst Assistant, s AssistantSettings) {
	if asst == Dary {
		a.DarySettings = s
		return
	}
	a.MirraSettings = s
}

func (a *Account) ChatHistory(asst Assistant) []ChatMessage {
	if asst == Dary {
		return a.DaryChatHistory
	}
	return a.MirraChatHistory
}

func (a *Account) SetChatHistory(asst Assistant, msgs []ChatMessage) {
	if asst == Dary {
		a.DaryChatHistory = msgs
		return
	}
	a.MirraChatHistory = msgs
}

func cloneMessages(in []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(in))
	for i, m := range in {
		out[i] = m
		if m.Sources != nil {
			out[i].Sources = append([]WebSource{}, m.Sources...)
		}
	}
	return out
}
