// Package assistant implements the paid chats with the personal assistants
// Mirra and Dary. Every exchange is sent with the assistant's settings and,
// when memory is on, the stored conversation; it is paid for after the reply
// arrives.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BogateyDi/ai-service-frontend/internal/backend"
	"github.com/BogateyDi/ai-service-frontend/internal/history"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
)

var (
	ErrNotOwned     = errors.New("assistant not purchased")
	ErrEmptyMessage = errors.New("message is empty")
)

// UserCodePlaceholder in a reply is replaced with the account's access code.
const UserCodePlaceholder = "{USER_CODE}"

// Accounts is the slice of the account service the assistants use.
type Accounts interface {
	Current(ctx context.Context, device string) (string, *models.Account, error)
	Update(ctx context.Context, code string, fn func(*models.Account) error) (*models.Account, error)
	ChargeWith(ctx context.Context, code string, cost int, reason string, fn func(*models.Account) error) (*models.Account, error)
	RecordGeneration(ctx context.Context, code string, docType models.DocumentType, title, text string) (*models.GenerationRecord, error)
}

// Unlocker recognises the admin phrase.
type Unlocker interface {
	Unlock(phrase string) bool
}

type Service struct {
	accounts  Accounts
	backend   backend.Caller
	unlocker  Unlocker
	publicURL string
	log       *slog.Logger

	now func() time.Time
}

func NewService(accounts Accounts, caller backend.Caller, unlocker Unlocker, publicURL string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		accounts:  accounts,
		backend:   caller,
		unlocker:  unlocker,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
		now:       time.Now,
	}
}

// Message is what the user sends.
type Message struct {
	Text               string `json:"text"`
	SharedGenerationID string `json:"sharedGenerationId,omitempty"`
}

// Exchange is the outcome of one message. When AdminUnlocked is set the
// message was the admin phrase and nothing else happened.
type Exchange struct {
	AdminUnlocked bool                 `json:"admin_unlocked,omitempty"`
	Messages      []models.ChatMessage `json:"messages,omitempty"`
	Cost          int                  `json:"cost,omitempty"`
	Generations   int                  `json:"generations"`
	Persisted     bool                 `json:"persisted"`
}

// Send delivers msg to the assistant and settles the exchange. An account
// below the minimum exchange cost is rejected before the backend is called.
// A backend failure leaves the account untouched. When the balance no longer covers
// the exchange or the history would overflow storage, the reply is dropped
// and nothing is persisted.
func (s *Service) Send(ctx context.Context, device string, asst models.Assistant, msg Message) (*Exchange, error) {
	if !asst.Valid() {
		return nil, fmt.Errorf("unknown assistant %q", asst)
	}
	if asst == models.Mirra && s.unlocker != nil && s.unlocker.Unlock(strings.ToUpper(strings.TrimSpace(msg.Text))) {
		s.log.Info("admin mode unlocked", "device", device)
		return &Exchange{AdminUnlocked: true}, nil
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, ErrEmptyMessage
	}

	code, acc, err := s.accounts.Current(ctx, device)
	if err != nil {
		return nil, err
	}
	if !acc.Owns(asst) {
		return nil, ErrNotOwned
	}
	if err := ledger.RequireBalance(acc, ledger.CostChatMessage); err != nil {
		return nil, err
	}

	settings := acc.Settings(asst)
	req := backend.AssistantMessage{
		ChatContext: backend.ChatContext{
			Assistant: asst,
			History:   []models.ChatMessage{},
			Settings:  settings,
		},
		Message: msg.Text,
	}
	if settings.MemoryEnabled {
		req.ChatContext.History = acc.ChatHistory(asst)
	}
	if msg.SharedGenerationID != "" {
		if rec, ok := history.FindGeneration(acc, msg.SharedGenerationID); ok {
			req.Attachment = &rec
		}
	}

	var reply backend.ChatReply
	if err := s.backend.Call(ctx, backend.OpSendAssistantMessage, req, &reply); err != nil {
		s.log.Warn("assistant call failed", "assistant", asst, "code", code, "error", err)
		return nil, err
	}

	attachLen := 0
	if req.Attachment != nil {
		attachLen = utf8.RuneCountInString(req.Attachment.Text)
	}
	cost := ledger.ChatExchangeCost(utf8.RuneCountInString(msg.Text), utf8.RuneCountInString(reply.Text), attachLen)

	now := s.now().UnixMilli()
	userMsg := models.ChatMessage{Role: models.RoleUser, Text: msg.Text, Timestamp: now, SharedGenerationID: msg.SharedGenerationID}
	modelMsg := models.ChatMessage{
		Role:      models.RoleModel,
		Text:      strings.ReplaceAll(reply.Text, UserCodePlaceholder, code),
		Sources:   reply.Sources,
		Timestamp: now,
	}

	var persisted bool
	updated, err := s.accounts.ChargeWith(ctx, code, cost, "assistant "+string(asst), func(a *models.Account) error {
		persisted = history.AppendChatMessage(a, asst, userMsg)
		history.AppendChatMessage(a, asst, modelMsg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Exchange{
		Messages:    []models.ChatMessage{userMsg, modelMsg},
		Cost:        cost,
		Generations: updated.Generations,
		Persisted:   persisted,
	}, nil
}

// Share hands a finished generation to the assistant. The history record
// with the same text is reused; otherwise a new one is recorded. The
// assistant then receives an opening message pointing at the record.
func (s *Service) Share(ctx context.Context, device string, asst models.Assistant, docType models.DocumentType, text string) (*Exchange, error) {
	if !asst.Valid() {
		return nil, fmt.Errorf("unknown assistant %q", asst)
	}
	code, acc, err := s.accounts.Current(ctx, device)
	if err != nil {
		return nil, err
	}
	if !acc.Owns(asst) {
		return nil, ErrNotOwned
	}
	rec, ok := history.FindGenerationByText(acc, text)
	if !ok {
		title := fmt.Sprintf("%s: %s...", docType, truncate(text, 40))
		created, err := s.accounts.RecordGeneration(ctx, code, docType, title, text)
		if err != nil {
			return nil, err
		}
		rec = *created
	}
	return s.Send(ctx, device, asst, Message{Text: openingMessage(asst), SharedGenerationID: rec.ID})
}

func openingMessage(asst models.Assistant) string {
	if asst == models.Mirra {
		return "Привет, Миррая! Я хочу обсудить этот контент, который я только что сгенерировал(а)."
	}
	return "Проанализируй следующий контент:"
}

// ReferralLink posts the referral rules and the user's link into Mirra's
// chat. It is stored only when Mirra's memory is on.
func (s *Service) ReferralLink(ctx context.Context, device string) (*Exchange, error) {
	code, _, err := s.accounts.Current(ctx, device)
	if err != nil {
		return nil, err
	}
	msg := models.ChatMessage{
		Role:      models.RoleModel,
		Text:      referralText(s.publicURL, code),
		Timestamp: s.now().UnixMilli(),
	}
	var persisted bool
	updated, err := s.accounts.Update(ctx, code, func(a *models.Account) error {
		persisted = history.AppendChatMessage(a, models.Mirra, msg)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ledger.ErrStorageLimitExceeded) {
			return nil, err
		}
		s.log.Warn("referral message not stored", "code", code, "error", err)
		return &Exchange{Messages: []models.ChatMessage{msg}}, nil
	}
	return &Exchange{
		Messages:    []models.ChatMessage{msg},
		Generations: updated.Generations,
		Persisted:   persisted,
	}, nil
}

func referralText(publicURL, code string) string {
	return "Конечно! ✨ Вот твоя персональная реферальная ссылка и правила нашей партнерской программы:\n\n" +
		"**1. Постоянная связь:** Когда твой друг регистрируется по твоей ссылке, он **навсегда** привязывается к твоему аккаунту.\n" +
		"**2. Бонусы за все покупки:** Ты будешь получать бонус в размере **100%** от **каждой** покупки твоего друга в генерациях!\n" +
		"   • Друг покупает Ассистента: ты получаешь **250** генераций.\n" +
		"   • Друг покупает пакет \"Стартовый\": ты получаешь **10** генераций.\n" +
		"   • Друг покупает пакет \"Продвинутый\": ты получаешь **200** генераций.\n" +
		"   • Друг покупает пакет \"Эксперт\": ты получаешь **1000** генераций.\n\n" +
		"Делись этой ссылкой и получайте бонусы вместе!\n\n" +
		publicURL + "?ref=" + code
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
