package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BogateyDi/ai-service-frontend/internal/history"
	"github.com/BogateyDi/ai-service-frontend/internal/ledger"
	"github.com/BogateyDi/ai-service-frontend/internal/models"
	"github.com/BogateyDi/ai-service-frontend/internal/referral"
	"github.com/BogateyDi/ai-service-frontend/internal/store"
)

var (
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrUnknownCode       = errors.New("unknown access code")
	ErrUnknownPackage    = errors.New("unknown package")
	ErrUnknownAssistant  = errors.New("unknown assistant")
	ErrAssistantOwned    = errors.New("assistant already purchased")
	ErrDuplicateFavorite = errors.New("service is already in favorites")
	ErrFavoritesFull     = errors.New("favorites limit reached")
	ErrFavoriteNotFound  = errors.New("favorite not found")
	ErrUnknownSetting    = errors.New("unknown assistant setting")
	ErrUnknownHistory    = errors.New("unknown history")
)

const codeAttempts = 16

// Service owns account lifecycle: purchases, login state, favorites, settings
// and history writes. Balance changes go through the ledger.
type Service struct {
	store    *store.Store
	ledger   *ledger.Service
	referral *referral.Engine
	log      *slog.Logger

	now     func() time.Time
	newCode func() string
}

func NewService(st *store.Store, l *ledger.Service, r *referral.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    st,
		ledger:   l,
		referral: r,
		log:      log,
		now:      time.Now,
		newCode:  newAccessCode,
	}
}

// newAccessCode is the first ten characters of an upper-cased, dashless UUID.
func newAccessCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:models.AccessCodeLength]
}

func (s *Service) uniqueCode() (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := s.newCode()
		if !s.store.Exists(code) {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique access code")
}

// PurchaseResult describes a completed (simulated) purchase.
type PurchaseResult struct {
	Code         string          `json:"code"`
	Created      bool            `json:"created"`
	Granted      int             `json:"granted"`
	Generations  int             `json:"generations"`
	ReferrerPaid bool            `json:"referrer_paid"`
	Account      *models.Account `json:"-"`
}

// PurchasePackage tops up the device's account, or creates one and logs the
// device in when there is none.
func (s *Service) PurchasePackage(ctx context.Context, device, packageID string) (*PurchaseResult, error) {
	pkg, ok := models.FindPackage(packageID)
	if !ok {
		return nil, ErrUnknownPackage
	}
	reason := "package " + pkg.ID
	if code := s.ActiveCode(ctx, device); code != "" {
		return s.topUp(ctx, code, pkg.Generations, models.EntryPurchase, referral.PackagePurchase, reason, nil)
	}
	return s.register(ctx, device, pkg.Generations, models.EntryPurchase, referral.PackagePurchase, reason, nil)
}

// PurchaseAssistant grants the assistant and its bonus generations. An
// account that already owns it is rejected.
func (s *Service) PurchaseAssistant(ctx context.Context, device string, asst models.Assistant) (*PurchaseResult, error) {
	if !asst.Valid() {
		return nil, ErrUnknownAssistant
	}
	grant := func(a *models.Account) error {
		if a.Owns(asst) {
			return ErrAssistantOwned
		}
		a.SetOwned(asst, true)
		return nil
	}
	reason := "assistant " + string(asst)
	if code := s.ActiveCode(ctx, device); code != "" {
		return s.topUp(ctx, code, models.AssistantPurchaseGenerations, models.EntryAssistantPurchase, referral.AssistantPurchase, reason, grant)
	}
	return s.register(ctx, device, models.AssistantPurchaseGenerations, models.EntryAssistantPurchase, referral.AssistantPurchase, reason, grant)
}

func (s *Service) register(ctx context.Context, device string, amount int, entryType string, kind referral.PurchaseKind, reason string, setup func(*models.Account) error) (*PurchaseResult, error) {
	ref := s.referral.Pending(ctx, device)
	code, err := s.uniqueCode()
	if err != nil {
		return nil, err
	}
	acc := models.NewAccount(amount)
	acc.ReferrerCode = ref
	if setup != nil {
		if err := setup(acc); err != nil {
			return nil, err
		}
	}

	codes := []string{code}
	if ref != "" {
		codes = append(codes, ref)
	}
	var paid string
	var referrerBalance int
	err = s.store.UpdateMany(ctx, codes, func(m map[string]*models.Account) error {
		if _, exists := m[code]; exists {
			return fmt.Errorf("%w: %s", store.ErrAccountExists, code)
		}
		m[code] = acc
		paid = referral.PayReferrer(m, code, referral.Bonus(kind, amount))
		if paid != "" {
			referrerBalance = m[paid].Generations
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ref != "" {
		s.referral.Consume(ctx, device)
	}
	s.store.SaveActiveCode(ctx, device, code)
	s.ledger.Record(ctx, code, entryType, amount, acc.Generations, reason)
	if paid != "" {
		s.ledger.Record(ctx, paid, models.EntryReferralBonus, referral.Bonus(kind, amount), referrerBalance, "referral from "+code)
	}
	s.log.Info("account created", "code", code, "referred", ref != "")
	return &PurchaseResult{
		Code: code, Created: true, Granted: amount, Generations: acc.Generations,
		ReferrerPaid: paid != "", Account: acc.Clone(),
	}, nil
}

func (s *Service) topUp(ctx context.Context, code string, amount int, entryType string, kind referral.PurchaseKind, reason string, setup func(*models.Account) error) (*PurchaseResult, error) {
	cur, ok := s.store.Get(code)
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	codes := []string{code}
	if cur.ReferrerCode != "" && cur.ReferrerCode != code {
		codes = append(codes, cur.ReferrerCode)
	}
	var buyer *models.Account
	var paid string
	var referrerBalance int
	err := s.store.UpdateMany(ctx, codes, func(m map[string]*models.Account) error {
		buyer = m[code]
		if buyer == nil {
			return store.ErrAccountNotFound
		}
		if setup != nil {
			if err := setup(buyer); err != nil {
				return err
			}
		}
		buyer.Generations += amount
		paid = referral.PayReferrer(m, code, referral.Bonus(kind, amount))
		if paid != "" {
			referrerBalance = m[paid].Generations
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.ledger.Record(ctx, code, entryType, amount, buyer.Generations, reason)
	if paid != "" {
		s.ledger.Record(ctx, paid, models.EntryReferralBonus, referral.Bonus(kind, amount), referrerBalance, "referral from "+code)
	}
	return &PurchaseResult{
		Code: code, Granted: amount, Generations: buyer.Generations,
		ReferrerPaid: paid != "", Account: buyer.Clone(),
	}, nil
}

// ActiveCode returns the device's logged-in code. A code whose account was
// deleted is cleared here, which is how deletion logs other devices out.
func (s *Service) ActiveCode(ctx context.Context, device string) string {
	code := s.store.LoadActiveCode(ctx, device)
	if code == "" {
		return ""
	}
	if !s.store.Exists(code) {
		s.store.SaveActiveCode(ctx, device, "")
		return ""
	}
	return code
}

// Current returns the logged-in account of the device.
func (s *Service) Current(ctx context.Context, device string) (string, *models.Account, error) {
	code := s.ActiveCode(ctx, device)
	if code == "" {
		return "", nil, ErrNotLoggedIn
	}
	acc, ok := s.store.Get(code)
	if !ok {
		return "", nil, ErrNotLoggedIn
	}
	return code, acc, nil
}

func (s *Service) Login(ctx context.Context, device, code string) (string, *models.Account, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	acc, ok := s.store.Get(code)
	if !ok {
		return "", nil, ErrUnknownCode
	}
	s.store.SaveActiveCode(ctx, device, code)
	return code, acc, nil
}

func (s *Service) Logout(ctx context.Context, device string) {
	s.store.SaveActiveCode(ctx, device, "")
}

func (s *Service) Get(code string) (*models.Account, bool) {
	return s.store.Get(code)
}

// CaptureReferral stores an inbound referral code for the device.
func (s *Service) CaptureReferral(ctx context.Context, device, ref string) bool {
	return s.referral.Capture(ctx, device, ref)
}

func (s *Service) Balance(code string) (int, error) {
	return s.ledger.Balance(code)
}

func (s *Service) Charge(ctx context.Context, code string, cost int, reason string) error {
	_, err := s.ledger.Charge(ctx, code, cost, reason)
	return err
}

// Update applies fn to the account under the storage cap.
func (s *Service) Update(ctx context.Context, code string, fn func(*models.Account) error) (*models.Account, error) {
	return s.store.Update(ctx, code, func(a *models.Account) (*models.Account, error) {
		return ledger.ApplyIfWithinStorageLimit(a, fn)
	})
}

// ChargeWith debits cost and applies fn in one update under the storage cap.
// Either both land or neither does.
func (s *Service) ChargeWith(ctx context.Context, code string, cost int, reason string, fn func(*models.Account) error) (*models.Account, error) {
	acc, err := s.Update(ctx, code, func(a *models.Account) error {
		if err := ledger.RequireBalance(a, cost); err != nil {
			return err
		}
		a.Generations -= cost
		return fn(a)
	})
	if err != nil {
		return nil, err
	}
	s.ledger.Record(ctx, code, models.EntryDebit, -cost, acc.Generations, reason)
	return acc, nil
}

// RecordGeneration adds a result to the account history. It fails with
// ledger.ErrStorageLimitExceeded when the history would not fit.
func (s *Service) RecordGeneration(ctx context.Context, code string, docType models.DocumentType, title, text string) (*models.GenerationRecord, error) {
	rec := history.NewRecord(docType, title, text, s.now())
	if _, err := s.Update(ctx, code, func(a *models.Account) error {
		history.RecordGeneration(a, rec)
		return nil
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Service) AddFavorite(ctx context.Context, code string, fav models.FavoriteService) (*models.Account, error) {
	return s.Update(ctx, code, func(a *models.Account) error {
		for _, f := range a.FavoriteServices {
			if f.Equal(fav) {
				return ErrDuplicateFavorite
			}
		}
		if len(a.FavoriteServices) >= models.FavoritesCap {
			return ErrFavoritesFull
		}
		a.FavoriteServices = append(a.FavoriteServices, fav)
		return nil
	})
}

func (s *Service) RemoveFavorite(ctx context.Context, code string, fav models.FavoriteService) (*models.Account, error) {
	return s.Update(ctx, code, func(a *models.Account) error {
		for i, f := range a.FavoriteServices {
			if f.Equal(fav) {
				a.FavoriteServices = append(a.FavoriteServices[:i], a.FavoriteServices[i+1:]...)
				return nil
			}
		}
		return ErrFavoriteNotFound
	})
}

// Assistant setting names.
const (
	SettingInternet = "internetEnabled"
	SettingMemory   = "memoryEnabled"
)

func (s *Service) ToggleSetting(ctx context.Context, code string, asst models.Assistant, setting string) (models.AssistantSettings, error) {
	if !asst.Valid() {
		return models.AssistantSettings{}, ErrUnknownAssistant
	}
	acc, err := s.Update(ctx, code, func(a *models.Account) error {
		st := a.Settings(asst)
		switch setting {
		case SettingInternet:
			st.InternetEnabled = !st.InternetEnabled
		case SettingMemory:
			st.MemoryEnabled = !st.MemoryEnabled
		default:
			return ErrUnknownSetting
		}
		a.SetSettings(asst, st)
		return nil
	})
	if err != nil {
		return models.AssistantSettings{}, err
	}
	return acc.Settings(asst), nil
}

// History targets for ClearHistory.
const (
	HistoryGenerations = "generations"
	HistoryMirra       = "mirra"
	HistoryDary        = "dary"
)

// ClearHistory empties one history to free storage.
func (s *Service) ClearHistory(ctx context.Context, code, target string) (*models.Account, error) {
	return s.store.Update(ctx, code, func(a *models.Account) (*models.Account, error) {
		switch target {
		case HistoryGenerations:
			a.GenerationHistory = []models.GenerationRecord{}
		case HistoryMirra:
			a.MirraChatHistory = []models.ChatMessage{}
		case HistoryDary:
			a.DaryChatHistory = []models.ChatMessage{}
		default:
			return nil, ErrUnknownHistory
		}
		return a, nil
	})
}

func (s *Service) LedgerEntries(ctx context.Context, code string, limit int) ([]*models.LedgerEntry, error) {
	return s.ledger.Entries(ctx, code, limit)
}
