// Package auth identifies devices with signed tokens and guards admin mode
// with a hashed unlock phrase.
package auth

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidToken = errors.New("invalid device token")

const defaultTokenTTL = 365 * 24 * time.Hour

// Service issues and validates device tokens. A device is one browser; its
// logged-in access code and pending referral are kept per device.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type claims struct {
	jwt.RegisteredClaims
}

// IssueDevice creates a new device ID and its token.
func (s *Service) IssueDevice() (string, string, error) {
	id := uuid.NewString()
	now := s.now()
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return id, tok, nil
}

// ValidateToken returns the device ID the token was issued for.
func (s *Service) ValidateToken(token string) (string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", ErrInvalidToken
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return "", ErrInvalidToken
	}
	if _, err := uuid.Parse(c.Subject); err != nil {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// maxAdminPhraseBytes is the longest input bcrypt takes into account.
const maxAdminPhraseBytes = 72

// AdminUnlocker compares a phrase with the configured bcrypt hash. With no
// hash configured admin mode cannot be unlocked. When length is set, only
// phrases of that many characters reach bcrypt.
type AdminUnlocker struct {
	hash   []byte
	length int
}

func NewAdminUnlocker(hash string, length int) *AdminUnlocker {
	return &AdminUnlocker{hash: []byte(hash), length: length}
}

func (u *AdminUnlocker) Unlock(phrase string) bool {
	if len(u.hash) == 0 || !u.candidate(phrase) {
		return false
	}
	return bcrypt.CompareHashAndPassword(u.hash, []byte(phrase)) == nil
}

// candidate rejects text that cannot be the phrase without hashing it.
func (u *AdminUnlocker) candidate(phrase string) bool {
	if phrase == "" || len(phrase) > maxAdminPhraseBytes || strings.ContainsAny(phrase, "\r\n") {
		return false
	}
	return u.length <= 0 || utf8.RuneCountInString(phrase) == u.length
}
