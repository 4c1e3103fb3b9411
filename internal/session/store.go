package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Storage keys mirror the field names the original web client kept in
// tab-scoped storage.
const (
	keyAuthOK  = "auth_ok"
	keyLoginID = "login_id"
	keyToken   = "auth_token"
	keyExpiry  = "auth_exp"
)

const secretBytes = 32

// Token is the short-lived identity credential attached to every submission.
type Token struct {
	Identity  string
	Secret    string
	ExpiresAt time.Time
}

// Valid reports whether the token has not expired yet.
func (t Token) Valid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// Store manages the single persisted session. It is pure state management:
// no network calls, no retries, no refresh.
type Store struct {
	storage Storage
	ttl     time.Duration
	now     func() time.Time
}

func NewStore(storage Storage, ttl time.Duration) *Store {
	return &Store{storage: storage, ttl: ttl, now: time.Now}
}

// Create generates a fresh random secret, stamps the expiry and persists the
// session fields.
func (s *Store) Create(identity string) (Token, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return Token{}, fmt.Errorf("session: generate secret: %w", err)
	}
	token := Token{
		Identity:  identity,
		Secret:    hex.EncodeToString(buf),
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.storage.Set(keyAuthOK, "1")
	s.storage.Set(keyLoginID, token.Identity)
	s.storage.Set(keyToken, token.Secret)
	s.storage.Set(keyExpiry, strconv.FormatInt(token.ExpiresAt.UnixMilli(), 10))
	return token, nil
}

// Load returns the persisted token only while it is still valid. Expired data
// is reported as absent but not purged; Clear removes it explicitly.
func (s *Store) Load() (Token, bool) {
	if s.storage.Get(keyAuthOK) != "1" {
		return Token{}, false
	}
	expMilli, err := strconv.ParseInt(s.storage.Get(keyExpiry), 10, 64)
	if err != nil {
		return Token{}, false
	}
	token := Token{
		Identity:  s.storage.Get(keyLoginID),
		Secret:    s.storage.Get(keyToken),
		ExpiresAt: time.UnixMilli(expMilli),
	}
	if !token.Valid(s.now()) {
		return Token{}, false
	}
	return token, true
}

// Clear removes all persisted session fields unconditionally.
func (s *Store) Clear() {
	for _, key := range []string{keyAuthOK, keyLoginID, keyToken, keyExpiry} {
		s.storage.Delete(key)
	}
}
