package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmeshram/greenloop/internal/store"
)

const (
	TokenKey = "greenloop_token"
	UserKey  = "greenloop_user"
)

var ErrEmptyToken = errors.New("empty token")

// User is the identity carried in the session token.
type User struct {
	ID        string    `json:"userId"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

// Session keeps the bearer token and the user decoded from it. Signatures are
// not checked here; the server verifies every request.
type Session struct {
	kv  store.KV
	log *slog.Logger
	now func() time.Time

	mu    sync.RWMutex
	token string
	user  *User
}

func NewSession(kv store.KV, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{kv: kv, log: log, now: time.Now}
	s.load()
	return s
}

func (s *Session) load() {
	tok, okT, errT := s.kv.GetItem(TokenKey)
	raw, okU, errU := s.kv.GetItem(UserKey)
	if errT != nil || errU != nil || !okT || !okU {
		return
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.Warn("stored user unreadable, signing out", "error", err)
		s.clear()
		return
	}
	s.token = tok
	s.user = &u
}

// Login stores token and the identity decoded from its claims.
func (s *Session) Login(token string) (User, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return User{}, ErrEmptyToken
	}
	u, err := decode(token)
	if err != nil {
		return User{}, err
	}

	data, err := json.Marshal(u)
	if err != nil {
		return User{}, fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.SetItem(TokenKey, token); err != nil {
		return User{}, fmt.Errorf("store token: %w", err)
	}
	if err := s.kv.SetItem(UserKey, string(data)); err != nil {
		return User{}, fmt.Errorf("store user: %w", err)
	}
	s.token = token
	s.user = &u
	s.log.Info("signed in", "user", u.ID)
	return u, nil
}

func decode(token string) (User, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return User{}, fmt.Errorf("parse token: %w", err)
	}

	var u User
	switch sub := claims["sub"].(type) {
	case string:
		u.ID = sub
	case float64:
		u.ID = fmt.Sprintf("%.0f", sub)
	}
	if u.ID == "" {
		if id, ok := claims["user_id"]; ok {
			u.ID = fmt.Sprint(id)
		}
	}
	u.Name, _ = claims["name"].(string)
	u.Email, _ = claims["email"].(string)
	u.Picture, _ = claims["picture"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		u.ExpiresAt = exp.Time
	}
	if u.ID == "" && u.Email == "" {
		return User{}, errors.New("token carries no subject")
	}
	return u, nil
}

func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Session) clear() {
	s.token = ""
	s.user = nil
	if err := s.kv.RemoveItem(TokenKey); err != nil {
		s.log.Warn("remove token failed", "error", err)
	}
	if err := s.kv.RemoveItem(UserKey); err != nil {
		s.log.Warn("remove user failed", "error", err)
	}
}

// Authenticated reports whether a token is held and has not expired.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.user == nil {
		return false
	}
	return s.user.ExpiresAt.IsZero() || s.now().Before(s.user.ExpiresAt)
}

// Token returns the bearer token, or "" when signed out or expired.
func (s *Session) Token() string {
	if !s.Authenticated() {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}
