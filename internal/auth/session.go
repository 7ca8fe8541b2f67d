package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fikircreative/prospector/internal/lead"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "prospector_session"

// DefaultSessionTTL applies when SessionConfig.TTL is zero.
const DefaultSessionTTL = 24 * time.Hour

var errNoSession = errors.New("no session token")

// Claims is the payload of a session token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Session is the resolved identity of a signed-in user.
type Session struct {
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionConfig controls token signing and the session cookie.
type SessionConfig struct {
	Secret       []byte
	TTL          time.Duration
	CookieSecure bool
	Issuer       string
}

// SessionManager issues and verifies session tokens.
type SessionManager struct {
	cfg   SessionConfig
	clock lead.Clock
}

// NewSessionManager validates cfg and returns a SessionManager.
func NewSessionManager(cfg SessionConfig, clock lead.Clock) (*SessionManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "prospector"
	}
	return &SessionManager{cfg: cfg, clock: clock}, nil
}

// Sign returns a signed token for the identity.
func (m *SessionManager) Sign(id Identity) (string, time.Time, error) {
	now := m.clock.Now()
	exp := now.Add(m.cfg.TTL)
	claims := Claims{
		Email: normalizeEmail(id.Email),
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

// Parse verifies the token signature and expiry.
func (m *SessionManager) Parse(token string) (Session, error) {
	claims := &Claims{}
	// Expiry is checked against the injected clock below.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}
	if !parsed.Valid {
		return Session{}, errors.New("parse session: invalid token")
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(m.clock.Now()) {
		return Session{}, errors.New("parse session: expired")
	}
	return Session{Email: claims.Email, Name: claims.Name, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Issue signs a token for id and sets it as the session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, id Identity) error {
	token, exp, err := m.Sign(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest resolves the session from the cookie or a Bearer header.
func (m *SessionManager) FromRequest(r *http.Request) (Session, error) {
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie(SessionCookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return Session{}, errNoSession
	}
	return m.Parse(token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
