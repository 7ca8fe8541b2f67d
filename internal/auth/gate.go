package auth

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrUnauthorized is returned when a request has no valid allow-listed session.
var ErrUnauthorized = errors.New("unauthorized")

// Gate authorizes requests against the session and the allow-list.
type Gate struct {
	sessions *SessionManager
	allow    AllowList
	logger   *zap.Logger
}

// NewGate builds a Gate.
func NewGate(sessions *SessionManager, allow AllowList, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{sessions: sessions, allow: allow, logger: logger}
}

// Authorize returns the caller's session or ErrUnauthorized. The email is
// checked against the allow-list on every call so that removing an address
// revokes access for existing sessions.
func (g *Gate) Authorize(r *http.Request) (Session, error) {
	sess, err := g.sessions.FromRequest(r)
	if err != nil {
		if !errors.Is(err, errNoSession) {
			g.logger.Debug("rejecting session", zap.Error(err))
		}
		return Session{}, ErrUnauthorized
	}
	if !g.allow.Allowed(sess.Email) {
		g.logger.Info("session email not allowed", zap.String("email", sess.Email))
		return Session{}, ErrUnauthorized
	}
	return sess, nil
}

// Allowed exposes the allow-list check for sign-in.
func (g *Gate) Allowed(email string) bool {
	return g.allow.Allowed(email)
}

// Sessions returns the underlying session manager.
func (g *Gate) Sessions() *SessionManager {
	return g.sessions
}
