package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fikircreative/prospector/internal/auth"
)

const (
	stateCookieName = "prospector_oauth_state"
	stateTTL        = 10 * time.Minute

	defaultSignInURL     = "/signin"
	defaultPostSignInURL = "/"
)

// accessDeniedURL appends error=AccessDenied to the sign-in page URL.
func accessDeniedURL(signIn string) string {
	u, err := url.Parse(signIn)
	if err != nil {
		return defaultSignInURL + "?error=AccessDenied"
	}
	q := u.Query()
	q.Set("error", "AccessDenied")
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	if s.identity == nil {
		writeError(w, http.StatusServiceUnavailable, "sign-in is not configured")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.identity.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	if s.identity == nil {
		writeError(w, http.StatusServiceUnavailable, "sign-in is not configured")
		return
	}
	clearStateCookie(w)

	q := r.URL.Query()
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		s.logger.Warn("oauth state mismatch")
		http.Redirect(w, r, s.signInErrorURL, http.StatusFound)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Redirect(w, r, s.signInErrorURL, http.StatusFound)
		return
	}

	id, err := s.identity.Exchange(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrEmailNotVerified) {
			s.logger.Info("sign-in refused: email not verified")
		} else {
			s.logger.Warn("oauth exchange failed", zap.Error(err))
		}
		http.Redirect(w, r, s.signInErrorURL, http.StatusFound)
		return
	}
	if !s.gate.Allowed(id.Email) {
		s.logger.Info("sign-in refused: email not allowed", zap.String("email", id.Email))
		http.Redirect(w, r, s.signInErrorURL, http.StatusFound)
		return
	}
	if err := s.gate.Sessions().Issue(w, id); err != nil {
		s.logger.Error("issue session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	s.logger.Info("signed in", zap.String("email", id.Email))
	http.Redirect(w, r, s.postSignInURL, http.StatusFound)
}

func (s *Server) signOut(w http.ResponseWriter, _ *http.Request) {
	s.gate.Sessions().Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authorize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]auth.Session{"user": sess})
}

func clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
