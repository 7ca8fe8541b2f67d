package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fikircreative/prospector/internal/clock"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSessions(t *testing.T, clk *clock.Fixed) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(SessionConfig{Secret: []byte("test-secret"), TTL: time.Hour}, clk)
	require.NoError(t, err)
	return m
}

func TestNewSessionManagerRequiresSecret(t *testing.T) {
	_, err := NewSessionManager(SessionConfig{}, clock.System{})
	require.Error(t, err)
}

func TestSignAndParseRoundTrip(t *testing.T) {
	clk := clock.NewFixed(testEpoch)
	m := newTestSessions(t, clk)

	token, exp, err := m.Sign(Identity{Subject: "123", Email: "Ayse@Example.com", Name: "Ayşe"})
	require.NoError(t, err)
	require.Equal(t, testEpoch.Add(time.Hour), exp)

	sess, err := m.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "ayse@example.com", sess.Email)
	require.Equal(t, "Ayşe", sess.Name)

	clk.Advance(2 * time.Hour)
	_, err = m.Parse(token)
	require.Error(t, err)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	clk := clock.NewFixed(testEpoch)
	other, err := NewSessionManager(SessionConfig{Secret: []byte("other-secret")}, clk)
	require.NoError(t, err)
	token, _, err := other.Sign(Identity{Email: "a@example.com"})
	require.NoError(t, err)

	_, err = newTestSessions(t, clk).Parse(token)
	require.Error(t, err)
}

func TestIssueSetsHttpOnlyCookie(t *testing.T) {
	m := newTestSessions(t, clock.NewFixed(testEpoch))
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, Identity{Email: "a@example.com"}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	sess, err := m.FromRequest(req)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", sess.Email)
}

func TestFromRequestBearer(t *testing.T) {
	m := newTestSessions(t, clock.NewFixed(testEpoch))
	token, _, err := m.Sign(Identity{Email: "a@example.com"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	sess, err := m.FromRequest(req)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", sess.Email)
}

func TestClearExpiresCookie(t *testing.T) {
	m := newTestSessions(t, clock.NewFixed(testEpoch))
	rec := httptest.NewRecorder()
	m.Clear(rec)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}
