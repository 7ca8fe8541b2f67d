package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fikircreative/prospector/internal/auth"
	"github.com/fikircreative/prospector/internal/clock"
	"github.com/fikircreative/prospector/internal/ids"
	"github.com/fikircreative/prospector/internal/lead"
	pubmemory "github.com/fikircreative/prospector/internal/publisher/memory"
	storememory "github.com/fikircreative/prospector/internal/storage/memory"
)

const allowedEmail = "ayse@example.com"

var apiEpoch = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []lead.SearchRequest
	results []lead.Lead
	err     error
	panics  bool
}

func (f *fakeSearcher) Search(_ context.Context, req lead.SearchRequest) ([]lead.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	f.calls = append(f.calls, req)
	return f.results, f.err
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeIdentity struct {
	identity auth.Identity
	err      error
}

func (f *fakeIdentity) AuthCodeURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (f *fakeIdentity) Exchange(context.Context, string) (auth.Identity, error) {
	return f.identity, f.err
}

type downStore struct {
	*storememory.LeadStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	server   *Server
	searcher *fakeSearcher
	store    *storememory.LeadStore
	events   *pubmemory.Publisher
	sessions *auth.SessionManager
	identity *fakeIdentity
	clock    *clock.Fixed
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	clk := clock.NewFixed(apiEpoch)
	sessions, err := auth.NewSessionManager(auth.SessionConfig{Secret: []byte("test-secret")}, clk)
	require.NoError(t, err)
	env := &testEnv{
		searcher: &fakeSearcher{},
		store:    storememory.NewLeadStore(ids.UUIDv7{}, clk),
		events:   pubmemory.New(10),
		sessions: sessions,
		identity: &fakeIdentity{},
		clock:    clk,
	}
	deps := Deps{
		Gate:     auth.NewGate(sessions, auth.ParseAllowList(allowedEmail), nil),
		Identity: env.identity,
		Search:   env.searcher,
		Leads:    env.store,
		Events:   env.events,
		Clock:    clk,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	env.server, err = NewServer(deps)
	require.NoError(t, err)
	return env
}

// authorize attaches a valid session cookie for email.
func (e *testEnv) authorize(t *testing.T, req *http.Request, email string) *http.Request {
	t.Helper()
	token, _, err := e.sessions.Sign(auth.Identity{Email: email})
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	return req
}

func sampleItems() []lead.Lead {
	return []lead.Lead{
		{PlaceID: "ChIJ1", Name: "Gülüş Diş", Rating: lead.Float64Ptr(4.6), Sector: "diş kliniği", City: "İstanbul", Country: "Türkiye"},
		{PlaceID: "ChIJ2", Name: "Beyaz Diş", Phone: lead.StringPtr("0216 000 00 00"), Sector: "diş kliniği", City: "İstanbul", Country: "Türkiye"},
	}
}
