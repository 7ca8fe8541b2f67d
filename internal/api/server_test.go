package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fikircreative/prospector/internal/auth"
	"github.com/fikircreative/prospector/internal/lead"
	"github.com/fikircreative/prospector/internal/places"
	"github.com/fikircreative/prospector/internal/search"
)

type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

type validationBody struct {
	Error   string                `json:"error"`
	Details lead.ValidationErrors `json:"details"`
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(env *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeValidation(t *testing.T, rec *httptest.ResponseRecorder) validationBody {
	t.Helper()
	var body validationBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewServerRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Deps{})
	require.Error(t, err)
}

func TestUnauthenticatedRequestsTouchNothing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	requests := []*http.Request{
		postJSON("/api/places/search", `{"keyword":"k","city":"c","country":"t"}`),
		postJSON("/api/leads/bulk-save", `{"items":[{"placeId":"a","name":"A","sector":"s","city":"c","country":"t"}]}`),
		httptest.NewRequest(http.MethodGet, "/api/leads", nil),
		postJSON("/api/places/export", `{"items":[{"placeId":"a","name":"A","sector":"s","city":"c","country":"t"}]}`),
		httptest.NewRequest(http.MethodGet, "/api/leads/export", nil),
		httptest.NewRequest(http.MethodGet, "/auth/session", nil),
	}
	for _, req := range requests {
		rec := serve(env, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, req.URL.Path)
	}
	require.Zero(t, env.searcher.callCount())
	require.Zero(t, env.store.Len())
	require.Empty(t, env.events.Messages())
}

func TestDisallowedEmailIsUnauthorized(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := env.authorize(t, postJSON("/api/places/search", `{"keyword":"k","city":"c","country":"t"}`), "intruder@example.com")
	rec := serve(env, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, env.searcher.callCount())
}

func TestSearchReturnsItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.searcher.results = sampleItems()
	req := env.authorize(t, postJSON("/api/places/search",
		`{"keyword":" diş kliniği ","city":"İstanbul","country":"Türkiye","pages":"2","enrich":true}`), allowedEmail)

	rec := serve(env, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []lead.Lead `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	require.Len(t, env.searcher.calls, 1)
	got := env.searcher.calls[0]
	require.Equal(t, "diş kliniği", got.Keyword)
	require.Equal(t, 2, got.Pages)
	require.True(t, got.Enrich)
}

func TestSearchDefaultsPagesAndEmptyItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := env.authorize(t, postJSON("/api/places/search", `{"keyword":"k","city":"c","country":"t"}`), allowedEmail)
	rec := serve(env, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"items":[]}`, rec.Body.String())
	require.Equal(t, 1, env.searcher.calls[0].Pages)
	require.False(t, env.searcher.calls[0].Enrich)
}

func TestSearchValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		body       string
		wantFields []string
		wantForm   bool
	}{
		{"pages above max", `{"keyword":"k","city":"c","country":"t","pages":4}`, []string{"pages"}, false},
		{"pages fraction", `{"keyword":"k","city":"c","country":"t","pages":1.5}`, []string{"pages"}, false},
		{"pages not numeric", `{"keyword":"k","city":"c","country":"t","pages":"many"}`, []string{"pages"}, false},
		{"blank keyword", `{"keyword":"   ","city":"c","country":"t"}`, []string{"keyword"}, false},
		{"all missing", `{}`, []string{"keyword", "city", "country"}, false},
		{"enrich wrong type", `{"keyword":"k","city":"c","country":"t","enrich":"yes"}`, []string{"enrich"}, false},
		{"malformed json", `{"keyword":`, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			rec := serve(env, env.authorize(t, postJSON("/api/places/search", tc.body), allowedEmail))
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeValidation(t, rec)
			require.Equal(t, "Invalid request", body.Error)
			for _, f := range tc.wantFields {
				require.Contains(t, body.Details.FieldErrors, f)
			}
			require.Len(t, body.Details.FieldErrors, len(tc.wantFields))
			if tc.wantForm {
				require.NotEmpty(t, body.Details.FormErrors)
			}
			require.Zero(t, env.searcher.callCount())
		})
	}
}

func TestSearchErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"missing key", search.ErrMissingAPIKey, http.StatusBadRequest, "places API key is not configured"},
		{"http failure", &places.UpstreamError{StatusCode: 503, Body: "unavailable"}, http.StatusBadGateway, "places API error"},
		{"provider status", &places.UpstreamError{Status: "REQUEST_DENIED", Body: "bad key"}, http.StatusBadGateway, "places API status: REQUEST_DENIED"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "search failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			env.searcher.err = tc.err
			rec := serve(env, env.authorize(t, postJSON("/api/places/search", `{"keyword":"k","city":"c","country":"t"}`), allowedEmail))
			require.Equal(t, tc.wantStatus, rec.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tc.wantError, body.Error)
		})
	}
}

func TestSearchUpstreamDetailsCarryBody(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.searcher.err = &places.UpstreamError{StatusCode: 500, Body: "upstream exploded"}
	rec := serve(env, env.authorize(t, postJSON("/api/places/search", `{"keyword":"k","city":"c","country":"t"}`), allowedEmail))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.JSONEq(t, `"upstream exploded"`, string(body.Details))
}

func TestSearchEndToEndTurkishExample(t *testing.T) {
	t.Parallel()

	var calls int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "diş kliniği in İstanbul Türkiye", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"ChIJ1","name":"Gülüş Diş","formatted_address":"Moda","rating":4.6},
			{"place_id":"ChIJ2","name":"Beyaz Diş"}
		]}`))
	}))
	t.Cleanup(upstream.Close)

	client := places.New(places.Config{APIKey: "k", BaseURL: upstream.URL}, upstream.Client(), nil)
	svc := search.NewService(client, search.Options{}, nil)
	env := newTestEnv(t, func(d *Deps) { d.Search = svc })

	rec := serve(env, env.authorize(t, postJSON("/api/places/search",
		`{"keyword":"diş kliniği","city":"İstanbul","country":"Türkiye","pages":1,"enrich":false}`), allowedEmail))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []lead.Lead `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	for _, l := range body.Items {
		require.Equal(t, "diş kliniği", l.Sector)
	}
	require.Equal(t, 1, calls)
}

func TestBulkSaveIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	payload, err := json.Marshal(map[string]any{"items": sampleItems()})
	require.NoError(t, err)

	rec := serve(env, env.authorize(t, postJSON("/api/leads/bulk-save", string(payload)), allowedEmail))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = serve(env, env.authorize(t, postJSON("/api/leads/bulk-save", string(payload)), allowedEmail))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"count":0}`, rec.Body.String())

	msgs := env.events.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, lead.SavedTopic, msgs[0].Topic)
	ev, ok := msgs[0].Payload.(lead.SavedEvent)
	require.True(t, ok)
	require.EqualValues(t, 2, ev.Inserted)
	require.Equal(t, allowedEmail, ev.SavedBy)
}

func TestBulkSaveStoreFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.store.FailWith = errors.New("unique index corrupted")
	payload, err := json.Marshal(map[string]any{"items": sampleItems()})
	require.NoError(t, err)

	rec := serve(env, env.authorize(t, postJSON("/api/leads/bulk-save", string(payload)), allowedEmail))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "count")
	require.NotContains(t, rec.Body.String(), "corrupted")
	require.Empty(t, env.events.Messages())
}

func TestBulkSaveValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := serve(env, env.authorize(t, postJSON("/api/leads/bulk-save", `{"items":[]}`), allowedEmail))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeValidation(t, rec).Details.FieldErrors, "items")

	rec = serve(env, env.authorize(t, postJSON("/api/leads/bulk-save",
		`{"items":[{"placeId":"a","name":"A","sector":"s","city":"c","country":"t"},{"placeId":"b","name":"B","sector":"s","city":"c"}]}`), allowedEmail))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeValidation(t, rec).Details.FieldErrors, "items[1].country")

	rec = serve(env, env.authorize(t, postJSON("/api/leads/bulk-save",
		`{"items":[{"placeId":"a","name":"A","sector":"s","city":"c","country":"t","rating":"high"}]}`), allowedEmail))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeValidation(t, rec).Details.FieldErrors, "items.rating")
	require.Zero(t, env.store.Len())
}

func TestListLeads(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.store.InsertMany(t.Context(), sampleItems())
	require.NoError(t, err)

	rec := serve(env, env.authorize(t, httptest.NewRequest(http.MethodGet, "/api/leads?limit=1", nil), allowedEmail))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []lead.StoredLead `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "ChIJ2", body.Items[0].PlaceID)
	require.NotEmpty(t, body.Items[0].ID)

	rec = serve(env, env.authorize(t, httptest.NewRequest(http.MethodGet, "/api/leads?limit=9000", nil), allowedEmail))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeValidation(t, rec).Details.FieldErrors, "limit")
}

func TestExportItems(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	payload, err := json.Marshal(map[string]any{"items": sampleItems()})
	require.NoError(t, err)

	rec := serve(env, env.authorize(t, postJSON("/api/places/export", string(payload)), allowedEmail))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "prospector_leads_")
	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, `"Gülüş Diş","","","","4.6","İstanbul","Türkiye"`, lines[1])
}

func TestExportSaved(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.store.InsertMany(t.Context(), sampleItems())
	require.NoError(t, err)

	rec := serve(env, env.authorize(t, httptest.NewRequest(http.MethodGet, "/api/leads/export", nil), allowedEmail))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, strings.Split(rec.Body.String(), "\n"), 3)
}

func TestBearerTokenAuthorizes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token, _, err := env.sessions.Sign(auth.Identity{Email: allowedEmail})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(env, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, serve(env, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	require.Equal(t, http.StatusOK, serve(env, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	down := newTestEnv(t, func(d *Deps) { d.Leads = downStore{LeadStore: env.store} })
	require.Equal(t, http.StatusServiceUnavailable, serve(down, httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	serve(env, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rec := serve(env, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.searcher.panics = true
	rec := serve(env, env.authorize(t, postJSON("/api/places/search", `{"keyword":"k","city":"c","country":"t"}`), allowedEmail))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := serve(env, req)
	require.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = serve(env, httptest.NewRequest(http.MethodGet, "/healthz", bytes.NewReader(nil)))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(d *Deps) { d.AllowedOrigins = []string{"https://app.example.com"} })
	req := httptest.NewRequest(http.MethodOptions, "/api/places/search", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(env, req)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
