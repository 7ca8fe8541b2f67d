package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fikircreative/prospector/internal/telemetry"
)

const (
	// DefaultBaseURL is the Places web service root.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	endpointTextSearch = "textsearch"
	endpointDetails    = "details"
	maxBodyBytes       = 4 << 20
)

// Config controls the places client.
type Config struct {
	APIKey   string
	BaseURL  string
	Region   string
	Language string
	// Timeout bounds each upstream round trip. Zero leaves the transport default.
	Timeout time.Duration
	// RequestsPerSecond paces upstream calls. Zero or less disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Client issues text search and details requests.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New constructs a Client. A nil httpClient uses a dedicated client honoring cfg.Timeout.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// TextSearch fetches one page. When pageToken is set it replaces the query.
func (c *Client) TextSearch(ctx context.Context, query, pageToken string) (TextSearchResponse, error) {
	params := url.Values{}
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	} else {
		params.Set("query", query)
	}
	if c.cfg.Region != "" {
		params.Set("region", c.cfg.Region)
	}

	var out TextSearchResponse
	if err := c.get(ctx, endpointTextSearch, params, &out); err != nil {
		return TextSearchResponse{}, err
	}
	if out.Status != "" && out.Status != StatusOK && out.Status != StatusZeroResults {
		telemetry.ObservePlacesCall(endpointTextSearch, telemetry.OutcomeStatusError, 0)
		return TextSearchResponse{}, &UpstreamError{
			Endpoint: endpointTextSearch,
			Status:   out.Status,
			Body:     out.ErrorMessage,
		}
	}
	return out, nil
}

// Details looks up phone, website, and geometry for one place. Any status
// other than OK is returned as an *UpstreamError.
func (c *Client) Details(ctx context.Context, placeID string) (DetailsResponse, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", DetailFields)

	var out DetailsResponse
	if err := c.get(ctx, endpointDetails, params, &out); err != nil {
		return DetailsResponse{}, err
	}
	if out.Status != StatusOK {
		telemetry.ObservePlacesCall(endpointDetails, telemetry.OutcomeStatusError, 0)
		return DetailsResponse{}, &UpstreamError{
			Endpoint: endpointDetails,
			Status:   out.Status,
			Body:     out.ErrorMessage,
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if !c.Configured() {
		return ErrMissingAPIKey
	}
	ctx, span := telemetry.Tracer("places").Start(ctx, "places."+endpoint)
	defer span.End()

	if err := c.wait(ctx); err != nil {
		span.RecordError(err)
		return err
	}

	if c.cfg.Language != "" {
		params.Set("language", c.cfg.Language)
	}
	params.Set("key", c.cfg.APIKey)
	endpointURL := fmt.Sprintf("%s/%s/json?%s", c.cfg.BaseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.ObservePlacesCall(endpoint, telemetry.OutcomeTransport, time.Since(start))
		span.SetStatus(codes.Error, "transport error")
		// url.Error embeds the request URL, which carries the API key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close places response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		telemetry.ObservePlacesCall(endpoint, telemetry.OutcomeTransport, time.Since(start))
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		telemetry.ObservePlacesCall(endpoint, telemetry.OutcomeHTTPError, time.Since(start))
		span.SetStatus(codes.Error, resp.Status)
		return &UpstreamError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		telemetry.ObservePlacesCall(endpoint, telemetry.OutcomeDecodeError, time.Since(start))
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	telemetry.ObservePlacesCall(endpoint, telemetry.OutcomeOK, time.Since(start))
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		telemetry.ObserveRateLimitDelay(d)
	}
	return nil
}
