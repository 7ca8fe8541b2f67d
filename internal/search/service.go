package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fikircreative/prospector/internal/lead"
	"github.com/fikircreative/prospector/internal/places"
	"github.com/fikircreative/prospector/internal/telemetry"
)

// DefaultPageDelay is the pause before requesting a continuation page. The
// provider rejects next_page_token values that are used too soon.
const DefaultPageDelay = 2 * time.Second

// ErrMissingAPIKey is returned when no places API key is configured.
var ErrMissingAPIKey = places.ErrMissingAPIKey

// PlacesAPI is the places client surface used by the service.
type PlacesAPI interface {
	DetailsAPI
	TextSearch(ctx context.Context, query, pageToken string) (places.TextSearchResponse, error)
	Configured() bool
}

// Options tune the search service.
type Options struct {
	PageDelay         time.Duration
	EnrichLimit       int
	EnrichConcurrency int
}

// Service runs lead searches.
type Service struct {
	api      PlacesAPI
	enricher *Enricher
	delay    time.Duration
	logger   *zap.Logger
	wait     func(ctx context.Context, d time.Duration) error
}

// NewService wires a search service around a places client.
func NewService(api PlacesAPI, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := opts.PageDelay
	if delay < 0 {
		delay = 0
	}
	return &Service{
		api:      api,
		enricher: NewEnricher(api, opts.EnrichLimit, opts.EnrichConcurrency, logger),
		delay:    delay,
		logger:   logger,
		wait:     sleep,
	}
}

// Search pages through text search results, normalizes them into leads and
// enriches the first results when requested.
func (s *Service) Search(ctx context.Context, req lead.SearchRequest) ([]lead.Lead, error) {
	if !s.api.Configured() {
		telemetry.ObserveSearch("missing_key")
		return nil, ErrMissingAPIKey
	}
	ctx, span := telemetry.Tracer("search").Start(ctx, "search.Search")
	defer span.End()

	raw, err := s.collect(ctx, req.Query(), req.Pages)
	if err != nil {
		span.RecordError(err)
		var upstream *places.UpstreamError
		if errors.As(err, &upstream) {
			telemetry.ObserveSearch("upstream_error")
		} else {
			telemetry.ObserveSearch("error")
		}
		return nil, err
	}

	leads := Normalize(raw, req)
	if req.Enrich && len(leads) > 0 {
		leads = s.enricher.Enrich(ctx, leads)
	}
	span.SetAttributes(
		attribute.Int("search.raw_results", len(raw)),
		attribute.Int("search.leads", len(leads)),
	)
	s.logger.Info("search completed",
		zap.String("query", req.Query()),
		zap.Int("pages", req.Pages),
		zap.Bool("enrich", req.Enrich),
		zap.Int("results", len(leads)))
	telemetry.ObserveSearch("ok")
	return leads, nil
}

// collect issues at most pages sequential text search requests and stops at
// the first page without a continuation token.
func (s *Service) collect(ctx context.Context, query string, pages int) ([]places.Place, error) {
	pages = max(pages, lead.MinPages)
	var (
		results []places.Place
		token   string
	)
	for page := 0; page < pages; page++ {
		if page > 0 {
			if err := s.wait(ctx, s.delay); err != nil {
				return nil, err
			}
		}
		resp, err := s.api.TextSearch(ctx, query, token)
		if err != nil {
			return nil, fmt.Errorf("text search page %d: %w", page+1, err)
		}
		results = append(results, resp.Results...)
		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	return results, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
