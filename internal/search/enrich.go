package search

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fikircreative/prospector/internal/lead"
	"github.com/fikircreative/prospector/internal/places"
	"github.com/fikircreative/prospector/internal/telemetry"
)

const (
	// MaxEnrichLimit caps how many leads are looked up per search.
	MaxEnrichLimit = 20
	// DefaultEnrichConcurrency lets every target be looked up at once.
	DefaultEnrichConcurrency = MaxEnrichLimit
)

// DetailsAPI is the subset of the places client the enricher needs.
type DetailsAPI interface {
	Details(ctx context.Context, placeID string) (places.DetailsResponse, error)
}

// Enricher fills phone, website and coordinates from detail lookups.
type Enricher struct {
	api         DetailsAPI
	limit       int
	concurrency int
	logger      *zap.Logger
}

// NewEnricher builds an Enricher. limit is clamped to [1, MaxEnrichLimit].
func NewEnricher(api DetailsAPI, limit, concurrency int, logger *zap.Logger) *Enricher {
	if limit <= 0 || limit > MaxEnrichLimit {
		limit = MaxEnrichLimit
	}
	if concurrency <= 0 {
		concurrency = DefaultEnrichConcurrency
	}
	concurrency = min(concurrency, limit)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{api: api, limit: limit, concurrency: concurrency, logger: logger}
}

// Enrich looks up the first leads and merges any non-nil detail values into
// them. Failed lookups are logged and leave the lead unchanged.
func (e *Enricher) Enrich(ctx context.Context, leads []lead.Lead) []lead.Lead {
	if len(leads) == 0 {
		return leads
	}
	n := min(len(leads), e.limit)
	details := make([]*places.Place, n)

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range n {
		placeID := leads[i].PlaceID
		g.Go(func() error {
			resp, err := e.api.Details(ctx, placeID)
			if err != nil {
				e.logger.Warn("place details lookup failed",
					zap.String("place_id", placeID),
					zap.Error(err))
				telemetry.ObserveEnrichment(telemetry.OutcomeEnrichSkipped)
				return nil
			}
			result := resp.Result
			details[i] = &result
			telemetry.ObserveEnrichment(telemetry.OutcomeEnriched)
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]*places.Place, n)
	for i, d := range details {
		if d != nil {
			byID[leads[i].PlaceID] = d
		}
	}

	out := make([]lead.Lead, len(leads))
	copy(out, leads)
	for i := range out {
		d, ok := byID[out[i].PlaceID]
		if !ok {
			continue
		}
		if d.FormattedPhoneNumber != nil {
			out[i].Phone = d.FormattedPhoneNumber
		}
		if d.Website != nil {
			out[i].Website = d.Website
		}
		lat, lng := d.Coordinates()
		if lat != nil {
			out[i].Lat = lat
		}
		if lng != nil {
			out[i].Lng = lng
		}
	}
	return out
}
