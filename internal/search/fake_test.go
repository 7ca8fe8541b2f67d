package search

import (
	"context"
	"sync"
	"time"

	"github.com/fikircreative/prospector/internal/places"
)

type fakePlaces struct {
	mu         sync.Mutex
	pages      []places.TextSearchResponse
	details    map[string]places.Place
	detailErr  map[string]error
	searchErr  error
	configured bool

	tokens      []string
	queries     []string
	detailCalls []string
}

func newFakePlaces(pages ...places.TextSearchResponse) *fakePlaces {
	return &fakePlaces{
		pages:      pages,
		details:    map[string]places.Place{},
		detailErr:  map[string]error{},
		configured: true,
	}
}

func (f *fakePlaces) Configured() bool { return f.configured }

func (f *fakePlaces) TextSearch(_ context.Context, query, pageToken string) (places.TextSearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.tokens = append(f.tokens, pageToken)
	if f.searchErr != nil {
		return places.TextSearchResponse{}, f.searchErr
	}
	idx := len(f.tokens) - 1
	if idx >= len(f.pages) {
		return places.TextSearchResponse{Status: places.StatusZeroResults}, nil
	}
	return f.pages[idx], nil
}

func (f *fakePlaces) Details(_ context.Context, placeID string) (places.DetailsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls = append(f.detailCalls, placeID)
	if err := f.detailErr[placeID]; err != nil {
		return places.DetailsResponse{}, err
	}
	return places.DetailsResponse{Status: places.StatusOK, Result: f.details[placeID]}, nil
}

func (f *fakePlaces) searchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

func place(id, name string) places.Place {
	p := places.Place{PlaceID: id}
	if name != "" {
		p.Name = &name
	}
	return p
}

func str(s string) *string { return &s }

func noWait(context.Context, time.Duration) error { return nil }
