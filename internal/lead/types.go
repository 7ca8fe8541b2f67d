package lead

import (
	"strings"
	"time"
)

// UnknownBusinessName is used when the provider returns a place without a name.
const UnknownBusinessName = "Bilinmeyen İşletme"

// Page bounds accepted by the search endpoint.
const (
	MinPages = 1
	MaxPages = 3
)

// Lead is a normalized business discovered through a places search.
type Lead struct {
	PlaceID string   `json:"placeId" validate:"required"`
	Name    string   `json:"name" validate:"required"`
	Address *string  `json:"address,omitempty"`
	Phone   *string  `json:"phone,omitempty"`
	Website *string  `json:"website,omitempty"`
	Rating  *float64 `json:"rating,omitempty"`
	Sector  string   `json:"sector" validate:"required"`
	City    string   `json:"city" validate:"required"`
	Country string   `json:"country" validate:"required"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// StoredLead is a Lead as persisted by a Repository.
type StoredLead struct {
	Lead
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// SearchRequest captures the parameters of a single places search.
type SearchRequest struct {
	Keyword string `json:"keyword" validate:"required"`
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"required"`
	Pages   int    `json:"pages" validate:"min=1,max=3"`
	Enrich  bool   `json:"enrich"`
}

// Query renders the free-text query sent to the provider.
func (r SearchRequest) Query() string {
	return strings.TrimSpace(r.Keyword + " in " + r.City + " " + r.Country)
}

// BulkSaveRequest is the payload accepted by the bulk-save endpoint.
type BulkSaveRequest struct {
	Items []Lead `json:"items" validate:"required,min=1,dive"`
}

// SavedTopic is the event type of SavedEvent.
const SavedTopic = "leads.saved"

// SavedEvent is published after a bulk save inserted at least one row.
type SavedEvent struct {
	Inserted  int64     `json:"inserted"`
	Submitted int       `json:"submitted"`
	SavedBy   string    `json:"saved_by"`
	Sectors   []string  `json:"sectors"`
	Cities    []string  `json:"cities"`
	SavedAt   time.Time `json:"saved_at"`
}

// NewSavedEvent summarizes a bulk save. Sectors and cities are listed once
// each in first-seen order.
func NewSavedEvent(items []Lead, inserted int64, savedBy string, at time.Time) SavedEvent {
	ev := SavedEvent{Inserted: inserted, Submitted: len(items), SavedBy: savedBy, SavedAt: at}
	sectors := map[string]struct{}{}
	cities := map[string]struct{}{}
	for _, l := range items {
		if _, ok := sectors[l.Sector]; !ok {
			sectors[l.Sector] = struct{}{}
			ev.Sectors = append(ev.Sectors, l.Sector)
		}
		if _, ok := cities[l.City]; !ok {
			cities[l.City] = struct{}{}
			ev.Cities = append(ev.Cities, l.City)
		}
	}
	return ev
}

// Dedupe keeps the first lead per place ID, preserving order.
func Dedupe(leads []Lead) []Lead {
	seen := make(map[string]struct{}, len(leads))
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if _, ok := seen[l.PlaceID]; ok {
			continue
		}
		seen[l.PlaceID] = struct{}{}
		out = append(out, l)
	}
	return out
}

// StringPtr returns nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 {
	return &f
}
