package search

import (
	"github.com/fikircreative/prospector/internal/lead"
	"github.com/fikircreative/prospector/internal/places"
)

// Normalize maps raw places to leads in first-seen order. Records without a
// place ID are dropped and later duplicates of an ID are ignored.
func Normalize(raw []places.Place, req lead.SearchRequest) []lead.Lead {
	seen := make(map[string]struct{}, len(raw))
	out := make([]lead.Lead, 0, len(raw))
	for _, p := range raw {
		if p.PlaceID == "" {
			continue
		}
		if _, dup := seen[p.PlaceID]; dup {
			continue
		}
		seen[p.PlaceID] = struct{}{}

		name := lead.UnknownBusinessName
		if p.Name != nil && *p.Name != "" {
			name = *p.Name
		}
		lat, lng := p.Coordinates()
		out = append(out, lead.Lead{
			PlaceID: p.PlaceID,
			Name:    name,
			Address: p.FormattedAddress,
			Phone:   p.FormattedPhoneNumber,
			Website: p.Website,
			Rating:  p.Rating.Ptr(),
			Sector:  req.Keyword,
			City:    req.City,
			Country: req.Country,
			Lat:     lat,
			Lng:     lng,
		})
	}
	return out
}
