// Package places is a JSON client for the Google Places Text Search and
// Place Details web services.
package places

import (
	"bytes"
	"encoding/json"
)

// Provider status values accepted by the text search endpoint.
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
)

// DetailFields is the field mask requested when enriching a place.
const DetailFields = "formatted_phone_number,website,geometry"

// OptionalNumber decodes a JSON number and ignores any other value type.
type OptionalNumber struct {
	Value float64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler. Non-numeric input leaves the
// value invalid instead of failing the whole payload.
func (n *OptionalNumber) UnmarshalJSON(data []byte) error {
	*n = OptionalNumber{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil //nolint:nilerr // non-numeric values are treated as absent
	}
	n.Value, n.Valid = f, true
	return nil
}

// Ptr returns nil when the number was absent.
func (n OptionalNumber) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Location is a lat/lng pair.
type Location struct {
	Lat OptionalNumber `json:"lat"`
	Lng OptionalNumber `json:"lng"`
}

// Geometry wraps the place location.
type Geometry struct {
	Location *Location `json:"location"`
}

// Place is the subset of a provider place record the service reads.
type Place struct {
	PlaceID              string         `json:"place_id"`
	Name                 *string        `json:"name"`
	FormattedAddress     *string        `json:"formatted_address"`
	FormattedPhoneNumber *string        `json:"formatted_phone_number"`
	Website              *string        `json:"website"`
	Rating               OptionalNumber `json:"rating"`
	Geometry             *Geometry      `json:"geometry"`
}

// Coordinates returns the lat/lng pointers when the geometry is present.
func (p Place) Coordinates() (lat, lng *float64) {
	if p.Geometry == nil || p.Geometry.Location == nil {
		return nil, nil
	}
	return p.Geometry.Location.Lat.Ptr(), p.Geometry.Location.Lng.Ptr()
}

// TextSearchResponse is one page of text search results.
type TextSearchResponse struct {
	Status        string  `json:"status"`
	Results       []Place `json:"results"`
	NextPageToken string  `json:"next_page_token"`
	ErrorMessage  string  `json:"error_message"`
}

// DetailsResponse is a place details lookup result.
type DetailsResponse struct {
	Status       string `json:"status"`
	Result       Place  `json:"result"`
	ErrorMessage string `json:"error_message"`
}
