package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/fikircreative/prospector/internal/lead"
)

const maxBodyBytes = 1 << 20

type searchPayload struct {
	Keyword string          `json:"keyword"`
	City    string          `json:"city"`
	Country string          `json:"country"`
	Pages   json.RawMessage `json:"pages"`
	Enrich  *bool           `json:"enrich"`
}

// decodeSearchRequest parses and validates a search body. The returned error
// is a *lead.ValidationErrors when the input is rejected.
func decodeSearchRequest(r *http.Request) (lead.SearchRequest, error) {
	var payload searchPayload
	if verr := decodeBody(r, &payload); verr != nil {
		return lead.SearchRequest{}, verr
	}
	req := lead.SearchRequest{
		Keyword: strings.TrimSpace(payload.Keyword),
		City:    strings.TrimSpace(payload.City),
		Country: strings.TrimSpace(payload.Country),
		Enrich:  payload.Enrich != nil && *payload.Enrich,
	}

	verrs := lead.NewValidationErrors()
	pages, msg := parsePages(payload.Pages)
	if msg != "" {
		verrs.AddField("pages", msg)
		// keep the struct check from reporting pages twice
		pages = lead.MinPages
	}
	req.Pages = pages

	if err := lead.Validate(req); err != nil {
		var fieldErrs *lead.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return lead.SearchRequest{}, err
		}
		for field, msgs := range fieldErrs.FieldErrors {
			for _, m := range msgs {
				verrs.AddField(field, m)
			}
		}
	}
	if !verrs.Empty() {
		return lead.SearchRequest{}, verrs
	}
	return req, nil
}

// parsePages accepts a JSON number or numeric string. Absent or null means
// one page.
func parsePages(raw json.RawMessage) (int, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return lead.MinPages, ""
	}
	var f float64
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, "must be a number"
		}
		s = strings.TrimSpace(s)
		if s == "" {
			f = 0
			break
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, "must be a number"
		}
		f = v
	default:
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, "must be a number"
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, "must be an integer"
	}
	if f < lead.MinPages {
		return 0, "must be greater than or equal to 1"
	}
	if f > lead.MaxPages {
		return 0, "must be less than or equal to 3"
	}
	return int(f), ""
}

// decodeItems parses and validates an {items: Lead[]} body.
func decodeItems(r *http.Request) (lead.BulkSaveRequest, error) {
	var req lead.BulkSaveRequest
	if verr := decodeBody(r, &req); verr != nil {
		return lead.BulkSaveRequest{}, verr
	}
	if err := lead.Validate(req); err != nil {
		return lead.BulkSaveRequest{}, err
	}
	return req, nil
}

// decodeBody reads a JSON object into dst. Syntax and type errors are
// reported as validation errors so the client sees the same shape.
func decodeBody(r *http.Request, dst any) *lead.ValidationErrors {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		verrs := lead.NewValidationErrors()
		verrs.AddForm("could not read request body")
		return verrs
	}
	if len(body) > maxBodyBytes {
		verrs := lead.NewValidationErrors()
		verrs.AddForm("request body too large")
		return verrs
	}
	if err := json.Unmarshal(body, dst); err != nil {
		verrs := lead.NewValidationErrors()
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			verrs.AddField(typeErr.Field, "must be a "+jsonTypeName(typeErr.Type.Kind().String()))
			return verrs
		}
		verrs.AddForm("invalid JSON body")
		return verrs
	}
	return nil
}

func jsonTypeName(kind string) string {
	switch kind {
	case "bool":
		return "boolean"
	case "float32", "float64", "int", "int64", "int32":
		return "number"
	case "slice":
		return "array"
	case "struct", "map":
		return "object"
	case "ptr":
		return "value of the expected type"
	default:
		return kind
	}
}
