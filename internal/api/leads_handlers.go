package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/fikircreative/prospector/internal/export"
	"github.com/fikircreative/prospector/internal/lead"
	"github.com/fikircreative/prospector/internal/places"
	"github.com/fikircreative/prospector/internal/search"
	"github.com/fikircreative/prospector/internal/telemetry"
)

// Saved-lead listing bounds.
const (
	DefaultListLimit = 200
	MaxListLimit     = 500
)

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (s *Server) searchPlaces(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	req, err := decodeSearchRequest(r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}

	leads, err := s.search.Search(r.Context(), req)
	if err != nil {
		var upstream *places.UpstreamError
		switch {
		case errors.Is(err, search.ErrMissingAPIKey):
			writeError(w, http.StatusBadRequest, "places API key is not configured")
		case errors.As(err, &upstream):
			s.logger.Warn("places API failure",
				zap.Int("http_status", upstream.StatusCode),
				zap.String("status", upstream.Status),
				zap.String("request_id", requestIDFromContext(r.Context())))
			writeErrorDetails(w, http.StatusBadGateway, upstream.Message(), upstream.Body)
		default:
			s.logger.Error("search failed", zap.Error(err),
				zap.String("request_id", requestIDFromContext(r.Context())))
			writeError(w, http.StatusInternalServerError, "search failed")
		}
		return
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	writeJSON(w, http.StatusOK, itemsResponse[lead.Lead]{Items: leads})
}

func (s *Server) bulkSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.authorize(w, r)
	if !ok {
		return
	}
	req, err := decodeItems(r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}

	inserted, err := s.leads.InsertMany(r.Context(), req.Items)
	if err != nil {
		s.logger.Error("bulk save failed", zap.Error(err),
			zap.Int("items", len(req.Items)),
			zap.String("request_id", requestIDFromContext(r.Context())))
		writeError(w, http.StatusInternalServerError, "failed to save leads")
		return
	}
	telemetry.ObserveLeadsSaved(inserted, int64(len(req.Items)))
	s.logger.Info("leads saved",
		zap.Int64("inserted", inserted),
		zap.Int("submitted", len(req.Items)),
		zap.String("email", sess.Email))

	if inserted > 0 && s.events != nil {
		ev := lead.NewSavedEvent(req.Items, inserted, sess.Email, s.clock.Now())
		if _, err := s.events.Publish(r.Context(), lead.SavedTopic, ev); err != nil {
			s.logger.Warn("publish leads saved event", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, countResponse{Count: inserted})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		verrs := lead.NewValidationErrors()
		verrs.AddField("limit", err.Error())
		s.writeRequestError(w, verrs)
		return
	}
	leads, err := s.leads.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse[lead.StoredLead]{Items: leads})
}

func (s *Server) exportItems(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	req, err := decodeItems(r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}
	s.writeCSV(w, req.Items)
}

func (s *Server) exportSaved(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	stored, err := s.leads.ListRecent(r.Context(), MaxListLimit)
	if err != nil {
		s.logger.Error("export leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to export leads")
		return
	}
	leads := make([]lead.Lead, len(stored))
	for i, l := range stored {
		leads[i] = l.Lead
	}
	s.writeCSV(w, leads)
}

func (s *Server) writeCSV(w http.ResponseWriter, leads []lead.Lead) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, leads); err != nil {
		s.logger.Error("render csv", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render CSV")
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(s.clock.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("write csv response", zap.Error(err))
	}
}

func (s *Server) writeRequestError(w http.ResponseWriter, err error) {
	var verrs *lead.ValidationErrors
	if errors.As(err, &verrs) {
		writeErrorDetails(w, http.StatusBadRequest, "Invalid request", verrs)
		return
	}
	s.logger.Error("request validation failed unexpectedly", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if n < 1 || n > MaxListLimit {
		return 0, errors.New("must be between 1 and " + strconv.Itoa(MaxListLimit))
	}
	return n, nil
}
