package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/thematic-screener-service/internal/domain"
	"github.com/helixir/thematic-screener-service/internal/observability"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// Error messages written by the handlers.
const (
	msgRequestNotFound  = "request not found"
	msgDemoMode         = "new analyses are disabled in demo mode"
	msgValidationFailed = "validation failed"
)

// submitScreening handles POST /thematic-screener.
// It validates the request and schedules it in the background.
func (s *Server) submitScreening(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DemoMode {
		writeError(w, http.StatusForbidden, msgDemoMode)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	req := s.newScreenRequest()
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if req.FiscalYear == nil && !hasDocumentType(body) {
		req.FiscalYear = domain.DefaultFiscalYears(time.Now().UTC())
	}

	if err := s.validator.Validate(req); err != nil {
		writeDomainError(w, err)
		return
	}

	prepareForWorkflow(req, time.Now().UTC())

	id, err := s.submitter.Submit(r.Context(), req)
	if err != nil {
		s.logger.Error().Err(err).
			Str("correlation_id", observability.CorrelationIDFromContext(r.Context())).
			Msg("failed to submit screening")
		writeDomainError(w, err)
		return
	}

	logger := observability.WithScreeningContext(s.logger, id.String(), req.Theme)
	logger.Info().Msg("screening queued")

	writeJSON(w, http.StatusAccepted, submitResponse{
		RequestID: id.String(),
		Status:    domain.StatusQueued,
	})
}

// newScreenRequest returns a request carrying the configured defaults.
func (s *Server) newScreenRequest() *domain.ScreenRequest {
	req := domain.NewScreenRequest()
	if s.cfg.DefaultLLMModel != "" {
		req.LLMModel = s.cfg.DefaultLLMModel
	}
	if s.cfg.DefaultDocumentLimit > 0 {
		req.DocumentLimit = s.cfg.DefaultDocumentLimit
	}
	if s.cfg.DefaultBatchSize > 0 {
		req.BatchSize = s.cfg.DefaultBatchSize
	}
	return req
}

// prepareForWorkflow rewrites a validated request into the form the screener
// workflow accepts. Only transcripts are searched, so a request validated
// against another corpus without a fiscal year gets the default window.
// Frequencies are sent as codes.
func prepareForWorkflow(req *domain.ScreenRequest, now time.Time) {
	req.DocumentType = string(domain.DocumentTypeTranscripts)
	if len(req.FiscalYear) == 0 {
		req.FiscalYear = domain.DefaultFiscalYears(now)
	}
	if freq, ok := domain.ParseFrequency(req.Frequency); ok {
		req.Frequency = string(freq)
	}
}

// hasDocumentType reports whether the client sent a document_type field.
func hasDocumentType(body []byte) bool {
	var fields struct {
		DocumentType *string `json:"document_type"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	return fields.DocumentType != nil
}

// getStatus handles GET /status/{requestID}.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(w, chi.URLParam(r, "requestID"))
	if !ok {
		return
	}

	sr, err := s.statuses.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgRequestNotFound)
			return
		}
		s.logger.Error().Err(err).Str("request_id", id.String()).Msg("failed to read status")
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newStatusResponse(sr))
}

// listExamples handles GET /examples.
func (s *Server) listExamples(w http.ResponseWriter, r *http.Request) {
	resp := listExamplesResponse{Examples: []exampleSummary{}}
	if s.examples != nil {
		for _, ex := range s.examples.List() {
			resp.Examples = append(resp.Examples, exampleSummary{
				Name:  ex.Name,
				Theme: ex.Request.Theme,
				Focus: ex.Request.Focus,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// getExample handles GET /examples/{name}.
func (s *Server) getExample(w http.ResponseWriter, r *http.Request) {
	if s.examples == nil {
		writeError(w, http.StatusNotFound, "example not found")
		return
	}

	ex, err := s.examples.Get(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "example not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

// writeDomainError maps domain errors to HTTP status codes and writes a JSON error response.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var rve *domain.RequestValidationError
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &rve):
			writeJSON(w, http.StatusUnprocessableEntity, validationErrorResponse{
				Error:   msgValidationFailed,
				Details: rve.Violations,
			})
		case errors.As(err, &ve):
			writeError(w, http.StatusBadRequest, ve.Error())
		default:
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseRequestID parses a request ID path parameter. A malformed ID cannot
// name a known request, so it is reported as not found.
func parseRequestID(w http.ResponseWriter, s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusNotFound, msgRequestNotFound)
		return uuid.Nil, false
	}
	return id, true
}
