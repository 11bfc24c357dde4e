package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/thematic-screener-service/internal/bigdata"
	"github.com/helixir/thematic-screener-service/internal/database"
	"github.com/helixir/thematic-screener-service/internal/domain"
	"github.com/helixir/thematic-screener-service/internal/repository"
	"github.com/helixir/thematic-screener-service/internal/screening"
	"github.com/helixir/thematic-screener-service/internal/status"
	"github.com/helixir/thematic-screener-service/internal/validation"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockSubmitter struct {
	mu       sync.Mutex
	submitFn func(ctx context.Context, req *domain.ScreenRequest) (uuid.UUID, error)
	received []*domain.ScreenRequest
}

func (m *mockSubmitter) Submit(ctx context.Context, req *domain.ScreenRequest) (uuid.UUID, error) {
	m.mu.Lock()
	m.received = append(m.received, req)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return uuid.New(), nil
}

func (m *mockSubmitter) last() *domain.ScreenRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return m.received[len(m.received)-1]
}

type mockStatusReader struct {
	getReportFn func(ctx context.Context, id uuid.UUID) (*domain.StatusReport, error)
}

func (m *mockStatusReader) GetReport(ctx context.Context, id uuid.UUID) (*domain.StatusReport, error) {
	if m.getReportFn != nil {
		return m.getReportFn(ctx, id)
	}
	return nil, domain.NewNotFoundError("workflow status", id.String())
}

type mockCatalog struct {
	examples []domain.Example
}

func (m *mockCatalog) List() []domain.Example { return m.examples }

func (m *mockCatalog) Get(name string) (*domain.Example, error) {
	for i := range m.examples {
		if m.examples[i].Name == name {
			return &m.examples[i], nil
		}
	}
	return nil, domain.NewNotFoundError("example", name)
}

type mockHealth struct {
	health database.HealthStatus
}

func (m *mockHealth) Health(_ context.Context) database.HealthStatus { return m.health }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(cfg Config, deps Dependencies) *Server {
	if deps.Submitter == nil {
		deps.Submitter = &mockSubmitter{}
	}
	if deps.Statuses == nil {
		deps.Statuses = &mockStatusReader{}
	}
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	deps.Logger = zerolog.Nop()
	if cfg.Version == "" {
		cfg.Version = "1.2.3"
	}
	return NewServer(cfg, deps)
}

func doRequest(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

const minimalRequestBody = `{"theme":"X","companies":["E1","E2"],"start_date":"2025-01-01","end_date":"2025-01-31","frequency":"M"}`

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthHandler(t *testing.T) {
	srv := newTestServer(Config{Version: "2.0.0", AccessToken: "secret"}, Dependencies{})

	rr := doRequest(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	body := decodeBody(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2.0.0", body["version"])
}

func TestReadinessHandler_MemoryStore(t *testing.T) {
	srv := newTestServer(Config{}, Dependencies{})

	rr := doRequest(t, srv, http.MethodGet, "/ready", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "memory", body["database"])
}

func TestReadinessHandler_Database(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db := &mockHealth{health: database.HealthStatus{Status: database.StatusHealthy}}
		srv := newTestServer(Config{}, Dependencies{DB: db})

		rr := doRequest(t, srv, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "healthy", decodeBody(t, rr)["database"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		db := &mockHealth{health: database.HealthStatus{Status: database.StatusUnhealthy, Error: "timeout"}}
		srv := newTestServer(Config{}, Dependencies{DB: db})

		rr := doRequest(t, srv, http.MethodGet, "/ready", nil)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "not_ready", body["status"])
		assert.Equal(t, "timeout", body["error"])
	})
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

func TestSubmitScreening_Accepted(t *testing.T) {
	id := uuid.New()
	submitter := &mockSubmitter{
		submitFn: func(_ context.Context, _ *domain.ScreenRequest) (uuid.UUID, error) { return id, nil },
	}
	srv := newTestServer(Config{}, Dependencies{Submitter: submitter})

	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(minimalRequestBody))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	body := decodeBody(t, rr)
	assert.Equal(t, id.String(), body["request_id"])
	assert.Equal(t, "queued", body["status"])

	req := submitter.last()
	require.NotNil(t, req)
	assert.Equal(t, "X", req.Theme)
	assert.Equal(t, []string{"E1", "E2"}, req.Companies.EntityIDs)
	assert.Equal(t, domain.DefaultLLMModel, req.LLMModel)
	assert.Equal(t, domain.DefaultDocumentLimit, req.DocumentLimit)
	assert.Equal(t, domain.DefaultBatchSize, req.BatchSize)

	year := time.Now().UTC().Year()
	assert.Equal(t, domain.FiscalYears{year - 1, year, year + 1}, req.FiscalYear)
}

func TestSubmitScreening_ForcesTranscripts(t *testing.T) {
	submitter := &mockSubmitter{}
	srv := newTestServer(Config{}, Dependencies{Submitter: submitter})

	body := `{"theme":"X","companies":"wl-1","start_date":"2025-01-01","end_date":"2025-12-31",
		"document_type":"filings","fiscal_year":2025}`
	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(body))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	req := submitter.last()
	require.NotNil(t, req)
	assert.Equal(t, string(domain.DocumentTypeTranscripts), req.DocumentType)
	assert.Equal(t, "wl-1", req.Companies.WatchlistID)
	assert.Equal(t, domain.FiscalYears{2025}, req.FiscalYear)
}

func TestSubmitScreening_LogsQueuedRequest(t *testing.T) {
	id := uuid.New()
	var logs bytes.Buffer
	srv := NewServer(Config{Version: "1.2.3"}, Dependencies{
		Submitter: &mockSubmitter{
			submitFn: func(_ context.Context, _ *domain.ScreenRequest) (uuid.UUID, error) { return id, nil },
		},
		Statuses:  &mockStatusReader{},
		Validator: validation.New(),
		Logger:    zerolog.New(&logs),
	})

	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(minimalRequestBody))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	assert.Contains(t, logs.String(), `"message":"screening queued"`)
	assert.Contains(t, logs.String(), `"request_id":"`+id.String()+`"`)
	assert.Contains(t, logs.String(), `"theme":"X"`)
}

func TestSubmitScreening_NonTranscriptTypeWithoutFiscalYear(t *testing.T) {
	submitter := &mockSubmitter{}
	srv := newTestServer(Config{}, Dependencies{Submitter: submitter})

	body := `{"theme":"X","companies":["E1"],"start_date":"2025-01-01","end_date":"2025-12-31","document_type":"NEWS"}`
	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(body))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	req := submitter.last()
	require.NotNil(t, req)
	assert.Equal(t, string(domain.DocumentTypeTranscripts), req.DocumentType)
	assert.Equal(t, domain.DefaultFiscalYears(time.Now().UTC()), req.FiscalYear,
		"a transcripts request must carry a fiscal year")
}

func TestSubmitScreening_NormalizesFrequency(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "name", in: "monthly", want: "M"},
		{name: "lower case code", in: "3m", want: "3M"},
		{name: "code", in: "Y", want: "Y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &mockSubmitter{}
			srv := newTestServer(Config{}, Dependencies{Submitter: submitter})

			body := `{"theme":"X","companies":["E1"],"start_date":"2025-01-01","end_date":"2025-12-31","frequency":"` + tt.in + `"}`
			rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(body))

			require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
			require.NotNil(t, submitter.last())
			assert.Equal(t, tt.want, submitter.last().Frequency)
		})
	}
}

func TestPrepareForWorkflow(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	req := &domain.ScreenRequest{DocumentType: "FILINGS", Frequency: "weekly"}
	prepareForWorkflow(req, now)
	assert.Equal(t, "TRANSCRIPTS", req.DocumentType)
	assert.Equal(t, domain.FiscalYears{2024, 2025, 2026}, req.FiscalYear)
	assert.Equal(t, "W", req.Frequency)

	req = &domain.ScreenRequest{FiscalYear: domain.FiscalYears{2023}, Frequency: "M"}
	prepareForWorkflow(req, now)
	assert.Equal(t, domain.FiscalYears{2023}, req.FiscalYear)
	assert.Equal(t, "M", req.Frequency)
}

func TestSubmitScreening_ConfiguredDefaults(t *testing.T) {
	submitter := &mockSubmitter{}
	srv := newTestServer(Config{
		DefaultLLMModel:      "openai::gpt-4o",
		DefaultDocumentLimit: 20,
		DefaultBatchSize:     5,
	}, Dependencies{Submitter: submitter})

	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(minimalRequestBody))

	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	req := submitter.last()
	assert.Equal(t, "openai::gpt-4o", req.LLMModel)
	assert.Equal(t, 20, req.DocumentLimit)
	assert.Equal(t, 5, req.BatchSize)
}

func TestSubmitScreening_DateOrdering(t *testing.T) {
	submitter := &mockSubmitter{}
	srv := newTestServer(Config{}, Dependencies{Submitter: submitter})

	body := `{"theme":"X","companies":["E1"],"start_date":"2025-02-01","end_date":"2025-01-01"}`
	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(body))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp validationErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	require.NotEmpty(t, resp.Details)

	found := false
	for _, d := range resp.Details {
		if d.Field == "start_date" && strings.Contains(d.Message, "must be on or before end_date") {
			found = true
		}
	}
	assert.True(t, found, "expected a date ordering violation, got %+v", resp.Details)
	assert.Nil(t, submitter.last(), "invalid requests must not be submitted")
}

func TestSubmitScreening_ExplicitTypeRequiresFiscalYear(t *testing.T) {
	srv := newTestServer(Config{}, Dependencies{})

	body := `{"theme":"X","companies":["E1"],"start_date":"2025-01-01","end_date":"2025-12-31","document_type":"TRANSCRIPTS"}`
	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(body))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "fiscal_year must be specified")
}

func TestSubmitScreening_InvalidJSON(t *testing.T) {
	srv := newTestServer(Config{}, Dependencies{})

	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(`{"theme":`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid JSON request body", decodeBody(t, rr)["error"])
}

func TestSubmitScreening_DemoMode(t *testing.T) {
	submitter := &mockSubmitter{}
	srv := newTestServer(Config{DemoMode: true}, Dependencies{Submitter: submitter})

	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(minimalRequestBody))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "new analyses are disabled in demo mode", decodeBody(t, rr)["error"])
	assert.Nil(t, submitter.last())
}

func TestSubmitScreening_SubmitErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"store unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &mockSubmitter{
				submitFn: func(_ context.Context, _ *domain.ScreenRequest) (uuid.UUID, error) {
					return uuid.Nil, tt.err
				},
			}
			srv := newTestServer(Config{}, Dependencies{Submitter: submitter})

			rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(minimalRequestBody))

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.NotContains(t, rr.Body.String(), "disk on fire")
		})
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func TestGetStatus_Completed(t *testing.T) {
	id := uuid.New()
	updated := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	statuses := &mockStatusReader{
		getReportFn: func(_ context.Context, got uuid.UUID) (*domain.StatusReport, error) {
			assert.Equal(t, id, got)
			return &domain.StatusReport{
				ID:          id,
				Status:      domain.StatusCompleted,
				LastUpdated: updated,
				Logs:        []string{"resolving", "done"},
				Report: &domain.ScreenerReport{
					ThemeTaxonomy: domain.ThemeTaxonomy{Label: "Root", Children: []domain.ThemeTaxonomy{}},
					ThemeScoring: map[string]domain.CompanyScoring{
						"Acme": {Industry: "Tech", CompositeScore: 7, Themes: map[string]int{"Costs": 7}},
					},
					Content: []domain.LabeledChunk{},
				},
			}, nil
		},
	}
	srv := newTestServer(Config{}, Dependencies{Statuses: statuses})

	rr := doRequest(t, srv, http.MethodGet, "/status/"+id.String(), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, id.String(), resp.RequestID)
	assert.Equal(t, domain.StatusCompleted, resp.Status)
	assert.True(t, updated.Equal(resp.LastUpdated))
	assert.Equal(t, []string{"resolving", "done"}, resp.Logs)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 7, resp.Report.ThemeScoring["Acme"].Themes["Costs"])
}

func TestGetStatus_PendingHasNullReport(t *testing.T) {
	id := uuid.New()
	statuses := &mockStatusReader{
		getReportFn: func(_ context.Context, _ uuid.UUID) (*domain.StatusReport, error) {
			return &domain.StatusReport{ID: id, Status: domain.StatusQueued, LastUpdated: time.Now()}, nil
		},
	}
	srv := newTestServer(Config{}, Dependencies{Statuses: statuses})

	rr := doRequest(t, srv, http.MethodGet, "/status/"+id.String(), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, []interface{}{}, body["logs"])
	assert.Contains(t, body, "report")
	assert.Nil(t, body["report"])
}

func TestGetStatus_NotFound(t *testing.T) {
	srv := newTestServer(Config{}, Dependencies{})

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		t.Run(id, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodGet, "/status/"+id, nil)

			assert.Equal(t, http.StatusNotFound, rr.Code)
			assert.Equal(t, "request not found", decodeBody(t, rr)["error"])
		})
	}
}

func TestGetStatus_StoreError(t *testing.T) {
	statuses := &mockStatusReader{
		getReportFn: func(_ context.Context, _ uuid.UUID) (*domain.StatusReport, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	srv := newTestServer(Config{}, Dependencies{Statuses: statuses})

	rr := doRequest(t, srv, http.MethodGet, "/status/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection reset")
}

// ---------------------------------------------------------------------------
// Submit then poll, through the real orchestrator and store
// ---------------------------------------------------------------------------

type blockingResolver struct{}

func (blockingResolver) GetEntities(_ context.Context, ids []string) ([]bigdata.Entity, error) {
	out := make([]bigdata.Entity, len(ids))
	for i, id := range ids {
		out[i] = bigdata.Entity{ID: id, Name: "Company " + id, EntityType: bigdata.EntityTypeCompany}
	}
	return out, nil
}

func (blockingResolver) GetWatchlist(_ context.Context, id string) (*bigdata.Watchlist, error) {
	return nil, domain.NewNotFoundError("watchlist", id)
}

type blockingWorkflow struct {
	release chan struct{}
}

func (w *blockingWorkflow) RunThematicScreener(ctx context.Context, _ bigdata.ScreenerParams, progress bigdata.ProgressFunc) (*bigdata.ScreenerResult, error) {
	progress("Generating thematic taxonomy")
	select {
	case <-w.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &bigdata.ScreenerResult{}, nil
}

func TestSubmitThenPoll(t *testing.T) {
	store := status.NewStore(repository.NewMemoryStatusRepository())
	workflow := &blockingWorkflow{release: make(chan struct{})}
	orch, err := screening.NewOrchestrator(screening.Dependencies{
		Store:    store,
		Resolver: blockingResolver{},
		Workflow: workflow,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	srv := newTestServer(Config{}, Dependencies{Submitter: orch, Statuses: store})

	rr := doRequest(t, srv, http.MethodPost, "/thematic-screener", []byte(minimalRequestBody))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	id := decodeBody(t, rr)["request_id"].(string)

	rr = doRequest(t, srv, http.MethodGet, "/status/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, []interface{}{"queued", "in_progress"}, body["status"])
	assert.Nil(t, body["report"])

	close(workflow.release)
	orch.Wait()

	rr = doRequest(t, srv, http.MethodGet, "/status/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, "completed", body["status"])
	assert.Contains(t, body["logs"], "Generating thematic taxonomy")
	assert.NotNil(t, body["report"])
}

// ---------------------------------------------------------------------------
// Examples
// ---------------------------------------------------------------------------

func testCatalog() *mockCatalog {
	return &mockCatalog{examples: []domain.Example{{
		Name:    "supply-chain",
		Request: domain.ScreenRequest{Theme: "Supply Chain Reshaping", Focus: "nearshoring"},
		Report: domain.ScreenerReport{
			ThemeScoring: map[string]domain.CompanyScoring{"Apple Inc.": {CompositeScore: 9}},
			Content:      []domain.LabeledChunk{},
		},
	}}}
}

func TestListExamples(t *testing.T) {
	srv := newTestServer(Config{}, Dependencies{Examples: testCatalog()})

	rr := doRequest(t, srv, http.MethodGet, "/examples", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp listExamplesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Examples, 1)
	assert.Equal(t, "supply-chain", resp.Examples[0].Name)
	assert.Equal(t, "Supply Chain Reshaping", resp.Examples[0].Theme)
}

func TestListExamples_NoCatalog(t *testing.T) {
	srv := newTestServer(Config{}, Dependencies{})

	rr := doRequest(t, srv, http.MethodGet, "/examples", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"examples":[]}`, rr.Body.String())
}

func TestGetExample(t *testing.T) {
	srv := newTestServer(Config{DemoMode: true}, Dependencies{Examples: testCatalog()})

	t.Run("found", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodGet, "/examples/supply-chain", nil)

		require.Equal(t, http.StatusOK, rr.Code)
		var ex domain.Example
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ex))
		assert.Equal(t, 9, ex.Report.ThemeScoring["Apple Inc."].CompositeScore)
	})

	t.Run("unknown", func(t *testing.T) {
		rr := doRequest(t, srv, http.MethodGet, "/examples/nope", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "example not found", decodeBody(t, rr)["error"])
	})
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"not found", domain.NewNotFoundError("workflow status", "x"), http.StatusNotFound, "resource not found"},
		{"field error", domain.NewValidationError("request", "request is required"), http.StatusBadRequest, "request is required"},
		{"bare invalid input", domain.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict, "resource already exists"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "rate limited"},
		{"unavailable", domain.ErrServiceUnavailable, http.StatusServiceUnavailable, "service unavailable"},
		{"internal", errors.New("pq: password authentication failed for user admin"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tt.err)

			assert.Equal(t, tt.wantCode, rr.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.wantMsg)
			assert.NotContains(t, resp.Error, "password")
		})
	}

	t.Run("request validation error", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeDomainError(rr, &domain.RequestValidationError{Violations: []domain.ValidationError{
			{Field: "theme", Message: "theme is required"},
			{Field: "end_date", Message: "end_date \"x\" must use the YYYY-MM-DD format"},
		}})

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		var resp validationErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "validation failed", resp.Error)
		assert.Len(t, resp.Details, 2)
	})

	t.Run("nil writes nothing", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeDomainError(rr, nil)
		assert.Zero(t, rr.Body.Len())
	})
}
