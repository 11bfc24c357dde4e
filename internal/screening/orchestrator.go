// Package screening drives thematic screening requests from submission to a
// stored report.
package screening

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/helixir/thematic-screener-service/internal/bigdata"
	"github.com/helixir/thematic-screener-service/internal/domain"
	"github.com/helixir/thematic-screener-service/internal/observability"
	"github.com/helixir/thematic-screener-service/internal/telemetry"
)

// NotConfiguredMessage is logged when no workflow runner is available.
const NotConfiguredMessage = "analysis service is not configured"

// failureWriteTimeout bounds the status writes that record a failed task.
const failureWriteTimeout = 5 * time.Second

// Failure stages used as metric labels.
const (
	stageConfigure = "configure"
	stageResolve   = "resolve"
	stageWorkflow  = "workflow"
	stageStore     = "store"
)

// StatusRecorder is the subset of the status store the orchestrator writes to.
type StatusRecorder interface {
	CreateOrUpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	AppendLog(ctx context.Context, id uuid.UUID, message string) error
	Complete(ctx context.Context, id uuid.UUID, req *domain.ScreenRequest, report domain.ScreenerReport) error
}

// CompanyResolver looks companies up in the knowledge graph.
type CompanyResolver interface {
	GetEntities(ctx context.Context, ids []string) ([]bigdata.Entity, error)
	GetWatchlist(ctx context.Context, id string) (*bigdata.Watchlist, error)
}

// Workflow runs the external thematic screener.
type Workflow interface {
	RunThematicScreener(ctx context.Context, params bigdata.ScreenerParams, progress bigdata.ProgressFunc) (*bigdata.ScreenerResult, error)
}

// EventTracker records best-effort usage events.
type EventTracker interface {
	Track(ctx context.Context, event telemetry.Event)
}

// Dependencies are the collaborators of an Orchestrator. They are built once
// at startup.
type Dependencies struct {
	Store    StatusRecorder
	Resolver CompanyResolver
	// Workflow may be nil, in which case every request fails.
	Workflow Workflow
	// Tracker may be nil.
	Tracker EventTracker
	// Metrics defaults to an unregistered set.
	Metrics *observability.Metrics
	Logger  zerolog.Logger
	// ClientVersion is reported with telemetry events.
	ClientVersion string
	// BaseContext is the parent of every background task. Defaults to context.Background().
	BaseContext context.Context
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// Orchestrator runs one background task per submitted request.
type Orchestrator struct {
	store         StatusRecorder
	resolver      CompanyResolver
	workflow      Workflow
	tracker       EventTracker
	metrics       *observability.Metrics
	logger        zerolog.Logger
	clientVersion string
	baseCtx       context.Context
	now           func() time.Time

	wg sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator from deps.
func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("screening: status store is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("screening: company resolver is required")
	}

	o := &Orchestrator{
		store:         deps.Store,
		resolver:      deps.Resolver,
		workflow:      deps.Workflow,
		tracker:       deps.Tracker,
		metrics:       deps.Metrics,
		logger:        observability.WithComponent(deps.Logger, "orchestrator"),
		clientVersion: deps.ClientVersion,
		baseCtx:       deps.BaseContext,
		now:           deps.Now,
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetricsWithRegistry("screener", prometheus.NewRegistry())
	}
	if o.baseCtx == nil {
		o.baseCtx = context.Background()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	return o, nil
}

// Submit records req as queued and starts its background task. It returns
// as soon as the queued status is stored.
func (o *Orchestrator) Submit(ctx context.Context, req *domain.ScreenRequest) (uuid.UUID, error) {
	if req == nil {
		return uuid.Nil, domain.NewValidationError("request", "request is required")
	}

	id := uuid.New()
	if err := o.store.CreateOrUpdateStatus(ctx, id, domain.StatusQueued); err != nil {
		return uuid.Nil, fmt.Errorf("recording queued status: %w", err)
	}
	o.metrics.RecordScreeningSubmitted()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.Run(o.baseCtx, id, req); err != nil {
			o.logger.Warn().Err(err).Str("request_id", id.String()).Msg("screening failed")
		}
	}()

	return id, nil
}

// Wait blocks until every submitted task has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Run drives request id through the screening workflow. Any failure marks
// the request failed and is returned. Nothing is retried.
func (o *Orchestrator) Run(ctx context.Context, id uuid.UUID, req *domain.ScreenRequest) error {
	start := o.now()
	logger := observability.WithScreeningContext(o.logger, id.String(), req.Theme)

	if err := o.store.CreateOrUpdateStatus(ctx, id, domain.StatusInProgress); err != nil {
		return o.fail(ctx, logger, id, stageStore, start, fmt.Errorf("recording in_progress status: %w", err))
	}
	o.metrics.RecordScreeningStarted()
	logger.Info().Msg("screening started")

	if o.workflow == nil {
		logger.Error().Msg(NotConfiguredMessage)
		writeCtx, cancel := failureContext(ctx)
		defer cancel()
		if err := o.store.AppendLog(writeCtx, id, NotConfiguredMessage); err != nil {
			logger.Warn().Err(err).Msg("failed to append log")
		}
		o.markFailed(writeCtx, logger, id)
		o.metrics.RecordScreeningFailed(stageConfigure, o.now().Sub(start).Seconds())
		return fmt.Errorf("%s: %w", NotConfiguredMessage, domain.ErrServiceUnavailable)
	}

	companies, err := o.resolveCompanies(ctx, req.Companies)
	if err != nil {
		return o.fail(ctx, logger, id, stageResolve, start, err)
	}
	o.metrics.RecordCompaniesResolved(len(companies))
	logger.Info().Int("companies", len(companies)).Msg("companies resolved")

	workflowStart := o.now()
	result, err := o.runWorkflow(ctx, o.screenerParams(req, companies), o.progressSink(ctx, logger, id))
	if err != nil {
		return o.fail(ctx, logger, id, stageWorkflow, start, err)
	}
	workflowEnd := o.now()

	report := BuildReport(result)
	if err := o.store.Complete(ctx, id, req, report); err != nil {
		return o.fail(ctx, logger, id, stageStore, start, fmt.Errorf("storing report: %w", err))
	}

	duration := o.now().Sub(start)
	o.metrics.RecordScreeningCompleted(duration.Seconds())
	logger.Info().
		Int("companies_scored", len(report.ThemeScoring)).
		Int("evidence", len(report.Content)).
		Dur("duration", duration).
		Msg("screening completed")

	o.trackReportGenerated(ctx, id, workflowStart, workflowEnd, len(companies))
	return nil
}

// resolveCompanies resolves the universe to distinct companies. Duplicates
// keep their first position and the values of their last occurrence.
func (o *Orchestrator) resolveCompanies(ctx context.Context, universe domain.Universe) ([]bigdata.Entity, error) {
	var ids []string
	switch universe.Kind() {
	case domain.UniverseEntities:
		ids = universe.EntityIDs
	case domain.UniverseWatchlist:
		var watchlist *bigdata.Watchlist
		err := o.observe("watchlist", func() error {
			var err error
			watchlist, err = o.resolver.GetWatchlist(ctx, universe.WatchlistID)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("fetching watchlist %s: %w", universe.WatchlistID, err)
		}
		ids = watchlist.Items
	default:
		return nil, domain.NewValidationError("companies", "must be a list of entity IDs or a watchlist ID")
	}

	if len(ids) == 0 {
		return nil, domain.ErrNoCompanies
	}

	var entities []bigdata.Entity
	err := o.observe("knowledge_graph", func() error {
		var err error
		entities, err = o.resolver.GetEntities(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolving companies: %w", err)
	}

	companies := dedupCompanies(entities)
	if len(companies) == 0 {
		return nil, domain.ErrNoCompanies
	}
	return companies, nil
}

// dedupCompanies keeps company entities only, one per ID.
func dedupCompanies(entities []bigdata.Entity) []bigdata.Entity {
	index := make(map[string]int, len(entities))
	out := make([]bigdata.Entity, 0, len(entities))
	for _, e := range entities {
		if !e.IsCompany() {
			continue
		}
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

func (o *Orchestrator) screenerParams(req *domain.ScreenRequest, companies []bigdata.Entity) bigdata.ScreenerParams {
	var fiscalYear []int
	if req.FiscalYear != nil {
		fiscalYear = append([]int{}, req.FiscalYear...)
	}
	return bigdata.ScreenerParams{
		LLMModel:        req.LLMModel,
		Theme:           req.Theme,
		Focus:           req.Focus,
		Companies:       companies,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		DocumentType:    req.DocumentType,
		FiscalYear:      fiscalYear,
		RerankThreshold: req.RerankThreshold,
		Frequency:       req.Frequency,
		DocumentLimit:   req.DocumentLimit,
		BatchSize:       req.BatchSize,
	}
}

func (o *Orchestrator) runWorkflow(ctx context.Context, params bigdata.ScreenerParams, sink bigdata.ProgressFunc) (*bigdata.ScreenerResult, error) {
	var result *bigdata.ScreenerResult
	err := o.observe("thematic_screener", func() error {
		var err error
		result, err = o.workflow.RunThematicScreener(ctx, params, sink)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty result", domain.ErrWorkflowFailed)
	}
	return result, nil
}

// progressSink appends each progress message to the request logs before returning.
func (o *Orchestrator) progressSink(ctx context.Context, logger zerolog.Logger, id uuid.UUID) bigdata.ProgressFunc {
	return func(message string) {
		o.metrics.RecordProgressEvent()
		logger.Debug().Str("progress", message).Msg("workflow progress")
		if err := o.store.AppendLog(ctx, id, message); err != nil {
			logger.Warn().Err(err).Msg("failed to append progress log")
		}
	}
}

// observe times a Bigdata call and records its outcome.
func (o *Orchestrator) observe(operation string, call func() error) error {
	start := time.Now()
	err := call()
	o.metrics.RecordBigdataRequest(operation, err, time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) fail(ctx context.Context, logger zerolog.Logger, id uuid.UUID, stage string, start time.Time, err error) error {
	logger.Error().Err(err).Str("stage", stage).Msg("screening failed")

	writeCtx, cancel := failureContext(ctx)
	defer cancel()
	if appendErr := o.store.AppendLog(writeCtx, id, "Workflow failed: "+err.Error()); appendErr != nil {
		logger.Warn().Err(appendErr).Msg("failed to append failure log")
	}
	o.markFailed(writeCtx, logger, id)
	o.metrics.RecordScreeningFailed(stage, o.now().Sub(start).Seconds())
	return err
}

// failureContext detaches ctx from its cancellation so a task stopped by
// shutdown still records its failure, bounded by failureWriteTimeout.
func failureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
}

func (o *Orchestrator) markFailed(ctx context.Context, logger zerolog.Logger, id uuid.UUID) {
	if err := o.store.CreateOrUpdateStatus(ctx, id, domain.StatusFailed); err != nil {
		logger.Error().Err(err).Msg("failed to record failed status")
	}
}

func (o *Orchestrator) trackReportGenerated(ctx context.Context, id uuid.UUID, start, end time.Time, universeSize int) {
	if o.tracker == nil {
		return
	}
	o.tracker.Track(ctx, telemetry.Event{
		Name: telemetry.EventReportGenerated,
		Key:  id.String(),
		Properties: map[string]any{
			"bigdataClientVersion": o.clientVersion,
			"workflowStartDate":    start.Format(time.RFC3339),
			"workflowEndDate":      end.Format(time.RFC3339),
			"watchlistLength":      universeSize,
		},
	})
}
