package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// MemoryStatusRepository implements StatusRepository in process memory.
// State is lost on restart. It is safe for concurrent use.
type MemoryStatusRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.WorkflowStatus
	reports map[uuid.UUID][]byte
}

// Compile-time check that MemoryStatusRepository implements StatusRepository.
var _ StatusRepository = (*MemoryStatusRepository)(nil)

// NewMemoryStatusRepository creates an empty in-memory repository.
func NewMemoryStatusRepository() *MemoryStatusRepository {
	return &MemoryStatusRepository{
		records: make(map[uuid.UUID]*domain.WorkflowStatus),
		reports: make(map[uuid.UUID][]byte),
	}
}

// Upsert creates or updates a lifecycle record. Existing logs are kept.
func (r *MemoryStatusRepository) Upsert(_ context.Context, id uuid.UUID, status domain.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		r.records[id] = &domain.WorkflowStatus{ID: id, Status: status, LastUpdated: at, Logs: []string{}}
		return nil
	}
	rec.Status = status
	rec.LastUpdated = at
	return nil
}

// AppendLog appends a log line to a lifecycle record.
func (r *MemoryStatusRepository) AppendLog(_ context.Context, id uuid.UUID, message string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.NewNotFoundError("workflow status", id.String())
	}
	rec.Logs = append(rec.Logs, message)
	rec.LastUpdated = at
	return nil
}

// Get returns a copy of the lifecycle record.
func (r *MemoryStatusRepository) Get(_ context.Context, id uuid.UUID) (*domain.WorkflowStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, domain.NewNotFoundError("workflow status", id.String())
	}
	return copyStatus(rec), nil
}

// Complete marks the record completed and stores its report.
// The report is kept serialized so callers never share it with the repository.
func (r *MemoryStatusRepository) Complete(_ context.Context, record *domain.ReportRecord, at time.Time) error {
	if record == nil {
		return domain.NewValidationError("record", "report record is required")
	}

	reportJSON, err := json.Marshal(record.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal screener report: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[record.ID]
	if !ok {
		return domain.NewNotFoundError("workflow status", record.ID.String())
	}
	if _, exists := r.reports[record.ID]; exists {
		return domain.NewAlreadyExistsError("screener report", record.ID.String())
	}

	rec.Status = domain.StatusCompleted
	rec.LastUpdated = at
	r.reports[record.ID] = reportJSON
	return nil
}

// GetReport returns the lifecycle record and its report, if one was stored.
func (r *MemoryStatusRepository) GetReport(_ context.Context, id uuid.UUID) (*domain.StatusReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, domain.NewNotFoundError("workflow status", id.String())
	}

	ws := copyStatus(rec)
	sr := &domain.StatusReport{
		ID:          ws.ID,
		Status:      ws.Status,
		LastUpdated: ws.LastUpdated,
		Logs:        ws.Logs,
	}
	if reportJSON, ok := r.reports[id]; ok {
		var report domain.ScreenerReport
		if err := json.Unmarshal(reportJSON, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal screener report: %w", err)
		}
		sr.Report = &report
	}
	return sr, nil
}

func copyStatus(rec *domain.WorkflowStatus) *domain.WorkflowStatus {
	logs := make([]string, len(rec.Logs))
	copy(logs, rec.Logs)
	return &domain.WorkflowStatus{
		ID:          rec.ID,
		Status:      rec.Status,
		LastUpdated: rec.LastUpdated,
		Logs:        logs,
	}
}
