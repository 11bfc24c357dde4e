package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// StatusRepository persists screening lifecycle records and their reports.
type StatusRepository interface {
	// Upsert creates the record with no logs, or updates its status and timestamp.
	Upsert(ctx context.Context, id uuid.UUID, status domain.Status, at time.Time) error

	// AppendLog appends message to the record's logs and bumps its timestamp.
	// Returns domain.ErrNotFound if the record does not exist.
	AppendLog(ctx context.Context, id uuid.UUID, message string, at time.Time) error

	// Get retrieves the lifecycle record.
	// Returns domain.ErrNotFound if the record does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowStatus, error)

	// Complete marks the record completed and stores the report in one atomic step.
	// Returns domain.ErrNotFound if the record does not exist and
	// domain.ErrAlreadyExists if a report was already stored.
	Complete(ctx context.Context, record *domain.ReportRecord, at time.Time) error

	// GetReport retrieves the lifecycle record together with its report, if any.
	// Returns domain.ErrNotFound if the record does not exist.
	GetReport(ctx context.Context, id uuid.UUID) (*domain.StatusReport, error)
}
