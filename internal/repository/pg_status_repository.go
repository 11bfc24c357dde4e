package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

// txBeginner is an interface for types that can begin a transaction (e.g., *pgxpool.Pool, *database.DB).
// Used by Complete to wrap the status update and report insert in a transaction
// when the underlying DBTX is a pool rather than an existing transaction.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgreSQL error codes used for constraint violation detection.
const (
	pgUniqueViolation     = "23505" // unique_violation
	pgForeignKeyViolation = "23503" // foreign_key_violation
)

// PgStatusRepository implements StatusRepository using PostgreSQL.
type PgStatusRepository struct {
	db DBTX
}

// Compile-time check that PgStatusRepository implements StatusRepository.
var _ StatusRepository = (*PgStatusRepository)(nil)

// NewPgStatusRepository creates a new PostgreSQL status repository.
func NewPgStatusRepository(db DBTX) *PgStatusRepository {
	return &PgStatusRepository{db: db}
}

// Upsert creates or updates a lifecycle record. Existing logs are kept.
func (r *PgStatusRepository) Upsert(ctx context.Context, id uuid.UUID, status domain.Status, at time.Time) error {
	query := `
		INSERT INTO workflow_status (id, status, last_updated, logs)
		VALUES ($1, $2, $3, '[]'::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			last_updated = EXCLUDED.last_updated`

	if _, err := r.db.Exec(ctx, query, id, string(status), at); err != nil {
		return fmt.Errorf("failed to upsert workflow status: %w", err)
	}
	return nil
}

// AppendLog appends a log line to a lifecycle record.
func (r *PgStatusRepository) AppendLog(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	query := `
		UPDATE workflow_status SET
			logs = logs || jsonb_build_array($2::text),
			last_updated = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, message, at)
	if err != nil {
		return fmt.Errorf("failed to append workflow log: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("workflow status", id.String())
	}
	return nil
}

// Get retrieves a lifecycle record by ID.
func (r *PgStatusRepository) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowStatus, error) {
	query := `
		SELECT id, status, last_updated, logs
		FROM workflow_status
		WHERE id = $1`

	var (
		ws       domain.WorkflowStatus
		status   string
		logsJSON []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&ws.ID, &status, &ws.LastUpdated, &logsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("workflow status", id.String())
		}
		return nil, fmt.Errorf("failed to get workflow status: %w", err)
	}

	ws.Status = domain.Status(status)
	if ws.Logs, err = decodeLogs(logsJSON); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Complete marks the record completed and inserts its report.
//
// If the underlying DBTX supports Begin (i.e., it's a pool, not already a transaction),
// both statements run in an explicit transaction. Otherwise they run within the
// caller's transaction.
func (r *PgStatusRepository) Complete(ctx context.Context, record *domain.ReportRecord, at time.Time) error {
	if record == nil {
		return domain.NewValidationError("record", "report record is required")
	}

	if beginner, ok := r.db.(txBeginner); ok {
		tx, err := beginner.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for complete: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		txRepo := &PgStatusRepository{db: tx}
		if err := txRepo.completeInTx(ctx, record, at); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit complete: %w", err)
		}
		return nil
	}

	return r.completeInTx(ctx, record, at)
}

func (r *PgStatusRepository) completeInTx(ctx context.Context, record *domain.ReportRecord, at time.Time) error {
	updateQuery := `
		UPDATE workflow_status SET
			status = $2,
			last_updated = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, updateQuery, record.ID, string(domain.StatusCompleted), at)
	if err != nil {
		return fmt.Errorf("failed to mark workflow completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("workflow status", record.ID.String())
	}

	companiesJSON, err := json.Marshal(record.Companies)
	if err != nil {
		return fmt.Errorf("failed to marshal companies: %w", err)
	}
	fiscalYearJSON, err := json.Marshal(record.FiscalYear)
	if err != nil {
		return fmt.Errorf("failed to marshal fiscal year: %w", err)
	}
	reportJSON, err := json.Marshal(record.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal screener report: %w", err)
	}

	insertQuery := `
		INSERT INTO screener_reports (
			id, created_at, companies, llm_model, theme, focus,
			start_date, end_date, document_type, fiscal_year,
			rerank_threshold, frequency, document_limit, batch_size,
			screener_report
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15
		)`

	_, err = r.db.Exec(ctx, insertQuery,
		record.ID,
		record.CreatedAt,
		companiesJSON,
		record.LLMModel,
		record.Theme,
		record.Focus,
		parseDate(record.StartDate),
		parseDate(record.EndDate),
		record.DocumentType,
		fiscalYearJSON,
		record.RerankThreshold,
		record.Frequency,
		record.DocumentLimit,
		record.BatchSize,
		reportJSON,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("screener report", record.ID.String())
		}
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("workflow status", record.ID.String())
		}
		return fmt.Errorf("failed to insert screener report: %w", err)
	}
	return nil
}

// GetReport retrieves a lifecycle record and its report, if one was stored.
func (r *PgStatusRepository) GetReport(ctx context.Context, id uuid.UUID) (*domain.StatusReport, error) {
	query := `
		SELECT s.id, s.status, s.last_updated, s.logs, r.screener_report
		FROM workflow_status s
		LEFT JOIN screener_reports r ON r.id = s.id
		WHERE s.id = $1`

	var (
		sr         domain.StatusReport
		status     string
		logsJSON   []byte
		reportJSON []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&sr.ID, &status, &sr.LastUpdated, &logsJSON, &reportJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("workflow status", id.String())
		}
		return nil, fmt.Errorf("failed to get screener report: %w", err)
	}

	sr.Status = domain.Status(status)
	if sr.Logs, err = decodeLogs(logsJSON); err != nil {
		return nil, err
	}
	if len(reportJSON) > 0 {
		var report domain.ScreenerReport
		if err := json.Unmarshal(reportJSON, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal screener report: %w", err)
		}
		sr.Report = &report
	}
	return &sr, nil
}

func decodeLogs(data []byte) ([]string, error) {
	logs := []string{}
	if len(data) == 0 {
		return logs, nil
	}
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow logs: %w", err)
	}
	if logs == nil {
		logs = []string{}
	}
	return logs, nil
}

// parseDate converts a YYYY-MM-DD string for a date column. Unparseable values are stored as NULL.
func parseDate(s string) *time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// isPgForeignKeyViolation checks if the error is a PostgreSQL foreign key violation.
func isPgForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	return false
}
