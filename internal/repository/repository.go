// Package repository provides data access interfaces and implementations
// for the Thematic Screener Service.
//
// # Overview
//
// StatusRepository persists the lifecycle record of every screening request
// (status, last update time, ordered log lines) and the report produced when a
// request completes. Two implementations exist:
//
//   - PgStatusRepository: PostgreSQL tables workflow_status and screener_reports
//   - MemoryStatusRepository: process memory, used in demo mode and tests
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package.
// Database errors are wrapped with context using fmt.Errorf with %w verb.
// Common errors include:
//
//   - domain.ErrNotFound: Request ID does not exist
//   - domain.ErrAlreadyExists: A report was already stored for the request
//   - domain.ErrInvalidInput: Invalid parameters provided
//
// # Transactions
//
// Use the DBTX interface to support both pool and transaction contexts.
// Complete opens its own transaction when given a pool.
//
// # Usage Pattern
//
//	db, _ := database.New(ctx, cfg, logger)
//	statusRepo := repository.NewPgStatusRepository(db)
package repository

import (
	"github.com/helixir/thematic-screener-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
//
//	tx, _ := db.Begin(ctx)
//	txRepo := repository.NewPgStatusRepository(tx)
//	err := txRepo.AppendLog(ctx, id, "Resolving companies", time.Now())
type DBTX = database.DBTX
