package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/thematic-screener-service/internal/domain"
)

func TestMemoryStatusRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStatusRepository()
	id := uuid.New()
	t0 := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, id, domain.StatusQueued, t0))
	require.NoError(t, repo.AppendLog(ctx, id, "first", t0.Add(time.Second)))
	require.NoError(t, repo.Upsert(ctx, id, domain.StatusInProgress, t0.Add(2*time.Second)))
	require.NoError(t, repo.AppendLog(ctx, id, "second", t0.Add(3*time.Second)))

	ws, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, ws.Status)
	assert.Equal(t, []string{"first", "second"}, ws.Logs)
	assert.Equal(t, t0.Add(3*time.Second), ws.LastUpdated)

	sr, err := repo.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, sr.Report)

	record := newTestReportRecord(id)
	require.NoError(t, repo.Complete(ctx, record, t0.Add(4*time.Second)))

	sr, err = repo.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, sr.Status)
	require.NotNil(t, sr.Report)
	assert.Equal(t, record.Report, *sr.Report)

	err = repo.Complete(ctx, record, t0.Add(5*time.Second))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestMemoryStatusRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStatusRepository()
	id := uuid.New()
	now := time.Now()

	assert.ErrorIs(t, repo.AppendLog(ctx, id, "x", now), domain.ErrNotFound)
	_, err := repo.Get(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.GetReport(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, repo.Complete(ctx, newTestReportRecord(id), now), domain.ErrNotFound)
	assert.ErrorIs(t, repo.Complete(ctx, nil, now), domain.ErrInvalidInput)
}

func TestMemoryStatusRepository_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStatusRepository()
	id := uuid.New()
	now := time.Now()

	require.NoError(t, repo.Upsert(ctx, id, domain.StatusQueued, now))
	require.NoError(t, repo.AppendLog(ctx, id, "original", now))

	ws, err := repo.Get(ctx, id)
	require.NoError(t, err)
	ws.Logs[0] = "mutated"

	ws, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"original"}, ws.Logs)
}

func TestMemoryStatusRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStatusRepository()
	id := uuid.New()
	require.NoError(t, repo.Upsert(ctx, id, domain.StatusInProgress, time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.AppendLog(ctx, id, "line", time.Now())
		}()
	}
	wg.Wait()

	ws, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, ws.Logs, 50)
}
