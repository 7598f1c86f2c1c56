package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakeloader/internal/domain"
)

type mockRunRepo struct {
	ListRunsFn     func(ctx context.Context, limit int) ([]domain.RunRecord, error)
	GetRunFn       func(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListOutcomesFn func(ctx context.Context, runID string) ([]domain.IngestionOutcome, error)
}

func (m *mockRunRepo) InsertRun(ctx context.Context, rec domain.RunRecord) error { return nil }
func (m *mockRunRepo) FinishRun(ctx context.Context, runID string, finishedAt time.Time, processed, skipped int, status string) error {
	return nil
}
func (m *mockRunRepo) InsertOutcome(ctx context.Context, runID string, outcome domain.IngestionOutcome) error {
	return nil
}
func (m *mockRunRepo) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return m.ListRunsFn(ctx, limit)
}
func (m *mockRunRepo) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.GetRunFn(ctx, runID)
}
func (m *mockRunRepo) ListOutcomes(ctx context.Context, runID string) ([]domain.IngestionOutcome, error) {
	return m.ListOutcomesFn(ctx, runID)
}

func TestHealthz(t *testing.T) {
	h := NewHandler(&mockRunRepo{}, nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	started := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	repo := &mockRunRepo{
		ListRunsFn: func(ctx context.Context, limit int) ([]domain.RunRecord, error) {
			assert.Equal(t, 10, limit)
			return []domain.RunRecord{
				{RunID: "run-1", StartedAt: started, Processed: 2, Skipped: 1, Status: "completed"},
			}, nil
		},
	}
	srv := httptest.NewServer(NewHandler(repo, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/runs?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Processed)
}

func TestListRunsBadLimit(t *testing.T) {
	srv := httptest.NewServer(NewHandler(&mockRunRepo{}, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/runs?limit=zero")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRun(t *testing.T) {
	started := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	repo := &mockRunRepo{
		GetRunFn: func(ctx context.Context, runID string) (*domain.RunRecord, error) {
			assert.Equal(t, "run-1", runID)
			return &domain.RunRecord{RunID: "run-1", StartedAt: started, Status: "completed"}, nil
		},
		ListOutcomesFn: func(ctx context.Context, runID string) ([]domain.IngestionOutcome, error) {
			return []domain.IngestionOutcome{
				domain.ProcessedOutcome("edm_entity"),
				domain.SkippedOutcome("stray.avro", domain.SkipUnsupportedFormat, "extension not in supported set"),
			}, nil
		},
	}
	srv := httptest.NewServer(NewHandler(repo, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail runDetailResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, "run-1", detail.RunID)
	require.Len(t, detail.Outcomes, 2)
	assert.True(t, detail.Outcomes[0].Processed)
	assert.Equal(t, "UnsupportedFormat", detail.Outcomes[1].Reason)
}

func TestGetRunNotFound(t *testing.T) {
	repo := &mockRunRepo{
		GetRunFn: func(ctx context.Context, runID string) (*domain.RunRecord, error) {
			return nil, nil
		},
	}
	srv := httptest.NewServer(NewHandler(repo, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/runs/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRunsRepositoryFailure(t *testing.T) {
	repo := &mockRunRepo{
		ListRunsFn: func(ctx context.Context, limit int) ([]domain.RunRecord, error) {
			return nil, fmt.Errorf("database locked")
		},
	}
	srv := httptest.NewServer(NewHandler(repo, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
