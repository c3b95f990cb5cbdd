//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE prioritizer_runs")
		s.Close()
	})

	return s
}

func TestPostgresSaveAndGetRun(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	res := sampleResult("integration", time.Now().UTC().Truncate(time.Microsecond))
	if err := s.SaveRun(ctx, FromResult(res)); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Status != StatusCompleted || got.Name != "integration" {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Top["s1"] != "o1" {
		t.Errorf("expected top option o1, got %v", got.Top)
	}
	if got.Result == nil || len(got.Result.SummedAndRanked) != 2 {
		t.Errorf("expected stored result, got %+v", got.Result)
	}

	// Saving again updates in place.
	res.Exclusions = 7
	if err := s.SaveRun(ctx, FromResult(res)); err != nil {
		t.Fatalf("SaveRun update failed: %v", err)
	}
	got, _ = s.GetRun(ctx, res.ID)
	if got.Exclusions != 7 {
		t.Errorf("expected 7 exclusions after update, got %d", got.Exclusions)
	}
}

func TestPostgresGetRunNotFound(t *testing.T) {
	s := setupTestDB(t)
	got, err := s.GetRun(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown run, got %+v", got)
	}
}

func TestPostgresListRuns(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, name := range []string{"a", "b", "a"} {
		if err := s.SaveRun(ctx, FromResult(sampleResult(name, base.Add(time.Duration(i)*time.Minute)))); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}
	if err := s.SaveRun(ctx, FailedRun("a", errors.New("bad ratings"))); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	status := StatusFailed
	failed, err := s.ListRuns(ctx, RunFilter{Status: &status})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Error != "bad ratings" {
		t.Errorf("unexpected failed runs %+v", failed)
	}

	named, err := s.ListRuns(ctx, RunFilter{Name: "a", Limit: 10})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(named) != 3 {
		t.Errorf("expected 3 runs named a, got %d", len(named))
	}
}
