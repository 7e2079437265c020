package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

func openTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "validations.db"))
	if err != nil {
		t.Fatalf("Expected sqlite repository, got %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func report(id string, at time.Time, pass bool) models.ValidationReport {
	return models.ValidationReport{
		ID:        id,
		CreatedAt: at,
		Face:      pass,
		RUT:       true,
		DocID:     true,
		Dates:     true,
		Names:     true,
		QR:        pass,
		QRReason:  models.QRReasonMatch,
		Comparisons: []models.Comparison{
			{Category: models.CategoryRUT, Field: models.FieldRUN, Left: "12345678", Right: "12345678", Similarity: 1, Passed: true},
		},
	}
}

func TestSQLRepository_SaveAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Save(ctx, report("r1", at, true)); err != nil {
		t.Fatalf("Expected save, got %v", err)
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Expected report, got %v", err)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("Expected created at %v, got %v", at, got.CreatedAt)
	}
	if !got.Success() || got.QRReason != models.QRReasonMatch {
		t.Errorf("Unexpected report %+v", got)
	}
	if len(got.Comparisons) != 1 || got.Comparisons[0].Left != "12345678" {
		t.Errorf("Expected comparisons to round-trip, got %+v", got.Comparisons)
	}

	if err := repo.Save(ctx, report("r1", at, true)); err == nil {
		t.Error("Expected duplicate id to be rejected")
	}
	if err := repo.Save(ctx, models.ValidationReport{}); err == nil {
		t.Error("Expected report without id to be rejected")
	}
}

func TestSQLRepository_GetMissing(t *testing.T) {
	repo := openTestRepo(t)

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("Expected ErrReportNotFound, got %v", err)
	}
}

func TestSQLRepository_History(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "middle", "new"} {
		if err := repo.Save(ctx, report(id, base.Add(time.Duration(i)*time.Minute), i%2 == 0)); err != nil {
			t.Fatal(err)
		}
	}

	history, err := repo.History(ctx, 2)
	if err != nil {
		t.Fatalf("Expected history, got %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(history))
	}
	if history[0].ID != "new" || history[1].ID != "middle" {
		t.Errorf("Expected newest first, got %s, %s", history[0].ID, history[1].ID)
	}
	if history[1].Success() {
		t.Error("Expected middle report to be a failure")
	}

	all, err := repo.History(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Errorf("Expected default limit to return all 3, got %d (%v)", len(all), err)
	}
}

func TestSQLRepository_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "validations.db")
	ctx := context.Background()

	repo, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, report("persisted", time.Now().UTC(), true)); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("Expected reopen, got %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(ctx, "persisted"); err != nil {
		t.Errorf("Expected report to survive reopen, got %v", err)
	}
}

func TestIsSQLiteBusy(t *testing.T) {
	if isSQLiteBusy(nil) {
		t.Error("nil is not busy")
	}
	if !isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("Expected busy message to be detected")
	}
	if isSQLiteBusy(errors.New("no such table")) {
		t.Error("Did not expect other errors to be busy")
	}
}
