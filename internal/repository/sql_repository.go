package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS validation_reports (
		id            TEXT PRIMARY KEY,
		created_at    BIGINT NOT NULL,
		success       BOOLEAN NOT NULL,
		failed_checks TEXT NOT NULL,
		report        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_validation_reports_created_at ON validation_reports (created_at)`,
}

// dialect covers the differences between the supported SQL drivers.
type dialect struct {
	name        string
	placeholder func(n int) string
	retryBusy   bool
}

var (
	sqliteDialect = dialect{
		name:        "sqlite",
		placeholder: func(int) string { return "?" },
		retryBusy:   true,
	}
	postgresDialect = dialect{
		name:        "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

// SQLRepository persists reports in SQLite or PostgreSQL. The full report
// is kept as JSON next to the columns used for listing.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps PRAGMAs and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return newSQLRepository(ctx, db, sqliteDialect)
}

// OpenPostgres connects to PostgreSQL through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLRepository(ctx, db, postgresDialect)
}

func newSQLRepository(ctx context.Context, db *sql.DB, d dialect) (*SQLRepository, error) {
	repo := &SQLRepository{db: db, dialect: d}
	for _, stmt := range schema {
		if err := repo.exec(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init %s schema: %w", d.name, err)
		}
	}
	return repo, nil
}

func (r *SQLRepository) Save(ctx context.Context, report models.ValidationReport) error {
	if report.ID == "" {
		return errors.New("report has no id")
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	p := r.dialect.placeholder
	query := fmt.Sprintf(
		`INSERT INTO validation_reports (id, created_at, success, failed_checks, report) VALUES (%s, %s, %s, %s, %s)`,
		p(1), p(2), p(3), p(4), p(5),
	)
	return r.exec(ctx, query,
		report.ID,
		report.CreatedAt.UnixNano(),
		report.Success(),
		strings.Join(report.FailedChecks(), ","),
		string(data),
	)
}

func (r *SQLRepository) Get(ctx context.Context, id string) (models.ValidationReport, error) {
	query := fmt.Sprintf(`SELECT report FROM validation_reports WHERE id = %s`, r.dialect.placeholder(1))

	var data string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ValidationReport{}, ErrReportNotFound
	}
	if err != nil {
		return models.ValidationReport{}, fmt.Errorf("query report: %w", err)
	}
	return decodeReport(data)
}

func (r *SQLRepository) History(ctx context.Context, limit int) ([]models.ValidationReport, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	query := fmt.Sprintf(
		`SELECT report FROM validation_reports ORDER BY created_at DESC, id DESC LIMIT %s`,
		r.dialect.placeholder(1),
	)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var reports []models.ValidationReport
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		report, err := decodeReport(data)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func decodeReport(data string) (models.ValidationReport, error) {
	var report models.ValidationReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return models.ValidationReport{}, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) error {
	op := func() error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	}
	if !r.dialect.retryBusy {
		return op()
	}
	return retryOnBusy(ctx, op)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

var _ ValidationRepository = (*SQLRepository)(nil)
