package episode

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/oshokin/smart-lock/internal/domain/lock"
	"github.com/oshokin/smart-lock/internal/domain/presence"

	// Registers the pure Go "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository defines persistence operations for episodes.
type Repository interface {
	Record(ctx context.Context, episode presence.Episode) error
	List(ctx context.Context, limit int) ([]presence.Episode, error)
}

// SQLiteRepository stores episodes in SQLite.
type SQLiteRepository struct {
	// db is the open database handle.
	db *sql.DB
}

// Open opens or creates the database at path and applies pending migrations.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := path
	if path != MemoryPath {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &SQLiteRepository{db: db}

	if err = r.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return r, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Record appends episode.
func (r *SQLiteRepository) Record(ctx context.Context, episode presence.Episode) error {
	const query = `
INSERT INTO episodes (
    id, started_at, finished_at, outcome, label, confidence, position,
    capture_error, classifier_error, actuator_error, notify_error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		episode.ID,
		episode.StartedAt.UnixNano(),
		episode.FinishedAt.UnixNano(),
		string(episode.Outcome),
		episode.Label,
		episode.Confidence,
		positionText(episode.Position),
		episode.CaptureError,
		episode.ClassifierError,
		episode.ActuatorError,
		episode.NotifyError,
	)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", episode.ID, err)
	}

	return nil
}

// List returns up to limit episodes, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]presence.Episode, error) {
	const query = `
SELECT id, started_at, finished_at, outcome, label, confidence, position,
       capture_error, classifier_error, actuator_error, notify_error
FROM episodes
ORDER BY started_at DESC
LIMIT ?`

	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var result []presence.Episode

	for rows.Next() {
		var (
			episode             presence.Episode
			startedAt, finishAt int64
			outcome, position   string
		)

		err = rows.Scan(
			&episode.ID,
			&startedAt,
			&finishAt,
			&outcome,
			&episode.Label,
			&episode.Confidence,
			&position,
			&episode.CaptureError,
			&episode.ClassifierError,
			&episode.ActuatorError,
			&episode.NotifyError,
		)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}

		episode.StartedAt = time.Unix(0, startedAt).UTC()
		episode.FinishedAt = time.Unix(0, finishAt).UTC()
		episode.Outcome = presence.Outcome(outcome)

		if parsed, parseErr := lock.ParsePosition(position); parseErr == nil {
			episode.Position = parsed
		}

		result = append(result, episode)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}

	return result, nil
}

// positionText stores aborted episodes with an empty position.
func positionText(position lock.Position) string {
	if position == lock.PositionUnknown {
		return ""
	}

	return position.String()
}
