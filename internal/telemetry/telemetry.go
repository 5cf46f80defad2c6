// Package telemetry records local build and discovery outcomes so failure
// patterns can be inspected later. Nothing leaves the machine.
package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Telemetry tracks build and discovery outcomes in a local SQLite database.
type Telemetry struct {
	db *sql.DB
}

// Event represents one engine invocation.
type Event struct {
	Timestamp     time.Time
	Subcommand    string // "build" or "tests"
	Selector      string // target or type selector, e.g. "--bin hello_world"
	Duration      time.Duration
	Success       bool
	ArtifactCount int
	FailureClass  string // "not-found", "package-not-found", "cargo", ... ; empty on success
}

// New creates a telemetry instance backed by a SQLite database in the
// user's config directory. When disabled, the instance is inert and every
// method is a no-op.
func New(enabled bool) (*Telemetry, error) {
	if !enabled {
		return &Telemetry{db: nil}, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}

	dbPath := filepath.Join(configDir, "stevedore", "telemetry.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	t := &Telemetry{db: db}
	if err := t.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS build_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		subcommand TEXT NOT NULL,
		selector TEXT,
		duration_ms INTEGER,
		success INTEGER NOT NULL,
		artifact_count INTEGER,
		failure_class TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_build_events_timestamp ON build_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_build_events_subcommand ON build_events(subcommand);
	`

	_, err := t.db.Exec(schema)
	return err
}

// Record stores one invocation outcome.
func (t *Telemetry) Record(event Event) error {
	if t.db == nil {
		return nil // Telemetry disabled
	}

	query := `
		INSERT INTO build_events
		(timestamp, subcommand, selector, duration_ms, success, artifact_count, failure_class)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := t.db.Exec(
		query,
		event.Timestamp.Format(time.RFC3339),
		event.Subcommand,
		event.Selector,
		event.Duration.Milliseconds(),
		event.Success,
		event.ArtifactCount,
		event.FailureClass,
	)

	return err
}

// FailureRate returns the fraction of recorded invocations of a
// subcommand that failed. Zero when nothing has been recorded.
func (t *Telemetry) FailureRate(subcommand string) (float64, error) {
	if t.db == nil {
		return 0, nil
	}

	query := `
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END) as failures
		FROM build_events
		WHERE subcommand = ?
	`

	var total int
	var failures sql.NullInt64
	err := t.db.QueryRow(query, subcommand).Scan(&total, &failures)
	if err != nil {
		return 0, err
	}

	if total == 0 {
		return 0, nil
	}

	return float64(failures.Int64) / float64(total), nil
}

// FailureClasses returns how often each failure class has been recorded.
func (t *Telemetry) FailureClasses() (map[string]int, error) {
	if t.db == nil {
		return nil, nil
	}

	query := `
		SELECT failure_class, COUNT(*) as count
		FROM build_events
		WHERE failure_class != ''
		GROUP BY failure_class
	`

	rows, err := t.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := make(map[string]int)
	for rows.Next() {
		var class string
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, err
		}
		classes[class] = count
	}

	return classes, rows.Err()
}

// Close closes the telemetry database connection.
func (t *Telemetry) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}
