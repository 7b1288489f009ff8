package metrics

import (
	"database/sql"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS runs (
	       id              TEXT PRIMARY KEY,
	       name            TEXT NOT NULL,
	       started_at      INTEGER NOT NULL,
	       load_kind       TEXT NOT NULL CHECK (load_kind IN ('stress', 'cpuburn')),
	       cores           INTEGER NOT NULL CHECK (cores >= 0),
	       stress_seconds  REAL NOT NULL,
	       idle_seconds    REAL NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       run_id          TEXT NOT NULL REFERENCES runs(id),
	       timestamp_ms    INTEGER NOT NULL,
	       elapsed_seconds REAL NOT NULL,
	       temperature     REAL NOT NULL,
	       frequency       REAL NOT NULL,
	       ambient         REAL,
	       PRIMARY KEY (run_id, timestamp_ms)
	   );`

	insertRunSQL = `
    INSERT INTO runs (
        id, name, started_at, load_kind, cores, stress_seconds, idle_seconds
    ) VALUES (?, ?, ?, ?, ?, ?, ?)`

	insertSampleSQL = `
    INSERT INTO samples (
        run_id, timestamp_ms, elapsed_seconds,
        temperature, frequency, ambient
    ) VALUES (?, ?, ?, ?, ?, ?)
    ON CONFLICT(run_id, timestamp_ms) DO UPDATE SET
        elapsed_seconds = excluded.elapsed_seconds,
        temperature = excluded.temperature,
        frequency = excluded.frequency,
        ambient = excluded.ambient`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty database
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
