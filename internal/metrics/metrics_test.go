package metrics

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = filepath.Join(t.TempDir(), "data", "metrics.db")
	cfg.BatchTimeout = 0
	return cfg
}

func testRun() *Run {
	return &Run{
		ID:             uuid.New(),
		Name:           "heatsink",
		StartedAt:      time.Unix(1700000000, 0),
		LoadKind:       "stress",
		Cores:          4,
		StressDuration: 5 * time.Minute,
		IdleDuration:   150 * time.Second,
	}
}

func countRows(t *testing.T, path, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestNewService_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = ""

	c, err := NewService(cfg, logger.New(io.Discard))
	require.NoError(t, err)
	assert.IsType(t, &noopCollector{}, c)

	ctx := context.Background()
	assert.NoError(t, c.StartRun(ctx, testRun()))
	assert.NoError(t, c.Record(ctx, &Sample{}))
	assert.NoError(t, c.Close())
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.DBPath = ""

	_, err := NewService(cfg, logger.New(io.Discard))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

func TestService_RecordsSeries(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 2

	c, err := NewService(cfg, logger.New(io.Discard))
	require.NoError(t, err)

	ctx := context.Background()
	run := testRun()
	require.NoError(t, c.StartRun(ctx, run))

	ambient := 21.5
	start := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		s := &Sample{
			Timestamp:   start.Add(time.Duration(i) * time.Second),
			Elapsed:     time.Duration(i) * time.Second,
			Temperature: 45 + float64(i),
			Frequency:   1500,
		}
		if i%2 == 0 {
			s.Ambient = &ambient
		}
		require.NoError(t, c.Record(ctx, s))
		assert.Equal(t, run.ID, s.RunID)
	}

	require.NoError(t, c.Close())

	assert.Equal(t, 1, countRows(t, cfg.DBPath, "runs"))
	assert.Equal(t, 5, countRows(t, cfg.DBPath, "samples"))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	var nulls int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples WHERE ambient IS NULL").Scan(&nulls))
	assert.Equal(t, 2, nulls)
}

func TestService_RecordWithoutRun(t *testing.T) {
	c, err := NewService(testConfig(t), logger.New(io.Discard))
	require.NoError(t, err)
	defer c.Close()

	err = c.Record(context.Background(), &Sample{Timestamp: time.Now()})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrNoRun))
}

func TestService_CanceledContext(t *testing.T) {
	c, err := NewService(testConfig(t), logger.New(io.Discard))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.StartRun(ctx, testRun())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestValidateAndUpdateSchema_BacksUpOldVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metrics.db")
	backups := filepath.Join(dir, "backups")
	log := logger.New(io.Discard)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
        CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
        INSERT INTO schema_versions (version, applied_at) VALUES (0, datetime('now'));
        INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
    `)
	require.NoError(t, err)

	require.NoError(t, ValidateAndUpdateSchema(db, backups, log))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	for _, table := range []string{"runs", "samples"} {
		exists, err := TableExists(db, table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	entries, err := os.ReadDir(backups)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "metrics_v99_")
}

func TestValidateAndUpdateSchema_CurrentVersionUntouched(t *testing.T) {
	cfg := testConfig(t)
	log := logger.New(io.Discard)

	repo, err := NewRepository(cfg, log)
	require.NoError(t, err)
	require.NoError(t, repo.InsertRun(testRun()))
	require.NoError(t, repo.Close())

	repo, err = NewRepository(cfg, log)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	assert.Equal(t, 1, countRows(t, cfg.DBPath, "runs"))
	_, err = os.Stat(cfg.backupDir())
	assert.True(t, os.IsNotExist(err))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.BatchSize = -1
	assert.Error(t, cfg.Validate())
}
