package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Collector defines the core domain interface
type Collector interface {
	StartRun(ctx context.Context, run *Run) error
	Record(ctx context.Context, sample *Sample) error
	Close() error
}

// Repository defines the interface for series storage
type Repository interface {
	InsertRun(run *Run) error
	Record(sample *Sample) error
	Close() error
}

// Run describes one stress test.
type Run struct {
	ID             uuid.UUID
	Name           string
	StartedAt      time.Time
	LoadKind       string
	Cores          int
	StressDuration time.Duration
	IdleDuration   time.Duration
}

// Sample is one point of the thermal-response series.
type Sample struct {
	RunID       uuid.UUID
	Timestamp   time.Time
	Elapsed     time.Duration
	Temperature float64
	Frequency   float64
	// Ambient is nil when no ambient reading was taken or every attempt failed.
	Ambient *float64
}
