package bench_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/stressberry/internal/bench"
	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/load"
	"codeberg.org/mutker/stressberry/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeline records the order and duration of every blocking step.
type timeline struct {
	steps []string
	slept time.Duration
	specs []load.Spec
	err   error
}

func (tl *timeline) sleep(_ context.Context, d time.Duration) error {
	tl.steps = append(tl.steps, "idle")
	tl.slept += d
	return nil
}

func (tl *timeline) Run(_ context.Context, spec load.Spec) error {
	tl.steps = append(tl.steps, "load")
	tl.slept += spec.Duration
	tl.specs = append(tl.specs, spec)
	return tl.err
}

func newRunner(tl *timeline, buf *bytes.Buffer) *bench.Runner {
	r := bench.NewRunner(tl, logger.New(buf))
	r.Sleep = tl.sleep
	r.CoreCount = func() int { return 4 }

	return r
}

func TestRunSequenceWithAllCores(t *testing.T) {
	tl := &timeline{}
	var buf bytes.Buffer

	err := newRunner(tl, &buf).Run(context.Background(), bench.Plan{
		StressDuration: 5 * time.Second,
		IdleDuration:   2 * time.Second,
		Kind:           load.KindStress,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"idle", "load", "idle"}, tl.steps)
	assert.Equal(t, 9*time.Second, tl.slept)
	require.Len(t, tl.specs, 1)
	assert.Equal(t, load.Spec{Kind: load.KindStress, Duration: 5 * time.Second, Cores: 4}, tl.specs[0])
	assert.Contains(t, buf.String(), "Preparing to stress [4] CPU Cores for [5s]")
	assert.Contains(t, buf.String(), "Idling for 2s...")
}

func TestRunExplicitCores(t *testing.T) {
	tl := &timeline{}
	var buf bytes.Buffer

	err := newRunner(tl, &buf).Run(context.Background(), bench.Plan{
		StressDuration: time.Second,
		Cores:          2,
		Kind:           load.KindStress,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tl.specs[0].Cores)
}

func TestRunCpuburn(t *testing.T) {
	tl := &timeline{}
	var buf bytes.Buffer

	err := newRunner(tl, &buf).Run(context.Background(), bench.Plan{
		StressDuration: 3 * time.Second,
		IdleDuration:   time.Second,
		Kind:           load.KindCpuburn,
	})
	require.NoError(t, err)
	assert.Equal(t, load.KindCpuburn, tl.specs[0].Kind)
	assert.Contains(t, buf.String(), "Preparing to run cpuburn for [3s]")
}

func TestLoadErrorPropagates(t *testing.T) {
	tl := &timeline{err: errors.New().New(errors.ErrLoadTool)}
	var buf bytes.Buffer

	err := newRunner(tl, &buf).Run(context.Background(), bench.Plan{
		StressDuration: time.Second,
		IdleDuration:   time.Second,
		Kind:           load.KindStress,
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrLoadTool))
	assert.Equal(t, []string{"idle", "load"}, tl.steps, "no trailing idle after a failed load")
}

func TestRealSleepBlocks(t *testing.T) {
	tl := &timeline{}
	r := bench.NewRunner(tl, logger.New(&bytes.Buffer{}))

	start := time.Now()
	err := r.Run(context.Background(), bench.Plan{
		StressDuration: time.Millisecond,
		IdleDuration:   20 * time.Millisecond,
		Kind:           load.KindStress,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Positive(t, tl.specs[0].Cores)
}

func TestHostCores(t *testing.T) {
	assert.Positive(t, bench.HostCores())
}
