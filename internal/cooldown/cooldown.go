// Package cooldown waits for the CPU temperature to settle.
package cooldown

import (
	"context"
	"math"
	"time"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
	"codeberg.org/mutker/stressberry/internal/sensor"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultTolerance = 0.2
)

// Monitor polls a temperature source until two consecutive readings differ
// by less than Tolerance. There is no iteration cap: cooling down may take
// arbitrarily long, and only ctx ends the wait early.
type Monitor struct {
	Source    sensor.TemperatureSource
	Interval  time.Duration
	Tolerance float64
	Logger    logger.Logger

	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Wait returns the final, stable temperature.
func (m *Monitor) Wait(ctx context.Context) (float64, error) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	tolerance := m.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	log := m.Logger
	if log == nil {
		log = logger.Default()
	}
	sleep := m.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	prev, err := m.Source.Temperature(ctx)
	if err != nil {
		return 0, err
	}

	for {
		if err := sleep(ctx, interval); err != nil {
			return 0, err
		}

		cur, err := m.Source.Temperature(ctx)
		if err != nil {
			return 0, err
		}

		log.Info().
			Float64("temperature", cur).
			Float64("previous_temperature", prev).
			Msgf("Current temperature: %4.1f°C - Previous temperature: %4.1f°C", cur, prev)

		if math.Abs(cur-prev) < tolerance {
			return cur, nil
		}
		prev = cur
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.New().Wrap(errors.ErrTimeout, ctx.Err())
	case <-timer.C:
		return nil
	}
}
