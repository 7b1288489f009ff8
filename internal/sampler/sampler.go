// Package sampler records the thermal-response series of a run.
package sampler

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
	"codeberg.org/mutker/stressberry/internal/metrics"
	"codeberg.org/mutker/stressberry/internal/sensor"
)

// AmbientSource is satisfied by *ambient.Adapter.
type AmbientSource interface {
	ReadTemperature(ctx context.Context, sensorType, pin string) (float64, bool, error)
}

// Ambient selects the ambient sensor read on every tick.
type Ambient struct {
	Source AmbientSource
	Type   string
	Pin    string
}

// Sampler polls the sensors on its own cadence until its context ends.
type Sampler struct {
	Reader    sensor.Source
	Ambient   *Ambient
	Collector metrics.Collector
	Interval  time.Duration
	Logger    logger.Logger
	Now       func() time.Time

	mu      sync.Mutex
	start   time.Time
	samples []metrics.Sample
}

func New(reader sensor.Source, interval time.Duration, collector metrics.Collector, log logger.Logger) *Sampler {
	return &Sampler{
		Reader:    reader,
		Collector: collector,
		Interval:  interval,
		Logger:    log,
	}
}

// Run takes one sample immediately and then one per interval. Elapsed times
// count from the first sample. It returns nil when ctx ends and the first
// sensor error otherwise.
func (s *Sampler) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		return errors.New().New(errors.ErrInvalidInterval)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if err := s.sample(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log().Error().Err(err).Msg("Sampling failed")
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Samples returns a copy of the series recorded so far.
func (s *Sampler) Samples() []metrics.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]metrics.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

func (s *Sampler) sample(ctx context.Context) error {
	temperature, err := s.Reader.Temperature(ctx)
	if err != nil {
		return err
	}
	frequency, err := s.Reader.Frequency(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	sample := metrics.Sample{
		Timestamp:   now,
		Temperature: temperature,
		Frequency:   frequency,
	}

	if s.Ambient != nil && s.Ambient.Source != nil {
		value, ok, err := s.Ambient.Source.ReadTemperature(ctx, s.Ambient.Type, s.Ambient.Pin)
		if err != nil {
			return err
		}
		if ok {
			sample.Ambient = &value
		}
	}

	s.mu.Lock()
	if len(s.samples) == 0 {
		s.start = now
	}
	sample.Elapsed = now.Sub(s.start)
	s.samples = append(s.samples, sample)
	s.mu.Unlock()

	s.log().Debug().
		Float64("temperature", temperature).
		Float64("frequency", frequency).
		Dur("elapsed", sample.Elapsed).
		Msg("Sample")

	if s.Collector != nil {
		stored := sample
		if err := s.Collector.Record(ctx, &stored); err != nil {
			s.log().Warn().Err(err).Msg("Failed to store sample")
		}
	}

	return nil
}

func (s *Sampler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Sampler) log() logger.Logger {
	if s.Logger == nil {
		return logger.Default()
	}
	return s.Logger
}
