// Package metrics stores thermal-response series in SQLite.
package metrics

import (
	"context"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
	run  *Run
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Bool("enabled", cfg.Enabled).
		Msg("Metrics service initialized successfully")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) StartRun(ctx context.Context, run *Run) error {
	errFactory := errors.New()

	if run == nil {
		return errFactory.New(ErrNoRun)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	if err := s.repo.InsertRun(run); err != nil {
		return errFactory.Wrap(ErrMetricsCollection, err)
	}
	s.run = run

	return nil
}

func (s *service) Record(ctx context.Context, sample *Sample) error {
	errFactory := errors.New()

	if sample == nil {
		return errFactory.New(ErrInvalidSample)
	}
	if s.run == nil {
		return errFactory.New(ErrNoRun)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	sample.RunID = s.run.ID
	if err := s.repo.Record(sample); err != nil {
		return errFactory.Wrap(ErrMetricsCollection, err)
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopCollector) StartRun(_ context.Context, _ *Run) error {
	return nil
}

func (*noopCollector) Record(_ context.Context, _ *Sample) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}
