package cli

import (
	"context"
	"time"

	"codeberg.org/mutker/stressberry/internal/ambient"
	"codeberg.org/mutker/stressberry/internal/bench"
	"codeberg.org/mutker/stressberry/internal/config"
	"codeberg.org/mutker/stressberry/internal/cooldown"
	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/load"
	"codeberg.org/mutker/stressberry/internal/logger"
	"codeberg.org/mutker/stressberry/internal/metrics"
	"codeberg.org/mutker/stressberry/internal/pid"
	"codeberg.org/mutker/stressberry/internal/report"
	"codeberg.org/mutker/stressberry/internal/sampler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultOutput = "out.yaml"

var skipCooldown bool

func init() {
	runCmd.Flags().BoolVar(&skipCooldown, "skip-cooldown", false, "Start without waiting for the temperature to settle")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [output.yaml]",
	Short: "Run the stress test and write the results file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTest,
}

func runTest(_ *cobra.Command, args []string) error {
	output := defaultOutput
	if len(args) == 1 {
		output = args[0]
	}

	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	log := logger.Default()

	reader, err := openReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	collector, err := metrics.NewService(metricsConfig(), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close metrics")
		}
	}()

	if !skipCooldown {
		monitor := &cooldown.Monitor{
			Source:    reader,
			Interval:  cfg.Cooldown,
			Tolerance: cfg.Tolerance,
			Logger:    log,
		}
		if _, err := monitor.Wait(ctx); err != nil {
			return err
		}
	}

	plan := newPlan(cfg, bench.HostCores)
	run := newRun(cfg.Name, plan, time.Now())
	if err := collector.StartRun(ctx, run); err != nil {
		return err
	}
	logger.Info().Str("run_id", run.ID.String()).Msg("Starting run")

	s := sampler.New(reader, cfg.Interval, collector, log)
	if cfg.Ambient.Enabled {
		s.Ambient = &sampler.Ambient{
			Source: ambient.NewAdapter(cfg.Ambient.Driver, log),
			Type:   cfg.Ambient.Type,
			Pin:    cfg.Ambient.Pin,
		}
	}
	runner := bench.NewRunner(load.NewExecDriver(cfg.Tools.Stress, cfg.Tools.Cpuburn, log), log)

	if err := runWithSampler(ctx, s, runner, plan); err != nil {
		return errors.New().Wrap(errors.ErrRunFailed, err)
	}

	if err := report.Write(output, report.FromSamples(cfg.Name, s.Samples())); err != nil {
		return err
	}
	logger.Info().Str("path", output).Int("samples", len(s.Samples())).Msg("Results written")

	return nil
}

// runWithSampler samples for the whole plan. A sampler failure cancels the
// plan, and the end of the plan stops the sampler.
func runWithSampler(ctx context.Context, s *sampler.Sampler, runner *bench.Runner, plan bench.Plan) error {
	samplingCtx, stopSampling := context.WithCancel(ctx)
	defer stopSampling()

	g, gCtx := errgroup.WithContext(samplingCtx)

	g.Go(func() error {
		return s.Run(gCtx)
	})

	g.Go(func() error {
		defer stopSampling()
		return runner.Run(gCtx, plan)
	})

	return g.Wait()
}

// newPlan builds the plan from configuration. A core count of 0 is resolved
// here so the stored run records the cores actually stressed.
func newPlan(c *config.Config, coreCount func() int) bench.Plan {
	plan := bench.Plan{
		StressDuration: c.Duration,
		IdleDuration:   c.Idle,
		Cores:          c.Cores,
		Kind:           load.KindStress,
	}
	if c.Cpuburn {
		plan.Kind = load.KindCpuburn
	}
	if plan.Cores <= 0 {
		plan.Cores = coreCount()
	}

	return plan
}

func newRun(name string, plan bench.Plan, startedAt time.Time) *metrics.Run {
	return &metrics.Run{
		ID:             uuid.New(),
		Name:           name,
		StartedAt:      startedAt,
		LoadKind:       string(plan.Kind),
		Cores:          plan.Cores,
		StressDuration: plan.StressDuration,
		IdleDuration:   plan.IdleDuration,
	}
}

func metricsConfig() metrics.Config {
	mc := metrics.DefaultConfig()
	mc.Enabled = cfg.Metrics.Enabled
	mc.DBPath = cfg.Metrics.DBPath
	return mc
}
