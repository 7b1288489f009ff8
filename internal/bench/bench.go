// Package bench sequences a thermal test: idle, load, idle.
package bench

import (
	"context"
	"runtime"
	"time"

	"codeberg.org/mutker/stressberry/internal/cooldown"
	"codeberg.org/mutker/stressberry/internal/load"
	"codeberg.org/mutker/stressberry/internal/logger"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Plan describes one test run. Cores of 0 means every available core.
type Plan struct {
	StressDuration time.Duration
	IdleDuration   time.Duration
	Cores          int
	Kind           load.Kind
}

// Runner executes plans. It performs no sampling; callers that want a data
// series poll the sensors on their own cadence around Run.
type Runner struct {
	Driver load.Driver
	Logger logger.Logger

	// Sleep and CoreCount default to a context-aware timer and the host's
	// logical core count.
	Sleep     func(ctx context.Context, d time.Duration) error
	CoreCount func() int
}

func NewRunner(driver load.Driver, log logger.Logger) *Runner {
	return &Runner{Driver: driver, Logger: log}
}

// Run blocks for roughly IdleDuration + StressDuration + IdleDuration. Load
// driver errors are returned unchanged.
func (r *Runner) Run(ctx context.Context, plan Plan) error {
	log := r.Logger
	if log == nil {
		log = logger.Default()
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = cooldown.Sleep
	}

	cores := plan.Cores
	if cores <= 0 {
		coreCount := r.CoreCount
		if coreCount == nil {
			coreCount = HostCores
		}
		cores = coreCount()
	}

	if plan.Kind == load.KindCpuburn {
		log.Info().Msgf("Preparing to run cpuburn for [%s]", plan.StressDuration)
	} else {
		log.Info().Msgf("Preparing to stress [%d] CPU Cores for [%s]", cores, plan.StressDuration)
	}

	log.Info().Msgf("Idling for %s...", plan.IdleDuration)
	if err := sleep(ctx, plan.IdleDuration); err != nil {
		return err
	}

	if err := r.Driver.Run(ctx, load.Spec{
		Kind:     plan.Kind,
		Duration: plan.StressDuration,
		Cores:    cores,
	}); err != nil {
		return err
	}

	log.Info().Msgf("Idling for %s...", plan.IdleDuration)

	return sleep(ctx, plan.IdleDuration)
}

// HostCores returns the number of logical CPUs.
func HostCores() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}

	return n
}
