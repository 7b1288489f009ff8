// Package load drives external CPU load generators.
package load

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"time"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
)

// Kind selects the load generator.
type Kind string

const (
	// KindStress runs stress with one worker per core; the tool enforces
	// its own timeout.
	KindStress Kind = "stress"
	// KindCpuburn runs cpuburn until the duration elapses, then terminates
	// its process group.
	KindCpuburn Kind = "cpuburn"
)

const DefaultGracePeriod = 5 * time.Second

// Spec describes one load phase. Cores is only used by KindStress.
type Spec struct {
	Kind     Kind
	Duration time.Duration
	Cores    int
}

// Driver runs a load phase to completion.
type Driver interface {
	Run(ctx context.Context, spec Spec) error
}

// ExecDriver runs the load tools as child processes.
type ExecDriver struct {
	StressPath  string
	CpuburnPath string
	// GracePeriod is how long cpuburn may take to exit after SIGTERM
	// before the group is killed.
	GracePeriod time.Duration
	Logger      logger.Logger
}

func NewExecDriver(stressPath, cpuburnPath string, log logger.Logger) *ExecDriver {
	if log == nil {
		log = logger.Default()
	}

	return &ExecDriver{
		StressPath:  stressPath,
		CpuburnPath: cpuburnPath,
		GracePeriod: DefaultGracePeriod,
		Logger:      log,
	}
}

func (d *ExecDriver) Run(ctx context.Context, spec Spec) error {
	errFactory := errors.New()

	if spec.Duration <= 0 {
		return errFactory.WithData(errors.ErrInvalidDuration, spec.Duration)
	}

	switch spec.Kind {
	case KindStress:
		return d.stress(ctx, spec)
	case KindCpuburn:
		return d.cpuburn(ctx, spec)
	default:
		return errFactory.WithData(errors.ErrInvalidLoadKind, spec.Kind)
	}
}

// lookPath resolves a tool binary. A missing tool is a configuration error
// and is never retried.
func lookPath(name, fallback string) (string, error) {
	if name == "" {
		name = fallback
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.New().Wrap(errors.ErrLoadToolMissing, err)
	}

	return path, nil
}

func (d *ExecDriver) stress(ctx context.Context, spec Spec) error {
	errFactory := errors.New()

	path, err := lookPath(d.StressPath, string(KindStress))
	if err != nil {
		return err
	}

	cores := spec.Cores
	if cores <= 0 {
		cores = 1
	}
	seconds := int((spec.Duration + time.Second - 1) / time.Second)

	cmd := exec.CommandContext(ctx, path,
		"--cpu", strconv.Itoa(cores),
		"--timeout", strconv.Itoa(seconds)+"s",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// stress forks one worker per core; cancellation must reach all of them.
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return terminateGroup(cmd.Process.Pid)
	}
	cmd.WaitDelay = d.gracePeriod()

	d.log().Info().
		Int("cores", cores).
		Int("seconds", seconds).
		Msg("Starting stress")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errFactory.Wrap(errors.ErrTimeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return errFactory.Wrap(errors.ErrLoadTool, err).WithData(exitErr.ExitCode())
		}
		return errFactory.Wrap(errors.ErrLoadTool, err)
	}

	d.log().Info().Msg("Exiting stress")

	return nil
}

func (d *ExecDriver) cpuburn(ctx context.Context, spec Spec) error {
	errFactory := errors.New()

	path, err := lookPath(d.CpuburnPath, string(KindCpuburn))
	if err != nil {
		return err
	}

	d.log().Info().Msg("Starting cpuburn")

	cmd := exec.Command(path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return errFactory.Wrap(errors.ErrLoadTool, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(spec.Duration)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			d.log().Warn().Err(err).Msg("cpuburn exited before the deadline")
		}
		return nil
	case <-timer.C:
		d.terminate(cmd, done)
		d.log().Info().Msg("Exiting cpuburn")
		return nil
	case <-ctx.Done():
		d.terminate(cmd, done)
		return errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	}
}

// terminate signals the whole process group with SIGTERM, escalating to
// SIGKILL after the grace period, and waits for the leader. Signal failures
// are logged rather than returned: the timeout is the intended stop.
func (d *ExecDriver) terminate(cmd *exec.Cmd, done <-chan error) {
	pid := cmd.Process.Pid

	if err := terminateGroup(pid); err != nil && !isNoSuchProcess(err) {
		d.log().Warn().Err(err).Int("pgid", pid).Msg("Failed to terminate cpuburn process group")
	}

	timer := time.NewTimer(d.gracePeriod())
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.log().Warn().Int("pgid", pid).Msg("cpuburn ignored SIGTERM, killing process group")
		if err := killGroup(pid); err != nil {
			d.log().Warn().Err(err).Int("pgid", pid).Msg("Failed to kill cpuburn process group")
		}
		<-done
	}
}

func (d *ExecDriver) gracePeriod() time.Duration {
	if d.GracePeriod <= 0 {
		return DefaultGracePeriod
	}

	return d.GracePeriod
}

func (d *ExecDriver) log() logger.Logger {
	if d.Logger == nil {
		return logger.Default()
	}

	return d.Logger
}
