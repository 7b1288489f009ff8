package sensor

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"codeberg.org/mutker/stressberry/internal/errors"
)

// Runner executes a command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Vcgencmd queries the Raspberry Pi firmware. Only "measure_clock arm" is
// accurate for the CPU frequency on the Pi.
type Vcgencmd struct {
	bin    string
	runner Runner
}

func NewVcgencmd(bin string, runner Runner) *Vcgencmd {
	if bin == "" {
		bin = "vcgencmd"
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	return &Vcgencmd{bin: bin, runner: runner}
}

func (v *Vcgencmd) Temperature(ctx context.Context) (float64, error) {
	out, err := v.runner.Output(ctx, v.bin, "measure_temp")
	if err != nil {
		return 0, unavailable(v.bin, err)
	}

	temp, err := ParseTemperature(string(out))
	if err != nil {
		return 0, unavailable(v.bin, err)
	}

	return temp, nil
}

func (v *Vcgencmd) Frequency(ctx context.Context) (float64, error) {
	out, err := v.runner.Output(ctx, v.bin, "measure_clock", "arm")
	if err != nil {
		return 0, unavailable(v.bin, err)
	}

	freq, err := ParseFrequency(string(out))
	if err != nil {
		return 0, unavailable(v.bin, err)
	}

	return freq, nil
}

// ParseTemperature parses "temp=52.3'C" into 52.3.
func ParseTemperature(out string) (float64, error) {
	out = strings.TrimSpace(out)

	value, ok := strings.CutPrefix(out, "temp=")
	if !ok {
		return 0, errors.New().WithData(ErrUnexpectedValue, out)
	}
	value = strings.TrimSuffix(value, "'C")

	temp, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.New().Wrap(ErrUnexpectedValue, err)
	}

	return temp, nil
}

// ParseFrequency parses "frequency(48)=1500000000" (Hz) into 1500 (MHz).
func ParseFrequency(out string) (float64, error) {
	out = strings.TrimSpace(out)

	_, value, ok := strings.Cut(out, "=")
	if !ok {
		return 0, errors.New().WithData(ErrUnexpectedValue, out)
	}

	hz, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.New().Wrap(ErrUnexpectedValue, err)
	}

	return hz / hzPerMHz, nil
}
