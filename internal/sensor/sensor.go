// Package sensor reads instantaneous CPU temperature and frequency from sysfs
// files, the Raspberry Pi firmware command, hwmon, or NVML.
package sensor

import (
	"context"
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/stressberry/internal/config"
	"codeberg.org/mutker/stressberry/internal/errors"
)

const (
	milliUnits = 1000
	hzPerMHz   = 1_000_000

	// cpufreq reports kHz, which the milli-unit rule turns into MHz.
	defaultFrequencyFile = "/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq"
)

// TemperatureSource returns a temperature in degrees Celsius.
type TemperatureSource interface {
	Temperature(ctx context.Context) (float64, error)
}

// FrequencySource returns a CPU frequency in MHz.
type FrequencySource interface {
	Frequency(ctx context.Context) (float64, error)
}

// Source provides both readings.
type Source interface {
	TemperatureSource
	FrequencySource
}

// Reader combines a temperature and a frequency source. Every call reads the
// live value; nothing is cached.
type Reader struct {
	temperature TemperatureSource
	frequency   FrequencySource
	closers     []func() error
}

// NewReader builds a Reader from separately chosen sources.
func NewReader(temperature TemperatureSource, frequency FrequencySource) *Reader {
	return &Reader{temperature: temperature, frequency: frequency}
}

// Options carries the collaborators New needs besides the configuration.
type Options struct {
	Runner Runner
	// NVML opens the GPU source. Only called for the nvml source.
	NVML func() (Source, func() error, error)
}

// New builds a Reader from configuration. A configured file always takes
// precedence over the platform source.
func New(cfg config.SensorConfig, vcgencmd string, opts Options) (*Reader, error) {
	errFactory := errors.New()

	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}

	var platform Source
	var closers []func() error

	switch cfg.Source {
	case config.SourceVcgencmd, "":
		platform = NewVcgencmd(vcgencmd, opts.Runner)
	case config.SourceHwmon:
		platform = &Hwmon{Key: cfg.HwmonKey, FrequencyFile: defaultFrequencyFile}
	case config.SourceNVML:
		if opts.NVML == nil {
			return nil, errFactory.WithData(ErrUnknownSource, cfg.Source)
		}
		src, closeFn, err := opts.NVML()
		if err != nil {
			return nil, unavailable("nvml", err)
		}
		platform = src
		closers = append(closers, closeFn)
	default:
		return nil, errFactory.WithData(ErrUnknownSource, cfg.Source)
	}

	var temperature TemperatureSource = platform
	if cfg.TemperatureFile != "" {
		temperature = File{Path: cfg.TemperatureFile}
	}

	var frequency FrequencySource = platform
	if cfg.FrequencyFile != "" {
		frequency = File{Path: cfg.FrequencyFile}
	}

	r := NewReader(temperature, frequency)
	r.closers = closers

	return r, nil
}

// Temperature returns the core temperature in Celsius.
func (r *Reader) Temperature(ctx context.Context) (float64, error) {
	return r.temperature.Temperature(ctx)
}

// Frequency returns the CPU frequency in MHz.
func (r *Reader) Frequency(ctx context.Context) (float64, error) {
	return r.frequency.Frequency(ctx)
}

// Close releases sources that hold resources, such as an NVML session.
func (r *Reader) Close() error {
	var firstErr error
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil

	return firstErr
}

// File reads a value stored as text-encoded milli-units, such as
// /sys/class/thermal/thermal_zone0/temp.
type File struct {
	Path string
}

func (f File) Temperature(_ context.Context) (float64, error) {
	return f.read()
}

func (f File) Frequency(_ context.Context) (float64, error) {
	return f.read()
}

func (f File) read() (float64, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, unavailable(f.Path, err)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, unavailable(f.Path, err)
	}

	return value / milliUnits, nil
}
