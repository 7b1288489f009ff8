// Package gpu reads temperature and graphics clock from an NVIDIA GPU through
// NVML, for boards where the GPU shares the thermal envelope with the CPU.
package gpu

import (
	"context"
	"sync"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

type Sensor struct {
	nvml   *nvmlWrapper
	device device
	mu     sync.Mutex
}

// Open initializes NVML and binds to the device at index.
func Open(index int) (*Sensor, error) {
	return open(nvmlLibrary{}, index)
}

func open(lib library, index int) (*Sensor, error) {
	w := &nvmlWrapper{lib: lib}
	if err := w.Initialize(); err != nil {
		return nil, err
	}

	dev, err := w.GetDevice(index)
	if err != nil {
		if shutdownErr := w.Shutdown(); shutdownErr != nil {
			logger.Debug().Err(shutdownErr).Msg("Failed to shut down NVML")
		}
		return nil, err
	}

	logger.Debug().Int("index", index).Msg("NVML sensor initialized")

	return &Sensor{nvml: w, device: dev}, nil
}

// Temperature returns the GPU core temperature in Celsius.
func (s *Sensor) Temperature(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return 0, errors.New().New(ErrNotInitialized)
	}

	temp, ret := s.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return 0, errors.New().Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	return float64(temp), nil
}

// Frequency returns the current graphics clock in MHz.
func (s *Sensor) Frequency(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return 0, errors.New().New(ErrNotInitialized)
	}

	clock, ret := s.device.GetClockInfo(nvml.CLOCK_GRAPHICS)
	if !IsNVMLSuccess(ret) {
		return 0, errors.New().Wrap(ErrClockReadFailed, newNVMLError(ret))
	}

	return float64(clock), nil
}

// Close shuts NVML down. Further reads fail.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.device = nil

	return s.nvml.Shutdown()
}
