package gpu

import (
	"context"
	"testing"

	"codeberg.org/mutker/stressberry/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	nvml.Device
	temp  uint32
	clock uint32
	ret   nvml.Return
}

func (d *fakeDevice) GetTemperature(nvml.TemperatureSensors) (uint32, nvml.Return) {
	return d.temp, d.ret
}

func (d *fakeDevice) GetClockInfo(nvml.ClockType) (uint32, nvml.Return) {
	return d.clock, d.ret
}

type fakeLibrary struct {
	initRet   nvml.Return
	count     int
	dev       *fakeDevice
	shutdowns int
}

func (l *fakeLibrary) Init() nvml.Return { return l.initRet }

func (l *fakeLibrary) Shutdown() nvml.Return {
	l.shutdowns++
	return nvml.SUCCESS
}

func (l *fakeLibrary) DeviceGetCount() (int, nvml.Return) { return l.count, nvml.SUCCESS }

func (l *fakeLibrary) DeviceGetHandleByIndex(int) (nvml.Device, nvml.Return) {
	return l.dev, nvml.SUCCESS
}

func TestSensorReadings(t *testing.T) {
	lib := &fakeLibrary{count: 1, dev: &fakeDevice{temp: 57, clock: 1410}}

	s, err := open(lib, 0)
	require.NoError(t, err)

	temp, err := s.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 57.0, temp, 1e-9)

	freq, err := s.Frequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1410.0, freq, 1e-9)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, lib.shutdowns)

	_, err = s.Temperature(context.Background())
	assert.True(t, errors.HasCode(err, ErrNotInitialized))
}

func TestOpenInitFailure(t *testing.T) {
	lib := &fakeLibrary{initRet: nvml.ERROR_LIBRARY_NOT_FOUND}

	_, err := open(lib, 0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInitFailed))
}

func TestOpenMissingDevice(t *testing.T) {
	lib := &fakeLibrary{count: 1, dev: &fakeDevice{}}

	_, err := open(lib, 2)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrDeviceNotFound))
	assert.Equal(t, 1, lib.shutdowns, "NVML must be shut down when no device is bound")
}

func TestReadFailure(t *testing.T) {
	lib := &fakeLibrary{count: 1, dev: &fakeDevice{ret: nvml.ERROR_GPU_IS_LOST}}

	s, err := open(lib, 0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Temperature(context.Background())
	assert.True(t, errors.HasCode(err, ErrTemperatureReadFailed))

	_, err = s.Frequency(context.Background())
	assert.True(t, errors.HasCode(err, ErrClockReadFailed))
}
