package gpu

import (
	"codeberg.org/mutker/stressberry/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// library abstracts the NVML entry points used here, for testing
type library interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (nvml.Device, nvml.Return)
}

// device abstracts the per-device NVML calls used here
type device interface {
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
	GetClockInfo(clockType nvml.ClockType) (uint32, nvml.Return)
}

type nvmlLibrary struct{}

func (nvmlLibrary) Init() nvml.Return     { return nvml.Init() }
func (nvmlLibrary) Shutdown() nvml.Return { return nvml.Shutdown() }

func (nvmlLibrary) DeviceGetCount() (int, nvml.Return) {
	return nvml.DeviceGetCount()
}

func (nvmlLibrary) DeviceGetHandleByIndex(index int) (nvml.Device, nvml.Return) {
	return nvml.DeviceGetHandleByIndex(index)
}

type nvmlWrapper struct {
	lib         library
	initialized bool
}

func (w *nvmlWrapper) Initialize() error {
	errFactory := errors.New()
	if w.initialized {
		return nil
	}

	ret := w.lib.Init()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	w.initialized = true

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	errFactory := errors.New()
	if !w.initialized {
		return nil
	}

	ret := w.lib.Shutdown()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}

	w.initialized = false

	return nil
}

func (w *nvmlWrapper) GetDevice(index int) (device, error) {
	errFactory := errors.New()
	if !w.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	count, ret := w.lib.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}
	if index < 0 || index >= count {
		return nil, errFactory.WithData(ErrDeviceNotFound, index)
	}

	dev, ret := w.lib.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return dev, nil
}
