// Package ambient reads an optional DHT-family humidity/temperature probe.
//
// Drivers are looked up by name on every read, so hosts that never enable
// ambient sensing need neither the driver nor its hardware support.
package ambient

import (
	"context"
	"sort"
	"sync"
	"time"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/logger"
	"github.com/jpillora/backoff"
)

// Model is a supported DHT sensor.
type Model string

const (
	DHT11  Model = "DHT11"
	DHT22  Model = "DHT22"
	AM2302 Model = "AM2302"
)

var sensorTypes = map[string]Model{
	"11":   DHT11,
	"22":   DHT22,
	"2302": AM2302,
}

// ParseSensorType maps a configured sensor type ("11", "22", "2302") to a Model.
func ParseSensorType(sensorType string) (Model, error) {
	model, ok := sensorTypes[sensorType]
	if !ok {
		return "", errors.New().WithData(ErrInvalidSensorType, sensorType)
	}

	return model, nil
}

// Reading is a single successful measurement.
type Reading struct {
	Humidity    float64
	Temperature float64
}

// Driver performs one read attempt. Failed attempts are expected on
// timing-sensitive hardware and are retried by the Adapter.
type Driver interface {
	// Available reports, with the underlying cause, whether the host can
	// use this driver at all.
	Available(pin string) error
	Read(ctx context.Context, model Model, pin string) (Reading, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available by name. Registering the same name twice
// replaces the earlier driver.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	drivers[name] = d
}

// Drivers returns the sorted names of registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func lookup(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, errors.New().WithData(ErrMissingDependency, "no ambient sensor driver "+name)
	}

	return d, nil
}

const (
	DefaultAttempts = 15
	DefaultDelay    = 2 * time.Second
)

// Adapter reads the ambient temperature through a named driver.
type Adapter struct {
	Driver   string
	Attempts int
	Delay    time.Duration
	Logger   logger.Logger
}

func NewAdapter(driver string, log logger.Logger) *Adapter {
	return &Adapter{
		Driver:   driver,
		Attempts: DefaultAttempts,
		Delay:    DefaultDelay,
		Logger:   log,
	}
}

// ReadTemperature returns the ambient temperature in Celsius. ok is false when
// every attempt failed; that is not an error, since reads of these sensors
// occasionally fail. Errors are reserved for a missing driver or an unknown
// sensor type.
func (a *Adapter) ReadTemperature(ctx context.Context, sensorType, pin string) (float64, bool, error) {
	reading, ok, err := a.Read(ctx, sensorType, pin)
	if err != nil || !ok {
		return 0, false, err
	}

	return reading.Temperature, true, nil
}

// Read returns a full reading, retrying failed attempts.
func (a *Adapter) Read(ctx context.Context, sensorType, pin string) (Reading, bool, error) {
	errFactory := errors.New()
	log := a.Logger
	if log == nil {
		log = logger.Default()
	}

	d, err := lookup(a.Driver)
	if err != nil {
		log.Error().Msg("Ambient sensor driver is not available")
		return Reading{}, false, err
	}
	if err := d.Available(pin); err != nil {
		return Reading{}, false, errFactory.Wrap(ErrMissingDependency, err)
	}

	model, err := ParseSensorType(sensorType)
	if err != nil {
		log.Error().Str("type", sensorType).Msg("Invalid ambient temperature sensor")
		return Reading{}, false, err
	}

	attempts := a.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := a.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	// DHT sensors need a fixed settle time between reads.
	b := &backoff.Backoff{Min: delay, Max: delay, Factor: 1}
	b.Reset()

	for attempt := 1; ; attempt++ {
		reading, err := d.Read(ctx, model, pin)
		if err == nil {
			return reading, true, nil
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Str("model", string(model)).
			Str("pin", pin).
			Msg("Ambient sensor read failed")

		if attempt >= attempts {
			return Reading{}, false, nil
		}

		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return Reading{}, false, errFactory.Wrap(errors.ErrTimeout, ctx.Err())
		case <-timer.C:
		}
	}
}
