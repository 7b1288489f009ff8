package sensor

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// Hwmon reads temperatures through the kernel hwmon/thermal interfaces. When
// Key is empty the first CPU-looking sensor is used.
type Hwmon struct {
	Key           string
	FrequencyFile string
}

var cpuSensorPrefixes = []string{"cpu", "coretemp", "k10temp", "soc", "acpitz"}

func (h *Hwmon) Temperature(ctx context.Context) (float64, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err == nil {
			err = fmt.Errorf("no temperature sensors found")
		}
		return 0, unavailable("hwmon", err)
	}

	if h.Key != "" {
		for _, t := range temps {
			if t.SensorKey == h.Key {
				return t.Temperature, nil
			}
		}
		return 0, unavailable("hwmon", fmt.Errorf("sensor %q not found", h.Key))
	}

	for _, prefix := range cpuSensorPrefixes {
		for _, t := range temps {
			if strings.HasPrefix(t.SensorKey, prefix) {
				return t.Temperature, nil
			}
		}
	}

	return temps[0].Temperature, nil
}

func (h *Hwmon) Frequency(ctx context.Context) (float64, error) {
	return File{Path: h.FrequencyFile}.Frequency(ctx)
}
