package ambient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/stressberry/internal/errors"
)

const (
	// IIODriverName is the default driver. It reads the kernel dht11 IIO
	// driver (dtoverlay=dht11), which serves DHT11, DHT22 and AM2302 alike.
	IIODriverName = "iio"

	iioDevices    = "/sys/bus/iio/devices"
	iioDeviceName = "dht11"
	milliUnits    = 1000
)

func init() {
	Register(IIODriverName, &IIO{Root: iioDevices})
}

// IIO reads DHT sensors exposed through /sys/bus/iio.
type IIO struct {
	Root string
}

func (d *IIO) Available(pin string) error {
	_, err := d.device(pin)
	return err
}

func (d *IIO) Read(_ context.Context, _ Model, pin string) (Reading, error) {
	dir, err := d.device(pin)
	if err != nil {
		return Reading{}, err
	}

	temp, err := readMilli(filepath.Join(dir, "in_temp_input"))
	if err != nil {
		return Reading{}, err
	}

	humidity, err := readMilli(filepath.Join(dir, "in_humidityrelative_input"))
	if err != nil {
		return Reading{}, err
	}

	return Reading{Humidity: humidity, Temperature: temp}, nil
}

// device finds the dht11 IIO device. With several sensors attached, the one
// whose device-tree node is dht11@<pin in hex> wins.
func (d *IIO) device(pin string) (string, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		return "", err
	}

	var candidates []string
	for _, e := range entries {
		dir := filepath.Join(d.Root, e.Name())
		name, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil || strings.TrimSpace(string(name)) != iioDeviceName {
			continue
		}
		candidates = append(candidates, dir)
	}

	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("no %s device under %s (is dtoverlay=dht11 loaded?)", iioDeviceName, d.Root)
	case 1:
		return candidates[0], nil
	}

	if n, err := strconv.Atoi(pin); err == nil {
		want := fmt.Sprintf("%s@%x", iioDeviceName, n)
		for _, dir := range candidates {
			node, err := filepath.EvalSymlinks(filepath.Join(dir, "of_node"))
			if err == nil && filepath.Base(node) == want {
				return dir, nil
			}
		}
	}

	return "", fmt.Errorf("%d %s devices found, none on pin %s", len(candidates), iioDeviceName, pin)
}

// readMilli fails with ErrReadFailed on a bad checksum or timeout, which the
// kernel driver reports as EIO on read.
func readMilli(path string) (float64, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err)
	}

	return value / milliUnits, nil
}
