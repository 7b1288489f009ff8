package sensor_test

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/mutker/stressberry/internal/config"
	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	outputs map[string]string
	err     error
	calls   []string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	out, ok := f.outputs[call]
	if !ok {
		return nil, fmt.Errorf("unexpected call %q", call)
	}

	return []byte(out), nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "value")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFileTemperature(t *testing.T) {
	path := writeFile(t, "45000\n")

	temp, err := sensor.File{Path: path}.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 45.0, temp, 1e-9)
}

func TestFileFrequency(t *testing.T) {
	path := writeFile(t, "1500000")

	freq, err := sensor.File{Path: path}.Frequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, freq, 1e-9)
}

func TestFileMissing(t *testing.T) {
	_, err := sensor.File{Path: filepath.Join(t.TempDir(), "missing")}.Temperature(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
	assert.True(t, errors.Is(err, fs.ErrNotExist), "underlying IO error must be kept")
}

func TestFileGarbage(t *testing.T) {
	path := writeFile(t, "hot")

	_, err := sensor.File{Path: path}.Temperature(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
}

func TestParseTemperature(t *testing.T) {
	temp, err := sensor.ParseTemperature("temp=52.3'C\n")
	require.NoError(t, err)
	assert.InDelta(t, 52.3, temp, 1e-9)

	_, err = sensor.ParseTemperature("error=1 error_msg=\"Command not registered\"")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrUnexpectedValue))

	_, err = sensor.ParseTemperature("temp=hot'C")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrUnexpectedValue))
}

func TestParseFrequency(t *testing.T) {
	freq, err := sensor.ParseFrequency("frequency(48)=1500000000\n")
	require.NoError(t, err)
	assert.InDelta(t, 1500.0, freq, 1e-9)

	_, err = sensor.ParseFrequency("frequency(48)")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrUnexpectedValue))

	_, err = sensor.ParseFrequency("frequency(48)=fast")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrUnexpectedValue))
}

func TestVcgencmdUnexpectedOutput(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"vcgencmd measure_temp":      "VCHI initialization failed\n",
		"vcgencmd measure_clock arm": "frequency(48)=\n",
	}}
	v := sensor.NewVcgencmd("vcgencmd", runner)

	_, err := v.Temperature(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
	assert.True(t, errors.HasCode(err, sensor.ErrUnexpectedValue))

	_, err = v.Frequency(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrUnexpectedValue))
}

func TestVcgencmd(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"vcgencmd measure_temp":      "temp=48.7'C\n",
		"vcgencmd measure_clock arm": "frequency(48)=600117184\n",
	}}
	v := sensor.NewVcgencmd("", runner)

	temp, err := v.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 48.7, temp, 1e-9)

	freq, err := v.Frequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 600.117184, freq, 1e-9)
}

func TestVcgencmdNoCaching(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"vcgencmd measure_temp": "temp=48.7'C",
	}}
	v := sensor.NewVcgencmd("vcgencmd", runner)

	for i := 0; i < 3; i++ {
		_, err := v.Temperature(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, runner.calls, 3)
}

func TestVcgencmdCommandFailure(t *testing.T) {
	runner := &fakeRunner{err: fs.ErrNotExist}
	v := sensor.NewVcgencmd("vcgencmd", runner)

	_, err := v.Temperature(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestNewPrefersFiles(t *testing.T) {
	tempPath := writeFile(t, "61500")
	runner := &fakeRunner{outputs: map[string]string{
		"vcgencmd measure_clock arm": "frequency(48)=1800000000",
	}}

	r, err := sensor.New(config.SensorConfig{
		Source:          config.SourceVcgencmd,
		TemperatureFile: tempPath,
	}, "vcgencmd", sensor.Options{Runner: runner})
	require.NoError(t, err)
	defer r.Close()

	temp, err := r.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 61.5, temp, 1e-9)

	freq, err := r.Frequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1800.0, freq, 1e-9)

	assert.Equal(t, []string{"vcgencmd measure_clock arm"}, runner.calls)
}

type fixedSource struct{ temp, freq float64 }

func (f fixedSource) Temperature(context.Context) (float64, error) { return f.temp, nil }
func (f fixedSource) Frequency(context.Context) (float64, error)   { return f.freq, nil }

func TestNewNVMLSource(t *testing.T) {
	closed := false
	r, err := sensor.New(config.SensorConfig{Source: config.SourceNVML}, "", sensor.Options{
		NVML: func() (sensor.Source, func() error, error) {
			return fixedSource{temp: 40, freq: 1200}, func() error { closed = true; return nil }, nil
		},
	})
	require.NoError(t, err)

	temp, err := r.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 40.0, temp, 1e-9)

	require.NoError(t, r.Close())
	assert.True(t, closed)
}

func TestNewNVMLUnavailable(t *testing.T) {
	_, err := sensor.New(config.SensorConfig{Source: config.SourceNVML}, "", sensor.Options{
		NVML: func() (sensor.Source, func() error, error) {
			return nil, nil, fmt.Errorf("libnvidia-ml.so not found")
		},
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
}

func TestNewUnknownSource(t *testing.T) {
	_, err := sensor.New(config.SensorConfig{Source: "thermometer"}, "", sensor.Options{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrUnknownSource))
}

func TestHwmonFrequencyFromFile(t *testing.T) {
	h := &sensor.Hwmon{FrequencyFile: writeFile(t, "2400000")}

	freq, err := h.Frequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2400.0, freq, 1e-9)
}

func TestNewReaderMixesSources(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"vcgencmd measure_clock arm": "frequency(48)=1200000000",
	}}
	r := sensor.NewReader(
		sensor.File{Path: writeFile(t, "47250")},
		sensor.NewVcgencmd("vcgencmd", runner),
	)

	temp, err := r.Temperature(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 47.25, temp, 1e-9)

	freq, err := r.Frequency(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1200.0, freq, 1e-9)

	assert.Equal(t, []string{"vcgencmd measure_clock arm"}, runner.calls)
	assert.NoError(t, r.Close())
}
