// Package report writes the results file of a run.
package report

import (
	"os"

	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/metrics"
	"gopkg.in/yaml.v3"
)

// Results is the series of one run, in the column layout plotting tools read.
type Results struct {
	Name         string     `yaml:"name"`
	Time         []float64  `yaml:"time"`
	Temperature  []float64  `yaml:"temperature"`
	CPUFrequency []float64  `yaml:"cpu frequency"`
	Ambient      []*float64 `yaml:"ambient,omitempty"`
}

// FromSamples converts a sampled series. time is in seconds since the first
// sample. The ambient column is kept only when at least one sample has it.
func FromSamples(name string, samples []metrics.Sample) Results {
	r := Results{
		Name:         name,
		Time:         make([]float64, 0, len(samples)),
		Temperature:  make([]float64, 0, len(samples)),
		CPUFrequency: make([]float64, 0, len(samples)),
	}

	hasAmbient := false
	ambient := make([]*float64, 0, len(samples))
	for _, s := range samples {
		r.Time = append(r.Time, s.Elapsed.Seconds())
		r.Temperature = append(r.Temperature, s.Temperature)
		r.CPUFrequency = append(r.CPUFrequency, s.Frequency)
		ambient = append(ambient, s.Ambient)
		if s.Ambient != nil {
			hasAmbient = true
		}
	}
	if hasAmbient {
		r.Ambient = ambient
	}

	return r
}

// Write marshals r to path, replacing any existing file.
func Write(path string, r Results) error {
	errFactory := errors.New()

	data, err := yaml.Marshal(r)
	if err != nil {
		return errFactory.Wrap(errors.ErrWriteReport, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errFactory.WithData(errors.ErrWriteReport, struct {
			Path  string
			Error string
		}{
			Path:  path,
			Error: err.Error(),
		})
	}

	return nil
}

// Read loads a results file written by Write.
func Read(path string) (Results, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(path)
	if err != nil {
		return Results{}, errFactory.Wrap(errors.ErrInternal, err)
	}

	var r Results
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Results{}, errFactory.Wrap(errors.ErrInternal, err)
	}

	return r, nil
}
