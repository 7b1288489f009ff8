// Package cli implements the stressberry command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/stressberry/internal/config"
	"codeberg.org/mutker/stressberry/internal/errors"
	"codeberg.org/mutker/stressberry/internal/gpu"
	"codeberg.org/mutker/stressberry/internal/logger"
	"codeberg.org/mutker/stressberry/internal/sensor"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stressberry",
	Short: "Stress test and measure the CPU thermal response of a small board computer",
	Long: `stressberry idles the CPU, puts it under full load, and idles it again,
sampling temperature and clock frequency throughout. The series is written as
YAML for plotting and can also be stored in a SQLite database.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("stressberry failed")
		} else {
			logger.Error().Err(err).Msg("stressberry failed")
		}
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		return err
	}
	logger.Debug().Msg("Config loaded")

	return nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(ctx, cancel)
	return ctx, cancel
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}

func openReader() (*sensor.Reader, error) {
	return sensor.New(cfg.Sensor, cfg.Tools.Vcgencmd, sensor.Options{NVML: openGPU})
}

func openGPU() (sensor.Source, func() error, error) {
	s, err := gpu.Open(0)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}
