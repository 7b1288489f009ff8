package cli

import (
	"fmt"

	"codeberg.org/mutker/stressberry/internal/ambient"
	"codeberg.org/mutker/stressberry/internal/cooldown"
	"codeberg.org/mutker/stressberry/internal/logger"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(measureCmd)
	rootCmd.AddCommand(cooldownCmd)
}

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Print the current CPU temperature and frequency",
	Args:  cobra.NoArgs,
	RunE:  runMeasure,
}

var cooldownCmd = &cobra.Command{
	Use:   "cooldown",
	Short: "Wait until the CPU temperature stops changing",
	Args:  cobra.NoArgs,
	RunE:  runCooldown,
}

func runMeasure(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	reader, err := openReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	temperature, err := reader.Temperature(ctx)
	if err != nil {
		return err
	}
	frequency, err := reader.Frequency(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Temperature: %.1f°C\n", temperature)
	fmt.Fprintf(out, "Frequency:   %.0f MHz\n", frequency)

	if cfg.Ambient.Enabled {
		adapter := ambient.NewAdapter(cfg.Ambient.Driver, logger.Default())
		value, ok, err := adapter.ReadTemperature(ctx, cfg.Ambient.Type, cfg.Ambient.Pin)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(out, "Ambient:     %.1f°C\n", value)
		} else {
			fmt.Fprintln(out, "Ambient:     unavailable")
		}
	}

	return nil
}

func runCooldown(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	reader, err := openReader()
	if err != nil {
		return err
	}
	defer reader.Close()

	monitor := &cooldown.Monitor{
		Source:    reader,
		Interval:  cfg.Cooldown,
		Tolerance: cfg.Tolerance,
		Logger:    logger.Default(),
	}
	temperature, err := monitor.Wait(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stable at %.1f°C\n", temperature)
	return nil
}
