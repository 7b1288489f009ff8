package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/stressberry/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultDuration  = 300 * time.Second
	DefaultIdle      = 150 * time.Second
	DefaultInterval  = time.Second
	DefaultCooldown  = 60 * time.Second
	DefaultTolerance = 0.2
	DefaultLogLevel  = "info"
	DefaultEnvPrefix = "STRESSBERRY"
	DefaultMetricsDB = "/var/lib/stressberry/metrics.db"

	configName = "stressberry"
	configEnv  = "STRESSBERRY_CONFIG"
)

type Config struct {
	Name      string        `mapstructure:"name"`
	Duration  time.Duration `mapstructure:"duration"`
	Idle      time.Duration `mapstructure:"idle"`
	Cores     int           `mapstructure:"cores"`
	Cpuburn   bool          `mapstructure:"cpuburn"`
	Interval  time.Duration `mapstructure:"interval"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
	Tolerance float64       `mapstructure:"tolerance"`
	LogLevel  string        `mapstructure:"log_level"`

	Sensor  SensorConfig  `mapstructure:"sensor"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Ambient AmbientConfig `mapstructure:"ambient"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type SensorConfig struct {
	Source          SensorSource `mapstructure:"source"`
	TemperatureFile string       `mapstructure:"temperature_file"`
	FrequencyFile   string       `mapstructure:"frequency_file"`
	HwmonKey        string       `mapstructure:"hwmon_key"`
}

type ToolsConfig struct {
	Stress   string `mapstructure:"stress"`
	Cpuburn  string `mapstructure:"cpuburn"`
	Vcgencmd string `mapstructure:"vcgencmd"`
}

type AmbientConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	Type    string `mapstructure:"type"`
	Pin     string `mapstructure:"pin"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"name":             "name",
	"duration":         "duration",
	"idle":             "idle",
	"cores":            "cores",
	"cpuburn":          "cpuburn",
	"interval":         "interval",
	"cooldown":         "cooldown",
	"tolerance":        "tolerance",
	"log-level":        "log_level",
	"temperature-file": "sensor.temperature_file",
	"frequency-file":   "sensor.frequency_file",
	"source":           "sensor.source",
	"ambient":          "ambient.enabled",
	"ambient-type":     "ambient.type",
	"ambient-pin":      "ambient.pin",
	"metrics":          "metrics.enabled",
	"metrics-db":       "metrics.db_path",
}

// RegisterFlags defines every configuration flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "Name of this run, stored in the results")
	fs.DurationP("duration", "d", DefaultDuration, "Stress test duration")
	fs.DurationP("idle", "i", DefaultIdle, "Idle time before and after the stress test")
	fs.IntP("cores", "c", 0, "Number of CPU cores to stress (0 = all)")
	fs.Bool("cpuburn", false, "Use cpuburn instead of stress")
	fs.Duration("interval", DefaultInterval, "Sampling interval")
	fs.Duration("cooldown", DefaultCooldown, "Poll interval while waiting for the CPU to cool down")
	fs.Float64("tolerance", DefaultTolerance, "Temperature delta considered stable during cooldown")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("temperature-file", "", "Read temperature from this file (millidegrees)")
	fs.String("frequency-file", "", "Read CPU frequency from this file (kHz)")
	fs.String("source", string(SourceVcgencmd), "Sensor source when no file is given (vcgencmd, hwmon, nvml)")
	fs.Bool("ambient", false, "Measure ambient temperature")
	fs.String("ambient-type", "2302", "Ambient sensor type (11, 22, 2302)")
	fs.String("ambient-pin", "23", "Ambient sensor GPIO pin")
	fs.Bool("metrics", false, "Store samples in the metrics database")
	fs.String("metrics-db", DefaultMetricsDB, "Metrics database path")
}

// Load reads configuration from the config file, environment and flags, in
// increasing order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	if path, ok := os.LookupEnv(configEnv); ok {
		o.configPath = path
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o.configPath); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errFactory.Wrap(errors.ErrBindFlags, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "")
	v.SetDefault("duration", DefaultDuration)
	v.SetDefault("idle", DefaultIdle)
	v.SetDefault("cores", 0)
	v.SetDefault("cpuburn", false)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("cooldown", DefaultCooldown)
	v.SetDefault("tolerance", DefaultTolerance)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetDefault("sensor.source", string(SourceVcgencmd))
	v.SetDefault("sensor.temperature_file", "")
	v.SetDefault("sensor.frequency_file", "")
	v.SetDefault("sensor.hwmon_key", "")

	v.SetDefault("tools.stress", "stress")
	v.SetDefault("tools.cpuburn", "cpuburn")
	v.SetDefault("tools.vcgencmd", "vcgencmd")

	v.SetDefault("ambient.enabled", false)
	v.SetDefault("ambient.driver", "iio")
	v.SetDefault("ambient.type", "2302")
	v.SetDefault("ambient.pin", "23")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.db_path", DefaultMetricsDB)
}

// readConfigFile loads an explicit config file, or searches /etc when path is
// unset. An empty explicit path disables the config file.
func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	if _, set := os.LookupEnv(configEnv); set {
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType("toml")
	v.AddConfigPath("/etc")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Duration <= 0 {
		return errFactory.WithData(errors.ErrInvalidDuration, c.Duration)
	}
	if c.Idle < 0 {
		return errFactory.WithData(errors.ErrInvalidDuration, c.Idle)
	}
	if c.Interval <= 0 || c.Cooldown <= 0 {
		return errFactory.New(errors.ErrInvalidInterval)
	}
	if c.Tolerance <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "tolerance must be positive")
	}
	if c.Cores < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "cores must not be negative")
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if !c.Sensor.Source.IsValid() {
		return errFactory.WithData(errors.ErrInvalidConfig, "unknown sensor source: "+string(c.Sensor.Source))
	}
	if c.Metrics.Enabled && c.Metrics.DBPath == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "metrics database path is empty")
	}

	return nil
}
