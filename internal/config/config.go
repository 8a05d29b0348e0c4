// Package config loads the daemon configuration from defaults, an optional
// YAML file and PULSESYNC_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/pulse-sync/internal/controller"
	"github.com/sweeney/pulse-sync/internal/gpio"
	"github.com/sweeney/pulse-sync/internal/logic"
)

// EnvPrefix prefixes environment overrides, e.g. PULSESYNC_MQTT_BROKER.
const EnvPrefix = "PULSESYNC"

// fileName is the config file searched for when no path is given.
const fileName = "pulse-sync"

// Config is the effective daemon configuration.
type Config struct {
	RateHz        float64 `mapstructure:"rate_hz" yaml:"rate_hz"`
	ExposureUs    int     `mapstructure:"exposure_us" yaml:"exposure_us"`
	BaseDelayUs   int     `mapstructure:"base_delay_us" yaml:"base_delay_us"`
	DelayOffsetUs int     `mapstructure:"delay_offset_us" yaml:"delay_offset_us"`

	GPIO     GPIO     `mapstructure:"gpio" yaml:"gpio"`
	Pins     Pins     `mapstructure:"pins" yaml:"pins"`
	MQTT     MQTT     `mapstructure:"mqtt" yaml:"mqtt"`
	Log      Log      `mapstructure:"log" yaml:"log"`
	Realtime Realtime `mapstructure:"realtime" yaml:"realtime"`

	HTTP           string        `mapstructure:"http" yaml:"http"`
	StatusInterval time.Duration `mapstructure:"status_interval" yaml:"status_interval"`

	// Source is the config file that was read, if any.
	Source string `mapstructure:"-" yaml:"-"`
}

type GPIO struct {
	Chip string `mapstructure:"chip" yaml:"chip"`
}

// Pins are BCM line offsets. -1 leaves an output unconnected.
type Pins struct {
	Heartbeat int   `mapstructure:"heartbeat" yaml:"heartbeat"`
	Camera    int   `mapstructure:"camera" yaml:"camera"`
	Emitter0  []int `mapstructure:"emitter0" yaml:"emitter0,flow"` // warm-up, fire
	Emitter1  []int `mapstructure:"emitter1" yaml:"emitter1,flow"` // warm-up, fire
}

type MQTT struct {
	Broker   string `mapstructure:"broker" yaml:"broker"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
}

type Log struct {
	File string `mapstructure:"file" yaml:"file"`
}

type Realtime struct {
	Enabled  bool `mapstructure:"enabled" yaml:"enabled"`
	Priority int  `mapstructure:"priority" yaml:"priority"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rate_hz", logic.DefaultRateHz)
	v.SetDefault("exposure_us", logic.DefaultExposureUs)
	v.SetDefault("base_delay_us", logic.DefaultBaseDelayUs)
	v.SetDefault("delay_offset_us", logic.DefaultDelayOffsetUs)
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("pins.heartbeat", gpio.NoPin)
	v.SetDefault("pins.camera", gpio.DefaultPinCamera)
	v.SetDefault("pins.emitter0", []int{gpio.DefaultPinEmitter0Warmup, gpio.DefaultPinEmitter0Fire})
	v.SetDefault("pins.emitter1", []int{gpio.DefaultPinEmitter1Warmup, gpio.DefaultPinEmitter1Fire})
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "pulse-sync")
	v.SetDefault("log.file", "")
	v.SetDefault("realtime.enabled", false)
	v.SetDefault("realtime.priority", 50)
	v.SetDefault("http", "")
	v.SetDefault("status_interval", time.Minute)
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("config: defaults: %v", err))
	}
	return c
}

// Load reads the configuration. With an empty path, pulse-sync.yaml is
// searched in /etc/pulse-sync, $HOME/.pulse-sync and the working directory,
// and a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.FromSlash("/etc/pulse-sync"))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pulse-sync"))
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.Source = v.ConfigFileUsed()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings the controller does not check itself.
func (c Config) Validate() error {
	var errs []error
	if len(c.Pins.Emitter0) != 2 {
		errs = append(errs, fmt.Errorf("pins.emitter0: want 2 pins, got %d", len(c.Pins.Emitter0)))
	}
	if len(c.Pins.Emitter1) != 2 {
		errs = append(errs, fmt.Errorf("pins.emitter1: want 2 pins, got %d", len(c.Pins.Emitter1)))
	}
	if c.StatusInterval < 0 {
		errs = append(errs, fmt.Errorf("status_interval: %v is negative", c.StatusInterval))
	}
	if c.Realtime.Enabled && (c.Realtime.Priority < 1 || c.Realtime.Priority > 99) {
		errs = append(errs, fmt.Errorf("realtime.priority: %d outside 1..99", c.Realtime.Priority))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Controller returns the controller startup parameters.
func (c Config) Controller() controller.Config {
	return controller.Config{
		RateHz:          c.RateHz,
		ExposureUs:      c.ExposureUs,
		BaseDelayUs:     c.BaseDelayUs,
		DelayOffsetUs:   c.DelayOffsetUs,
		MirrorHeartbeat: c.Pins.Heartbeat != gpio.NoPin,
	}
}

// YAML renders the configuration in the file format Load reads.
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// LogWriter returns a size-rotated log file writer.
func LogWriter(file string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	}
}
