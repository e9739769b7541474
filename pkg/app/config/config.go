package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"v543/pkg/scpi"
)

var (
	// ErrUnknownFormat is returned for config files which are neither yaml nor toml.
	ErrUnknownFormat = errors.New("unknown config file format")
	// ErrInvalidValue is returned for config values out of their domain.
	ErrInvalidValue = errors.New("invalid config value")
)

// Config defines the struct of global config and the struct of the configuration file.
// Durations are configured as integers (...Int) and converted by LoadConfig.
type Config struct {
	Flag      FlagConfig      `yaml:"-" toml:"-"`
	Gpio      GpioConfig      `yaml:"gpio" toml:"gpio"`
	SCPI      SCPIConfig      `yaml:"scpi" toml:"scpi"`
	Identity  scpi.Identity   `yaml:"identity" toml:"identity"`
	Emulator  EmulatorConfig  `yaml:"emulator" toml:"emulator"`
	Debug     DebugConfig     `yaml:"debug" toml:"debug"`
	Webserver WebserverConfig `yaml:"webserver" toml:"webserver"`
	MQTT      MQTTConfig      `yaml:"mqtt" toml:"mqtt"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	Version    bool
	LogLevel   string
	ConfigFile string
}

// GpioConfig defines the gpio driver and the BCM line offsets of the instrument.
type GpioConfig struct {
	// Driver is gpiod, gpiomem or emulated.
	Driver string `yaml:"driver" toml:"driver"`
	// Chip is the gpiod character device, e.g. gpiochip0.
	Chip string `yaml:"chip" toml:"chip"`
	// Terminator is the bias of the inputs: pullup, pulldown or none.
	Terminator string `yaml:"terminator" toml:"terminator"`
	Ready      int    `yaml:"ready" toml:"ready"`
	Clock      int    `yaml:"clock" toml:"clock"`
	Load       int    `yaml:"load" toml:"load"`
	Data       int    `yaml:"data" toml:"data"`
	LedReady   int    `yaml:"ledready" toml:"ledready"`
	LedSCPI    int    `yaml:"ledscpi" toml:"ledscpi"`
}

// SCPIConfig defines the SCPI server.
type SCPIConfig struct {
	Listen   string `yaml:"listen" toml:"listen"`
	Revision string `yaml:"revision" toml:"revision"`
	MaxLine  int    `yaml:"maxline" toml:"maxline"`
	// TimeoutInt is the idle timeout of a session in seconds, 0 waits forever.
	TimeoutInt int           `yaml:"timeout" toml:"timeout"`
	Timeout    time.Duration `yaml:"-" toml:"-"`
}

// EmulatorConfig defines the emulated instrument used with the emulated gpio driver.
type EmulatorConfig struct {
	// FrameString is the raw frame as hex number, e.g. 01120001.
	FrameString string `yaml:"frame" toml:"frame"`
	Frame       uint32 `yaml:"-" toml:"-"`
	// IntervalInt is the time between two data ready edges in milliseconds.
	IntervalInt int           `yaml:"interval" toml:"interval"`
	Interval    time.Duration `yaml:"-" toml:"-"`
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url" toml:"url"`
	Webservices map[string]bool `yaml:"webservices" toml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection string `yaml:"connection" toml:"connection"`
	ClientID   string `yaml:"clientid" toml:"clientid"`
	Topic      string `yaml:"topic" toml:"topic"`
	// IntervalInt is the maximum time between two messages in seconds,
	// a change of mode or range is published at once.
	IntervalInt int           `yaml:"interval" toml:"interval"`
	Interval    time.Duration `yaml:"-" toml:"-"`
}

// DebugConfig defines the struct of the debug configuration and configuration file
type DebugConfig struct {
	File       io.WriteCloser `yaml:"-" toml:"-"`
	Flag       int            `yaml:"-" toml:"-"`
	FlagString string         `yaml:"flag" toml:"flag"`
	FileString string         `yaml:"file" toml:"file"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Flag: FlagConfig{},
		Gpio: GpioConfig{
			Driver:     "gpiod",
			Chip:       "gpiochip0",
			Terminator: "pullup",
			Ready:      17,
			Clock:      18,
			Load:       27,
			Data:       22,
			LedReady:   23,
			LedSCPI:    24,
		},
		SCPI: SCPIConfig{
			Listen:   "0.0.0.0:5555",
			Revision: "lxi",
			MaxLine:  63,
		},
		Identity: scpi.DefaultIdentity,
		Emulator: EmulatorConfig{
			FrameString: "01120001",
			IntervalInt: 500,
		},
		Debug: DebugConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"data":    true,
				"scpi":    true,
				"metrics": true,
			},
		},
		MQTT: MQTTConfig{
			ClientID:    "v543",
			Topic:       "v543/reading",
			IntervalInt: 5,
		},
	}
}

// LoadConfig reads the config file, applies the flags and converts the derived fields.
func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
	}

	if c.Flag.LogLevel != "" {
		c.Debug.FlagString = c.Flag.LogLevel
	}

	if err := c.convert(); err != nil {
		return err
	}

	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open debug file %q: %w", c.Debug.FileString, err)
	}
	return nil
}

func (c *Config) readConfigFile() error {
	switch ext := strings.ToLower(filepath.Ext(c.Flag.ConfigFile)); ext {
	case ".toml":
		_, err := toml.DecodeFile(c.Flag.ConfigFile, c)
		return err
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil && err != io.EOF {
		return err
	}

	return nil
}

// convert validates the configured values and sets the derived fields.
func (c *Config) convert() error {
	switch c.Gpio.Driver {
	case "gpiod", "gpiomem", "emulated":
	default:
		return fmt.Errorf("%w: gpio driver %q", ErrInvalidValue, c.Gpio.Driver)
	}

	switch c.Gpio.Terminator {
	case "pullup", "pulldown", "none":
	default:
		return fmt.Errorf("%w: gpio terminator %q", ErrInvalidValue, c.Gpio.Terminator)
	}

	c.SCPI.Revision = strings.ToLower(c.SCPI.Revision)
	switch c.SCPI.Revision {
	case "legacy", "lxi":
	default:
		return fmt.Errorf("%w: scpi revision %q", ErrInvalidValue, c.SCPI.Revision)
	}
	if c.SCPI.MaxLine <= 0 {
		return fmt.Errorf("%w: scpi maxline %d", ErrInvalidValue, c.SCPI.MaxLine)
	}

	f, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(c.Emulator.FrameString), "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("%w: emulator frame %q", ErrInvalidValue, c.Emulator.FrameString)
	}
	c.Emulator.Frame = uint32(f)

	if c.Emulator.IntervalInt <= 0 {
		return fmt.Errorf("%w: emulator interval %d", ErrInvalidValue, c.Emulator.IntervalInt)
	}

	c.SCPI.Timeout = time.Duration(c.SCPI.TimeoutInt) * time.Second
	c.Emulator.Interval = time.Duration(c.Emulator.IntervalInt) * time.Millisecond
	c.MQTT.Interval = time.Duration(c.MQTT.IntervalInt) * time.Second
	return nil
}

func (c *Config) setDebugConfig() (err error) {
	// defines Debug section of global.Config
	switch c.Debug.FlagString {
	case "trace", "full":
		c.Debug.Flag = debug.Full
	case "debug":
		c.Debug.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "error":
		c.Debug.Flag = debug.Error | debug.Fatal
	default:
		c.Debug.Flag = debug.Standard
	}

	switch c.Debug.FileString {
	case "stderr":
		c.Debug.File = os.Stderr
	case "stdout":
		c.Debug.File = os.Stdout
	default:
		if c.Debug.File, err = os.OpenFile(c.Debug.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
