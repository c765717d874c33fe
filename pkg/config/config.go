// Package config loads the daemon configuration from defaults, a YAML
// file, environment variables and command line flags, in that order.
package config

import (
	"flag"
	"io/ioutil"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/max1187x/pkg/driver"
	"github.com/robotalks/max1187x/pkg/fwupdate"
)

// Environment variables
const (
	EnvConfig  = "TSC_CONFIG"
	EnvBus     = "TSC_BUS"
	EnvMQTTURL = "TSC_MQTT_URL"
	EnvListen  = "TSC_LISTEN"
)

// AppID scopes the machine ID used as default device name.
const AppID = "max1187x"

// ErrInvalidConfig indicates a configuration value out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the daemon configuration.
type Config struct {
	ConfigFile string `yaml:"-"`

	// Device names the controller in published topics.
	Device  string `yaml:"device"`
	Bus     string `yaml:"bus"`
	Address uint   `yaml:"address"`
	// ResetGPIO is the sysfs value file of the reset line.
	ResetGPIO string `yaml:"reset_gpio"`

	Window        int           `yaml:"window"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	QueryTimeout  time.Duration `yaml:"query_timeout"`
	CRCDelay      time.Duration `yaml:"crc_delay"`
	ResumePOR     bool          `yaml:"enable_resume_por"`
	WakeupGesture bool          `yaml:"enable_wakeup_gesture"`
	// UpdateOnStart validates the firmware when the daemon starts.
	UpdateOnStart bool `yaml:"update_on_start"`

	Firmware fwupdate.Catalog `yaml:"firmware"`

	MQTTURL string `yaml:"mqtt_url"`
	Listen  string `yaml:"listen"`
	Dump    string `yaml:"dump"`
}

var builtinConfig = Config{
	Bus:          "/dev/i2c-1",
	Address:      0x48,
	PollInterval: 10 * time.Millisecond,
	QueryTimeout: driver.DefaultQueryTimeout,
}

var defaultConfig = builtinConfig

func init() {
	applyEnv(&defaultConfig)
}

func applyEnv(c *Config) {
	if val := os.Getenv(EnvConfig); val != "" {
		c.ConfigFile = val
	}
	if val := os.Getenv(EnvBus); val != "" {
		c.Bus = val
	}
	if val := os.Getenv(EnvMQTTURL); val != "" {
		c.MQTTURL = val
	}
	if val := os.Getenv(EnvListen); val != "" {
		c.Listen = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "YAML config file.")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Device name, machine ID if empty.")
	flag.StringVar(&defaultConfig.Bus, "bus", defaultConfig.Bus, "I2C bus device.")
	flag.UintVar(&defaultConfig.Address, "addr", defaultConfig.Address, "I2C slave address.")
	flag.StringVar(&defaultConfig.ResetGPIO, "reset-gpio", defaultConfig.ResetGPIO, "Sysfs value file of the reset GPIO.")
	flag.IntVar(&defaultConfig.Window, "window", defaultConfig.Window, "Words read at once in raw image mode, 0 to disable.")
	flag.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Report poll interval without interrupt.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Websocket listen address.")
	flag.StringVar(&defaultConfig.Dump, "dump", defaultConfig.Dump, "File to dump reports into.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Resolve merges the config file into the defaults. Environment
// variables and flags given on the command line take precedence over
// the file.
func Resolve() (*Config, error) {
	if path := defaultConfig.ConfigFile; path != "" {
		if err := defaultConfig.LoadFile(path); err != nil {
			return nil, err
		}
		applyEnv(&defaultConfig)
		if flag.Parsed() {
			flag.CommandLine.Parse(os.Args[1:])
		}
	}
	conf := NewConfig()
	if conf.Device == "" {
		conf.Device = DefaultDevice()
	}
	return conf, conf.Validate()
}

// LoadFile decodes a YAML file into c.
func (c *Config) LoadFile(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	return c.Load(data)
}

// Load decodes YAML into c, fields absent are kept.
func (c *Config) Load(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "config")
	}
	return nil
}

// Validate checks values are in range.
func (c *Config) Validate() error {
	if c.Address > 0x7F {
		return errors.Wrapf(ErrInvalidConfig, "address %#x", c.Address)
	}
	if c.Window < 0 || c.Window == 1 {
		return errors.Wrapf(ErrInvalidConfig, "window %d", c.Window)
	}
	for _, m := range c.Firmware.Mappings {
		if m.FileSize <= 0 || m.FileSize > fwupdate.MaxImageSize || m.CodeSize <= 0 || m.CodeSize > m.FileSize {
			return errors.Wrapf(ErrInvalidConfig, "firmware %s filesize %d codesize %d",
				m.Filename, m.FileSize, m.CodeSize)
		}
	}
	return nil
}

// DriverConfig creates the driver configuration.
func (c *Config) DriverConfig() driver.Config {
	dc := driver.Config{
		Window:        c.Window,
		PollInterval:  c.PollInterval,
		QueryTimeout:  c.QueryTimeout,
		CRCDelay:      c.CRCDelay,
		ResumePOR:     c.ResumePOR,
		WakeupGesture: c.WakeupGesture,
	}
	if len(c.Firmware.Mappings) > 0 {
		catalog := c.Firmware
		dc.Catalog = &catalog
	}
	return dc
}

// DefaultDevice derives a device name from the machine ID.
func DefaultDevice() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return AppID
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
