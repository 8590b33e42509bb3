// Package config loads and merges the application configuration from an
// optional config file, the environment (APP_ prefix) and an optional .env
// file, in that order of increasing precedence.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/tbmq/thermobeacon/thermobeacon"
)

// Device is one known ThermoBeacon to read values from.
type Device struct {
	// BLE MAC of the device
	MAC string `mapstructure:"mac"`
	// human-readable name, used in the MQTT message and default topic
	Name string `mapstructure:"name"`
	// topic of the MQTT message, defaults to ThermoBeacon/<name>
	Topic string `mapstructure:"topic"`
	// QoS level of the MQTT message, defaults to 1
	QoS *int `mapstructure:"qos"`
	// should the broker retain the message?
	Retained     bool   `mapstructure:"retained"`
	Manufacturer string `mapstructure:"manufacturer"`
	Model        string `mapstructure:"model"`
}

// MQTT configures the broker connection. A missing section (or empty URL)
// means results are printed to stdout instead.
type MQTT struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// PasswordFile is read into Password when Password itself is empty.
	PasswordFile string `mapstructure:"password_file"`
	// keep alive interval in seconds
	KeepAlive int `mapstructure:"keep_alive"`
	// publish Home Assistant auto-discovery messages at startup
	HomeAssistant bool `mapstructure:"homeassistant"`
}

// Health configures the health check endpoint, only served in scheduled
// runs.
type Health struct {
	Active bool   `mapstructure:"active"`
	IP     string `mapstructure:"ip"`
	Port   int    `mapstructure:"port"`
}

type Config struct {
	Devices []Device `mapstructure:"devices"`
	// cron expression for the poll cadence; empty means run once
	Cron string `mapstructure:"cron"`
	// timezone the cron expression is evaluated in; falls back to $TZ, then UTC
	Timezone      string `mapstructure:"timezone"`
	SecondsToScan int    `mapstructure:"seconds_to_scan"`
	MQTT          *MQTT  `mapstructure:"mqtt"`
	Health        Health `mapstructure:"health"`
	LogLevel      string `mapstructure:"log_level"`
}

const defaultTimezone = "UTC"

// Load reads the configuration. An empty path searches for ./config.yml and
// tolerates its absence; an explicit path must exist.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("seconds_to_scan", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("health.active", false)
	v.SetDefault("health.ip", "127.0.0.1")
	v.SetDefault("health.port", 8080)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"cron", "timezone", "seconds_to_scan", "log_level",
		"mqtt.url", "mqtt.username", "mqtt.password", "mqtt.password_file",
		"mqtt.keep_alive", "mqtt.homeassistant",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return Config{}, errors.Wrap(err, "failed to read config file")
		}
		log.Debugf("no config file found, using environment only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse configuration")
	}

	for _, device := range cfg.Devices {
		if _, err := thermobeacon.ParseMAC(device.MAC); err != nil {
			return Config{}, errors.Wrapf(err, "device %q", device.Name)
		}
		if device.Name == "" {
			return Config{}, errors.Errorf("device %s has no name", device.MAC)
		}
	}

	if cfg.MQTT != nil && cfg.MQTT.URL == "" {
		cfg.MQTT = nil
	}
	if cfg.MQTT != nil {
		if cfg.MQTT.KeepAlive <= 0 {
			cfg.MQTT.KeepAlive = 60
		}
		if cfg.MQTT.Password == "" && cfg.MQTT.PasswordFile != "" {
			password, err := os.ReadFile(cfg.MQTT.PasswordFile)
			if err != nil {
				return Config{}, errors.Wrapf(err, "password_file %s configured, but not readable", cfg.MQTT.PasswordFile)
			}
			cfg.MQTT.Password = strings.TrimRight(string(password), "\r\n")
		}
	}

	if cfg.Timezone == "" {
		cfg.Timezone = os.Getenv("TZ")
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}

	return cfg, nil
}
