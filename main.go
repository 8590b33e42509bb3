package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/tbmq/thermobeacon/config"
	"github.com/tbmq/thermobeacon/health"
	"github.com/tbmq/thermobeacon/mqttpub"
	"github.com/tbmq/thermobeacon/schedule"
	"github.com/tbmq/thermobeacon/thermobeacon"
	"github.com/tbmq/thermobeacon/thermobeacon/bleradio"
)

// CLI args
var (
	configPath = flag.String("config", "", "path to the config file (default: ./config.yml if present)")
)

// metrics to expose to Prometheus
var (
	gaugeTemperature    = newGauge("thermobeacon_temperature", "Air temperature (units: degrees Celsius)")
	gaugeHumidity       = newGauge("thermobeacon_humidity", "Relative humidity (units: %)")
	gaugeBattery        = newGauge("thermobeacon_battery_level", "Battery level (units: %, may exceed 100)")
	gaugeMaxTemperature = newGauge("thermobeacon_max_temperature", "Max temperature since reset (units: degrees Celsius)")
	gaugeMinTemperature = newGauge("thermobeacon_min_temperature", "Min temperature since reset (units: degrees Celsius)")
	gaugeUptime         = newGauge("thermobeacon_uptime_seconds", "Seconds since the last device reset")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"mac", "name"},
	)
}

func init() {
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeBattery)
	prometheus.MustRegister(gaugeMaxTemperature)
	prometheus.MustRegister(gaugeMinTemperature)
	prometheus.MustRegister(gaugeUptime)

	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	// logging
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err != nil {
		log.Warnf("unknown log level %q, keeping info", cfg.LogLevel)
	} else {
		log.SetLevel(level)
	}

	targets := make([]thermobeacon.MAC, 0, len(cfg.Devices))
	for _, device := range cfg.Devices {
		mac, err := thermobeacon.ParseMAC(device.MAC)
		if err != nil {
			log.Fatalf("invalid device mac %q: %s", device.MAC, err)
		}
		targets = append(targets, mac)
	}

	// one manager for the lifetime of the process, so repeated runs share
	// the HCI handle
	manager := bleradio.NewManager()
	defer func() {
		if err := manager.Close(); err != nil {
			log.Errorf("failed to close ble device: %s", err)
		}
	}()

	scanner := &thermobeacon.Scanner{
		Manager:    manager,
		ScanWindow: time.Duration(cfg.SecondsToScan) * time.Second,
	}

	var publisher *mqttpub.Publisher
	if cfg.MQTT != nil {
		publisher, err = mqttpub.Connect(*cfg.MQTT)
		if err != nil {
			log.Errorf("failed to connect to mqtt broker: %s", err)
			publisher = nil
		} else {
			defer publisher.Close()
			if cfg.MQTT.HomeAssistant {
				log.Infof("home assistant auto-discovery enabled")
				if err := publisher.PublishDiscovery(cfg.Devices); err != nil {
					log.Errorf("failed to publish discovery messages: %s", err)
				}
			}
		}
	} else {
		log.Infof("no mqtt configuration found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cron == "" {
		log.Infof("no cron expression found, job is executed just once")
		if err := runJob(ctx, scanner, cfg, publisher, targets); err != nil {
			log.Errorf("failed to read and deliver data: %s", err)
			os.Exit(1)
		}
		return
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warnf("unknown timezone %q, falling back to UTC", cfg.Timezone)
		location = time.UTC
	}

	var healthServer *health.Server
	if cfg.Health.Active {
		healthServer = health.NewServer(cfg.Health.IP, cfg.Health.Port)
		healthServer.Start()
		log.Infof("started health check service at http://%s:%d/health", cfg.Health.IP, cfg.Health.Port)
	} else {
		log.Debugf("health check server not active")
	}

	log.Infof("executing job with cron expression %q in %s", cfg.Cron, location)
	err = schedule.Run(ctx, cfg.Cron, location, func() {
		if err := runJob(ctx, scanner, cfg, publisher, targets); err != nil {
			if healthServer != nil {
				healthServer.SetFailed(err)
			}
			log.Errorf("failed to read and deliver data, trying again next time: %s", err)
		} else {
			if healthServer != nil {
				healthServer.SetOK()
			}
			log.Debugf("run was successful")
		}
		if next, err := schedule.Next(cfg.Cron, location, time.Now()); err == nil {
			log.Infof("next job execution %s", next)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("scheduler failed: %s", err)
	}
}

// runJob runs one scan over all configured devices and delivers the results:
// published to the broker when one is configured, printed to stdout
// otherwise.
func runJob(ctx context.Context, scanner *thermobeacon.Scanner, cfg config.Config, publisher *mqttpub.Publisher, targets []thermobeacon.MAC) error {
	log.Debugf("start collecting data")
	results, err := scanner.Scan(ctx, targets)
	if err != nil {
		return errors.Wrap(err, "scan failed")
	}
	log.Debugf("data collected, found %d of %d devices", len(results), len(cfg.Devices))

	if publisher == nil && cfg.MQTT != nil {
		log.Warnf("no usable mqtt connection, results are just printed to the console")
	}

	for _, result := range results {
		device, ok := deviceFor(cfg.Devices, result.MAC)
		if !ok {
			continue
		}
		log.Infof("thermobeacon data from %s: %.2f°C %.2f%% battery %.0f%%", device.Name, result.Temperature, result.Humidity, result.BatteryLevel)

		if publisher != nil {
			if err := publisher.Publish(device, result); err != nil {
				return errors.Wrapf(err, "failed to publish result for %s", device.Name)
			}
		} else {
			payload, err := json.Marshal(mqttpub.Message{Data: result, Name: device.Name})
			if err != nil {
				return errors.Wrap(err, "failed to marshal result")
			}
			fmt.Println(string(payload))
		}

		labels := prometheus.Labels{"mac": result.MAC.String(), "name": device.Name}
		gaugeTemperature.With(labels).Set(result.Temperature)
		gaugeHumidity.With(labels).Set(result.Humidity)
		gaugeBattery.With(labels).Set(result.BatteryLevel)
		gaugeMaxTemperature.With(labels).Set(result.MaxTemperature)
		gaugeMinTemperature.With(labels).Set(result.MinTemperature)
		gaugeUptime.With(labels).Set(float64(result.Uptime))
	}

	return nil
}

func deviceFor(devices []config.Device, mac thermobeacon.MAC) (config.Device, bool) {
	for _, device := range devices {
		parsed, err := thermobeacon.ParseMAC(device.MAC)
		if err == nil && parsed == mac {
			return device, true
		}
	}
	return config.Device{}, false
}
