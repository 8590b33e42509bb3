package mqttpub

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tbmq/thermobeacon/config"
)

// DiscoveryDevice groups the per-sensor entities under one device in Home
// Assistant.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryConfig is one Home Assistant MQTT discovery config message.
// See https://www.home-assistant.io/integrations/mqtt/
type DiscoveryConfig struct {
	DeviceClass       string          `json:"device_class"`
	StateTopic        string          `json:"state_topic"`
	UnitOfMeasurement string          `json:"unit_of_measurement"`
	ValueTemplate     string          `json:"value_template"`
	UniqueID          string          `json:"unique_id"`
	Device            DiscoveryDevice `json:"device"`
}

type discoveryMessage struct {
	topic   string
	payload DiscoveryConfig
}

func discoveryMessages(device config.Device) []discoveryMessage {
	manufacturer := device.Manufacturer
	if manufacturer == "" {
		manufacturer = "Unknown"
	}
	model := device.Model
	if model == "" {
		model = "Smart hygrometer"
	}
	haDevice := DiscoveryDevice{
		Identifiers:  []string{device.MAC},
		Name:         device.Name,
		Manufacturer: manufacturer,
		Model:        model,
	}

	macKey := strings.ReplaceAll(device.MAC, ":", "_")
	stateTopic := Topic(device)

	return []discoveryMessage{
		{
			topic: fmt.Sprintf("homeassistant/sensor/thermobeacon/%s_temperature/config", macKey),
			payload: DiscoveryConfig{
				DeviceClass:       "temperature",
				StateTopic:        stateTopic,
				UnitOfMeasurement: "°C",
				ValueTemplate:     "{{ value_json.data.temperature}}",
				UniqueID:          device.MAC + "_temp",
				Device:            haDevice,
			},
		},
		{
			topic: fmt.Sprintf("homeassistant/sensor/thermobeacon/%s_humidity/config", macKey),
			payload: DiscoveryConfig{
				DeviceClass:       "humidity",
				StateTopic:        stateTopic,
				UnitOfMeasurement: "%",
				ValueTemplate:     "{{ value_json.data.humidity}}",
				UniqueID:          device.MAC + "_humidity",
				Device:            haDevice,
			},
		},
		{
			topic: fmt.Sprintf("homeassistant/sensor/thermobeacon/%s_battery/config", macKey),
			payload: DiscoveryConfig{
				DeviceClass:       "battery",
				StateTopic:        stateTopic,
				UnitOfMeasurement: "%",
				ValueTemplate:     "{{ value_json.data.battery_level}}",
				UniqueID:          device.MAC + "_battery",
				Device:            haDevice,
			},
		},
	}
}

// PublishDiscovery announces every configured device to Home Assistant.
func (p *Publisher) PublishDiscovery(devices []config.Device) error {
	for _, device := range devices {
		for _, msg := range discoveryMessages(device) {
			payload, err := json.Marshal(msg.payload)
			if err != nil {
				return errors.Wrapf(err, "failed to marshal discovery config for %s", device.Name)
			}
			log.Debugf("publishing discovery message for %s to %s", device.Name, msg.topic)
			token := p.client.Publish(msg.topic, 1, false, payload)
			token.Wait()
			if err := token.Error(); err != nil {
				return errors.Wrapf(err, "failed to publish discovery message to %s", msg.topic)
			}
		}
	}
	return nil
}
