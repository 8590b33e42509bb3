// Package mqttpub delivers completed readings to an MQTT broker.
package mqttpub

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tbmq/thermobeacon/config"
	"github.com/tbmq/thermobeacon/thermobeacon"
)

const connectTimeout = 30 * time.Second

// Message is the JSON payload published per device.
type Message struct {
	Data thermobeacon.FullReadResult `json:"data"`
	Name string                      `json:"name"`
}

type Publisher struct {
	client mqtt.Client
}

// Connect builds a client from the MQTT section and waits for the initial
// connection.
func Connect(cfg config.MQTT) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID("thermobeacon")
	opts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	if cfg.Username != "" {
		log.Debugf("configuring mqtt with user %s and password ***", cfg.Username)
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	} else {
		log.Debugf("configuring mqtt without username / password")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		client.Disconnect(0)
		return nil, errors.New("timed out connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to mqtt broker")
	}
	return &Publisher{client: client}, nil
}

// Topic returns the device's data topic.
func Topic(device config.Device) string {
	if device.Topic != "" {
		return device.Topic
	}
	return "ThermoBeacon/" + device.Name
}

func qos(device config.Device) byte {
	if device.QoS == nil {
		return 1
	}
	return byte(*device.QoS)
}

// Publish sends one reading to the device's topic.
func (p *Publisher) Publish(device config.Device, result thermobeacon.FullReadResult) error {
	payload, err := json.Marshal(Message{Data: result, Name: device.Name})
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	token := p.client.Publish(Topic(device), qos(device), device.Retained, payload)
	token.Wait()
	return errors.Wrapf(token.Error(), "failed to publish to %s", Topic(device))
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
