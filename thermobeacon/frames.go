package thermobeacon

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Wire layout of the current-reading frame (manufacturer data payload,
// company code already stripped by the radio layer):
//
//	bytes | content
//	================================================
//	00    | reserved
//	01    | 0x80 if the button is pressed, else 0x00
//	02-07 | mac address, little-endian
//	08-09 | battery voltage, 3400 = 100%
//	10-11 | temperature, 1/16 °C fixed point
//	12-13 | humidity, 1/16 % fixed point
//	14-17 | uptime: seconds since the last reset
const (
	currentFrameLen = 18

	curOffButton      = 1
	curOffMAC         = 2
	curOffVoltage     = 8
	curOffTemperature = 10
	curOffHumidity    = 12
	curOffUptime      = 14
)

// Wire layout of the min/max-history frame:
//
//	bytes | content
//	================================================
//	00    | reserved
//	01    | 0x80 if the button is pressed, else 0x00
//	02-07 | mac address, little-endian
//	08-09 | max temperature, 1/16 °C fixed point
//	10-13 | max temperature time (seconds since reset)
//	14-15 | min temperature, 1/16 °C fixed point
//	16-19 | min temperature time (seconds since reset)
const (
	minMaxFrameLen = 20

	mmOffButton      = 1
	mmOffMAC         = 2
	mmOffMaxTemp     = 8
	mmOffMaxTempTime = 10
	mmOffMinTemp     = 14
	mmOffMinTempTime = 16
)

const buttonPressed = 0x80

// SensorReading is a decoded current-reading frame.
type SensorReading struct {
	// units: %, derived from voltage, may exceed 100
	BatteryLevel float64

	// units: % of relative humidity
	Humidity float64

	// units: degrees Celsius
	Temperature float64

	UptimeSeconds uint32
	UptimeDays    float64

	MAC           MAC
	ButtonPressed bool
}

// MinMaxReading is a decoded min/max-history frame.
type MinMaxReading struct {
	ButtonPressed bool
	MAC           MAC

	// units: degrees Celsius
	MaxTemperature float64
	MinTemperature float64

	// seconds since the last device reset
	MaxTempTime uint32
	MinTempTime uint32
}

// DecodeCurrent decodes an 18-byte current-reading payload.
func DecodeCurrent(payload []byte) (SensorReading, error) {
	if len(payload) != currentFrameLen {
		return SensorReading{}, errors.Wrapf(ErrLengthMismatch, "current frame: got %d bytes, want %d", len(payload), currentFrameLen)
	}

	uptime := binary.LittleEndian.Uint32(payload[curOffUptime:])
	return SensorReading{
		BatteryLevel:  float64(binary.LittleEndian.Uint16(payload[curOffVoltage:])) * 100.0 / 3400.0,
		Humidity:      decodeFixed12(binary.LittleEndian.Uint16(payload[curOffHumidity:])),
		Temperature:   decodeFixed12(binary.LittleEndian.Uint16(payload[curOffTemperature:])),
		UptimeSeconds: uptime,
		UptimeDays:    float64(uptime) / 86400.0,
		MAC:           macFromWire(payload[curOffMAC : curOffMAC+6]),
		ButtonPressed: payload[curOffButton] == buttonPressed,
	}, nil
}

// DecodeMinMax decodes a 20-byte min/max-history payload.
func DecodeMinMax(payload []byte) (MinMaxReading, error) {
	if len(payload) != minMaxFrameLen {
		return MinMaxReading{}, errors.Wrapf(ErrLengthMismatch, "min/max frame: got %d bytes, want %d", len(payload), minMaxFrameLen)
	}

	return MinMaxReading{
		ButtonPressed:  payload[mmOffButton] == buttonPressed,
		MAC:            macFromWire(payload[mmOffMAC : mmOffMAC+6]),
		MaxTemperature: decodeFixed12(binary.LittleEndian.Uint16(payload[mmOffMaxTemp:])),
		MaxTempTime:    binary.LittleEndian.Uint32(payload[mmOffMaxTempTime:]),
		MinTemperature: decodeFixed12(binary.LittleEndian.Uint16(payload[mmOffMinTemp:])),
		MinTempTime:    binary.LittleEndian.Uint32(payload[mmOffMinTempTime:]),
	}, nil
}

// decodeFixed12 converts a raw 16-bit temperature or humidity field to its
// magnitude in 1/16 steps. The device encodes negative values by wrap-around
// in a 12-bit-like range, not two's complement: anything above 4000.0 is a
// wrapped negative.
func decodeFixed12(raw uint16) float64 {
	v := float64(raw) / 16.0
	if v > 4000.0 {
		v -= 4096.0
	}
	return v
}
