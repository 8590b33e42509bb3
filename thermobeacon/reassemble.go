package thermobeacon

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FullReadResult is the union of both frame kinds for one device, merged
// once both have been observed within one scan session.
type FullReadResult struct {
	BatteryLevel   float64 `json:"battery_level"`
	Humidity       float64 `json:"humidity"`
	Temperature    float64 `json:"temperature"`
	Uptime         uint32  `json:"uptime"`
	ButtonPressed  bool    `json:"button_pressed"`
	MAC            MAC     `json:"mac"`
	MaxTemperature float64 `json:"max_temperature"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTempTime    uint32  `json:"max_temp_time"`
	MinTempTime    uint32  `json:"min_temp_time"`
}

func merge(cur SensorReading, mm MinMaxReading) FullReadResult {
	return FullReadResult{
		BatteryLevel:   cur.BatteryLevel,
		Humidity:       cur.Humidity,
		Temperature:    cur.Temperature,
		Uptime:         cur.UptimeSeconds,
		ButtonPressed:  cur.ButtonPressed,
		MAC:            cur.MAC,
		MaxTemperature: mm.MaxTemperature,
		MinTemperature: mm.MinTemperature,
		MaxTempTime:    mm.MaxTempTime,
		MinTempTime:    mm.MinTempTime,
	}
}

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxPolls     = 24
)

// Reassembler polls one peripheral until both frame kinds have been seen.
// The beacon alternates the two layouts between broadcasts, so whichever
// frame is present first, the complementary one shows up on a later poll.
// The loop is bounded: after MaxPolls properties reads the device is failed
// with ErrNoDataFound instead of stalling the scan.
type Reassembler struct {
	PollInterval time.Duration
	MaxPolls     int
}

// Read drives the state machine to completion starting from an initial
// properties snapshot. Decode errors and unsupported payloads on a poll are
// logged and retried, never aborted on.
func (r *Reassembler) Read(ctx context.Context, p Peripheral, props Properties) (FullReadResult, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxPolls := r.MaxPolls
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}

	var cur *SensorReading
	var mm *MinMaxReading
	for poll := 0; poll < maxPolls; poll++ {
		if poll > 0 {
			if err := sleepCtx(ctx, interval); err != nil {
				return FullReadResult{}, errors.Wrap(err, "reassembly interrupted")
			}
			next, err := p.Properties(ctx)
			if err != nil {
				// keep polling on the previous snapshot
				log.Warnf("failed to refresh advertisement for %s: %s", p.Addr(), err)
			} else {
				props = next
			}
		}

		code, payload, ok := firstSupported(props.ManufacturerData)
		if !ok {
			log.Debugf("no supported manufacturer data from %s yet", p.Addr())
			continue
		}

		switch Classify(code, len(payload)) {
		case FrameCurrent:
			if cur == nil {
				log.Debugf("reading temperature and humidity from %s", p.Addr())
				reading, err := DecodeCurrent(payload)
				if err != nil {
					log.Warnf("failed to decode current frame from %s: %s", p.Addr(), err)
					continue
				}
				cur = &reading
			}
		case FrameMinMax:
			if mm == nil {
				log.Debugf("reading min and max temperature from %s", p.Addr())
				reading, err := DecodeMinMax(payload)
				if err != nil {
					log.Warnf("failed to decode min/max frame from %s: %s", p.Addr(), err)
					continue
				}
				mm = &reading
			}
		default:
			log.Warnf("unsupported payload from %s: code 0x%02x, %d bytes", p.Addr(), code, len(payload))
		}

		if cur != nil && mm != nil {
			return merge(*cur, *mm), nil
		}
	}

	return FullReadResult{}, errors.Wrapf(ErrNoDataFound, "device %s", p.Addr())
}

// firstSupported returns the payload under the first supported company code
// found. If a peripheral ever advertised two supported codes in one read,
// the others would be ignored until the next poll.
func firstSupported(data map[uint16][]byte) (uint16, []byte, bool) {
	for code, payload := range data {
		if SupportedCode(code) {
			return code, payload, true
		}
	}
	return 0, nil, false
}
