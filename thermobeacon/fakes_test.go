package thermobeacon

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"
)

// fakePeripheral replays a fixed sequence of properties snapshots, one per
// Properties call, sticking on the last.
type fakePeripheral struct {
	addr      MAC
	snapshots []Properties
	calls     int
	errEvery  int // if > 0, every n-th call fails
}

func (p *fakePeripheral) Addr() MAC { return p.addr }

func (p *fakePeripheral) Properties(ctx context.Context) (Properties, error) {
	p.calls++
	if p.errEvery > 0 && p.calls%p.errEvery == 0 {
		return Properties{}, errors.New("transient radio error")
	}
	i := p.calls - 1
	if i >= len(p.snapshots) {
		i = len(p.snapshots) - 1
	}
	return p.snapshots[i], nil
}

type fakeAdapter struct {
	name        string
	peripherals []Peripheral

	startCalls int
	stopCalls  int
	startErr   error
	listErr    error
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) StartScan(ctx context.Context) error {
	a.startCalls++
	return a.startErr
}

func (a *fakeAdapter) StopScan() error {
	a.stopCalls++
	return nil
}

func (a *fakeAdapter) Peripherals() ([]Peripheral, error) {
	if a.listErr != nil {
		return nil, a.listErr
	}
	return a.peripherals, nil
}

type fakeManager struct {
	adapters []Adapter
	err      error
}

func (m *fakeManager) Adapters() ([]Adapter, error) { return m.adapters, m.err }

func mustMAC(s string) MAC {
	m, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func currentPayload(mac MAC, button byte, voltage, temp, humidity uint16, uptime uint32) []byte {
	b := make([]byte, currentFrameLen)
	b[curOffButton] = button
	for i := 0; i < 6; i++ {
		b[curOffMAC+i] = mac[5-i]
	}
	binary.LittleEndian.PutUint16(b[curOffVoltage:], voltage)
	binary.LittleEndian.PutUint16(b[curOffTemperature:], temp)
	binary.LittleEndian.PutUint16(b[curOffHumidity:], humidity)
	binary.LittleEndian.PutUint32(b[curOffUptime:], uptime)
	return b
}

func minMaxPayload(mac MAC, button byte, maxTemp uint16, maxTime uint32, minTemp uint16, minTime uint32) []byte {
	b := make([]byte, minMaxFrameLen)
	b[mmOffButton] = button
	for i := 0; i < 6; i++ {
		b[mmOffMAC+i] = mac[5-i]
	}
	binary.LittleEndian.PutUint16(b[mmOffMaxTemp:], maxTemp)
	binary.LittleEndian.PutUint32(b[mmOffMaxTempTime:], maxTime)
	binary.LittleEndian.PutUint16(b[mmOffMinTemp:], minTemp)
	binary.LittleEndian.PutUint32(b[mmOffMinTempTime:], minTime)
	return b
}

func propsWith(name string, code uint16, payload []byte) Properties {
	return Properties{
		LocalName:        name,
		ManufacturerData: map[uint16][]byte{code: payload},
	}
}
