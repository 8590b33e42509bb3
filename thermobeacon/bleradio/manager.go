// Package bleradio backs the radio manager boundary with the Linux HCI
// stack. One scan runs per discovery window; advertisements are cached per
// device address so that the latest broadcast under each company code is
// visible while the scan keeps running.
package bleradio

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tbmq/thermobeacon/thermobeacon"
)

// Manager opens the default HCI device lazily and keeps the single handle
// for the lifetime of the process, so that repeated job runs do not exhaust
// the host's HCI sockets.
type Manager struct {
	mu     sync.Mutex
	device ble.Device
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Adapters() ([]thermobeacon.Adapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		device, err := linux.NewDevice()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open ble device")
		}
		m.device = device
	}
	return []thermobeacon.Adapter{newAdapter("hci", m.device)}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	err := m.device.Stop()
	m.device = nil
	return errors.Wrap(err, "failed to close ble device")
}

type snapshot struct {
	name string
	data map[uint16][]byte
}

// Adapter runs one discovery scan at a time and caches the advertisements it
// hears. Enumeration order is first-seen order, which keeps scan output
// deterministic for a fixed set of broadcasting devices.
type Adapter struct {
	name   string
	device ble.Device

	mu    sync.Mutex
	order []thermobeacon.MAC
	seen  map[thermobeacon.MAC]*snapshot

	cancel context.CancelFunc
	done   chan error
}

func newAdapter(name string, device ble.Device) *Adapter {
	return &Adapter{name: name, device: device, seen: make(map[thermobeacon.MAC]*snapshot)}
}

func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) StartScan(ctx context.Context) error {
	a.mu.Lock()
	a.order = nil
	a.seen = make(map[thermobeacon.MAC]*snapshot)
	a.mu.Unlock()

	scanCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	a.cancel = cancel
	a.done = done
	go func() {
		done <- a.device.Scan(scanCtx, true, a.handleAdvertisement)
	}()
	return nil
}

func (a *Adapter) StopScan() error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	err := <-a.done
	a.cancel = nil
	a.done = nil
	switch errors.Cause(err) {
	case nil, context.Canceled, context.DeadlineExceeded:
		return nil
	default:
		return errors.Wrap(err, "scan terminated abnormally")
	}
}

func (a *Adapter) Peripherals() ([]thermobeacon.Peripheral, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	peripherals := make([]thermobeacon.Peripheral, 0, len(a.order))
	for _, addr := range a.order {
		peripherals = append(peripherals, &Peripheral{adapter: a, addr: addr})
	}
	return peripherals, nil
}

func (a *Adapter) handleAdvertisement(adv ble.Advertisement) {
	addr, err := thermobeacon.ParseMAC(adv.Addr().String())
	if err != nil {
		log.Debugf("ignoring advertisement with unparseable address %q", adv.Addr())
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.seen[addr]
	if s == nil {
		s = &snapshot{data: map[uint16][]byte{}}
		a.seen[addr] = s
		a.order = append(a.order, addr)
	}
	if name := adv.LocalName(); name != "" {
		s.name = name
	}

	// The first two bytes of the AD structure carry the company code,
	// little-endian; the beacon rotates frame layouts under one code, so the
	// latest broadcast replaces the previous payload.
	md := adv.ManufacturerData()
	if len(md) < 2 {
		return
	}
	code := binary.LittleEndian.Uint16(md[:2])
	payload := make([]byte, len(md)-2)
	copy(payload, md[2:])
	s.data[code] = payload
}

func (a *Adapter) properties(addr thermobeacon.MAC) (thermobeacon.Properties, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.seen[addr]
	if s == nil {
		return thermobeacon.Properties{}, errors.Errorf("peripheral %s is no longer visible", addr)
	}
	data := make(map[uint16][]byte, len(s.data))
	for code, payload := range s.data {
		data[code] = append([]byte(nil), payload...)
	}
	return thermobeacon.Properties{LocalName: s.name, ManufacturerData: data}, nil
}

// Peripheral is a handle into the adapter's advertisement cache; Properties
// reflects the most recent broadcast at call time.
type Peripheral struct {
	adapter *Adapter
	addr    thermobeacon.MAC
}

func (p *Peripheral) Addr() thermobeacon.MAC {
	return p.addr
}

func (p *Peripheral) Properties(ctx context.Context) (thermobeacon.Properties, error) {
	if err := ctx.Err(); err != nil {
		return thermobeacon.Properties{}, err
	}
	return p.adapter.properties(p.addr)
}
