package thermobeacon

import "context"

// Properties is one snapshot of a peripheral's advertised state. The
// manufacturer data maps a 16-bit company/type code to the raw payload
// broadcast under it, company code already stripped.
type Properties struct {
	LocalName        string
	ManufacturerData map[uint16][]byte
}

// Peripheral is one device visible during a discovery scan. Advertisement
// payloads rotate over time, so consecutive Properties calls on the same
// peripheral may return different frames.
type Peripheral interface {
	Addr() MAC
	Properties(ctx context.Context) (Properties, error)
}

// Adapter is one radio capable of running a discovery scan.
type Adapter interface {
	Name() string
	StartScan(ctx context.Context) error
	StopScan() error
	Peripherals() ([]Peripheral, error)
}

// Manager enumerates the usable radio adapters.
type Manager interface {
	Adapters() ([]Adapter, error)
}
