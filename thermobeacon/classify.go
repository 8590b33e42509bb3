package thermobeacon

// ProductName is the advertised display name shared by all supported device
// variants. Peripherals with any other name are not ThermoBeacons.
const ProductName = "ThermoBeacon"

// FrameKind tells which of the two frame layouts a payload carries.
type FrameKind int

const (
	FrameUnsupported FrameKind = iota
	FrameCurrent
	FrameMinMax
)

func (k FrameKind) String() string {
	switch k {
	case FrameCurrent:
		return "current"
	case FrameMinMax:
		return "min/max"
	default:
		return "unsupported"
	}
}

// SupportedCode reports whether a manufacturer-data company code belongs to a
// known device variant. The variants differ in housing and display but share
// one payload layout per length; 0x15 is the rounded-corner model with
// display.
func SupportedCode(code uint16) bool {
	switch code {
	case 0x10, 0x11, 0x15, 0x1B:
		return true
	}
	return false
}

// Classify maps a company code and payload length to a frame kind.
func Classify(code uint16, payloadLen int) FrameKind {
	if !SupportedCode(code) {
		return FrameUnsupported
	}
	switch payloadLen {
	case currentFrameLen:
		return FrameCurrent
	case minMaxFrameLen:
		return FrameMinMax
	default:
		return FrameUnsupported
	}
}
