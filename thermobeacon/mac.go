package thermobeacon

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MAC is a 48-bit BLE device address, stored most significant byte first.
type MAC [6]byte

// ParseMAC parses colon-separated hex notation, case-insensitive.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return MAC{}, errors.Errorf("invalid mac address %q", s)
	}
	for i, part := range parts {
		b, err := strconv.ParseUint(part, 16, 8)
		if err != nil || len(part) != 2 {
			return MAC{}, errors.Errorf("invalid mac address %q", s)
		}
		m[i] = byte(b)
	}
	return m, nil
}

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MAC) UnmarshalText(text []byte) error {
	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// macFromWire assembles a MAC from its 6-byte little-endian wire
// representation, so that the result compares equal to the address the
// radio reports for the same device.
func macFromWire(b []byte) MAC {
	var m MAC
	for i := 0; i < 6; i++ {
		m[5-i] = b[i]
	}
	return m
}
