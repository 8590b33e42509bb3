package thermobeacon

import "github.com/pkg/errors"

var (
	// ErrLengthMismatch is returned when a payload does not match a known
	// frame size. The frame is skipped, reassembly continues.
	ErrLengthMismatch = errors.New("payload length does not match frame size")

	// ErrUnsupportedCode is returned when a company/type code is not in the
	// allow-list. The peripheral is ignored for this scan iteration.
	ErrUnsupportedCode = errors.New("unsupported company code")

	// ErrNoAdapters is fatal for the whole scan call.
	ErrNoAdapters = errors.New("no bluetooth adapters found")

	// ErrNoDataFound is returned when no complete reading could be assembled
	// for a matched peripheral before the poll budget ran out.
	ErrNoDataFound = errors.New("no data found")
)
