package thermobeacon

import "testing"

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		name       string
		code       uint16
		payloadLen int
		want       FrameKind
	}{
		{"supported code, current length", 0x15, 18, FrameCurrent},
		{"supported code, min/max length", 0x15, 20, FrameMinMax},
		{"unknown code", 0x99, 18, FrameUnsupported},
		{"unknown code, min/max length", 0x99, 20, FrameUnsupported},
		{"supported code, odd length", 0x10, 17, FrameUnsupported},
		{"supported code, empty payload", 0x1b, 0, FrameUnsupported},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.code, tc.payloadLen); got != tc.want {
				t.Errorf("Classify(0x%02x, %d) = %s; want %s", tc.code, tc.payloadLen, got, tc.want)
			}
		})
	}
}

func TestSupportedCode(t *testing.T) {
	for _, code := range []uint16{0x10, 0x11, 0x15, 0x1b} {
		if !SupportedCode(code) {
			t.Errorf("SupportedCode(0x%02x) = false; want true", code)
		}
	}
	for _, code := range []uint16{0x00, 0x12, 0x16, 0x99, 0xffff} {
		if SupportedCode(code) {
			t.Errorf("SupportedCode(0x%02x) = true; want false", code)
		}
	}
}
