package sdk

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the pointer-width initialization path.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeWide
	ModeNarrow
)

func (m Mode) String() string {
	switch m {
	case ModeWide:
		return "wide"
	case ModeNarrow:
		return "narrow"
	default:
		return "unknown"
	}
}

// Bits is the pointer width the mode targets.
func (m Mode) Bits() int {
	switch m {
	case ModeWide:
		return 64
	case ModeNarrow:
		return 32
	default:
		return 0
	}
}

// ParseMode accepts "wide", "narrow", "64", "32", "64bit" and "32bit".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wide", "64", "64bit", "64-bit":
		return ModeWide, nil
	case "narrow", "32", "32bit", "32-bit":
		return ModeNarrow, nil
	}
	return ModeUnknown, fmt.Errorf("unknown mode: %q", s)
}

// DetectMode reports the mode matching the running binary's pointer width.
func DetectMode() Mode {
	return modeForBits(strconv.IntSize)
}

func modeForBits(bits int) Mode {
	if bits == 64 {
		return ModeWide
	}
	return ModeNarrow
}

// Alignment is the allocation alignment the SDK expects in mode m.
func Alignment(m Mode) int {
	if m == ModeNarrow {
		return 8
	}
	return 16
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
