package types

import (
	"fmt"
	"strings"
)

// Mode selects the compilation strategy (HS_MODE_*).
type Mode uint32

const (
	ModeBlock    Mode = 1 << 0
	ModeStream   Mode = 1 << 1
	ModeVectored Mode = 1 << 2

	// Start-of-match horizon for streaming databases.
	ModeSomHorizonLarge  Mode = 1 << 24
	ModeSomHorizonMedium Mode = 1 << 25
	ModeSomHorizonSmall  Mode = 1 << 26
)

// Base returns the block/stream/vectored component of the mode.
func (m Mode) Base() Mode {
	return m & (ModeBlock | ModeStream | ModeVectored)
}

// Valid reports whether exactly one base mode is selected.
func (m Mode) Valid() bool {
	switch m.Base() {
	case ModeBlock, ModeStream, ModeVectored:
		return true
	default:
		return false
	}
}

// String returns the Hyperscan-style mode name.
func (m Mode) String() string {
	switch m.Base() {
	case ModeBlock:
		return "BLOCK"
	case ModeStream:
		return "STREAM"
	case ModeVectored:
		return "VECTORED"
	default:
		return fmt.Sprintf("Mode(%d)", uint32(m))
	}
}

// ParseMode parses a mode name ("block", "stream", "vectored").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block":
		return ModeBlock, nil
	case "stream", "streaming":
		return ModeStream, nil
	case "vectored":
		return ModeVectored, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
