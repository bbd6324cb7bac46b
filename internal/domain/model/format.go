package model

import (
	"fmt"
	"strings"
)

// Format is a game format a room can play. The enum keys the vote tallies so
// exhaustiveness is checkable at compile time.
type Format int

const (
	FormatNone Format = iota
	FormatFFA
	FormatDuo
	FormatTrio
	FormatQuad
	FormatHex
)

// Formats lists the votable formats in display order.
func Formats() []Format {
	return []Format{FormatFFA, FormatDuo, FormatTrio, FormatQuad, FormatHex}
}

// TeamSize returns the number of players per team under this format.
func (f Format) TeamSize() int {
	switch f {
	case FormatFFA:
		return 1
	case FormatDuo:
		return 2
	case FormatTrio:
		return 3
	case FormatQuad:
		return 4
	case FormatHex:
		return 6
	default:
		return 0
	}
}

// String returns the display name.
func (f Format) String() string {
	switch f {
	case FormatFFA:
		return "FFA"
	case FormatDuo:
		return "2v2"
	case FormatTrio:
		return "3v3"
	case FormatQuad:
		return "4v4"
	case FormatHex:
		return "6v6"
	default:
		return "none"
	}
}

// ParseFormat converts a display name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FFA":
		return FormatFFA, nil
	case "2V2":
		return FormatDuo, nil
	case "3V3":
		return FormatTrio, nil
	case "4V4":
		return FormatQuad, nil
	case "6V6":
		return FormatHex, nil
	default:
		return FormatNone, fmt.Errorf("unknown format: %q", s)
	}
}
