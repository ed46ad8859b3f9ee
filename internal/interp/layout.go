// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

package interp

import "fmt"

// Origin says where a candidate interpreter comes from.
type Origin int

const (
	OriginSystem Origin = iota
	OriginBundledWindows
	OriginBundledUnix
)

func (o Origin) String() string {
	switch o {
	case OriginSystem:
		return "system"
	case OriginBundledWindows:
		return "bundled-windows"
	case OriginBundledUnix:
		return "bundled-unix"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// ParseOrigin converts a string to an Origin.
func ParseOrigin(s string) (Origin, error) {
	switch s {
	case "system":
		return OriginSystem, nil
	case "bundled-windows":
		return OriginBundledWindows, nil
	case "bundled-unix":
		return OriginBundledUnix, nil
	default:
		return 0, fmt.Errorf("unknown origin: %q", s)
	}
}

// Bundled reports whether the origin is a runtime shipped with the backend.
func (o Origin) Bundled() bool {
	return o == OriginBundledWindows || o == OriginBundledUnix
}

// Layout describes one way a bundled runtime can sit next to the backend.
// All paths are slash-separated and relative to the backend base directory.
// BackendRoot is stated explicitly so the working directory of a call never
// depends on how deep the interpreter is nested inside its runtime.
type Layout struct {
	Name        string
	Origin      Origin
	Interpreter string // e.g. "venv/bin/python"
	Runtime     string // runtime root, e.g. "venv"
	BackendRoot string // e.g. "."
}

// WindowsVenv is a virtual environment created on Windows.
var WindowsVenv = Layout{
	Name:        "venv-windows",
	Origin:      OriginBundledWindows,
	Interpreter: "venv/Scripts/python.exe",
	Runtime:     "venv",
	BackendRoot: ".",
}

// UnixVenv is a virtual environment created on Linux or macOS.
var UnixVenv = Layout{
	Name:        "venv-unix",
	Origin:      OriginBundledUnix,
	Interpreter: "venv/bin/python",
	Runtime:     "venv",
	BackendRoot: ".",
}

// DefaultLayouts returns the bundled layouts in priority order for goos:
// the current OS family first, the other one second.
func DefaultLayouts(goos string) []Layout {
	if goos == "windows" {
		return []Layout{WindowsVenv, UnixVenv}
	}
	return []Layout{UnixVenv, WindowsVenv}
}

// DefaultSystemNames is the order in which system executables are tried.
var DefaultSystemNames = []string{"python", "python3", "py"}
