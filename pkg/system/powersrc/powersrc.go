//go:build linux

// Package powersrc detects whether the machine currently runs on AC or
// battery. The primary source is UPower's OnBattery property on the system
// D-Bus; when no bus or no UPower is available it falls back to the
// power_supply class in sysfs.
package powersrc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Source is one side of the AC/battery transition.
type Source string

const (
	AC      Source = "AC"
	Battery Source = "Battery"
)

// ErrUnknownSource indicates a source argument that is neither AC nor
// Battery.
var ErrUnknownSource = errors.New("powersrc: unknown power source")

// Parse normalizes a hook-supplied source argument.
func Parse(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ac", "mains", "online":
		return AC, nil
	case "battery", "bat", "offline":
		return Battery, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

const (
	upowerService  = "org.freedesktop.UPower"
	upowerPath     = "/org/freedesktop/UPower"
	upowerProperty = "org.freedesktop.UPower.OnBattery"

	sysfsPowerSupply = "/sys/class/power_supply"
)

// Detect returns the current power source, preferring UPower over sysfs.
func Detect() (Source, error) {
	if src, err := detectUPower(); err == nil {
		return src, nil
	}
	return detectSysfs(sysfsPowerSupply)
}

func detectUPower() (Source, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return "", fmt.Errorf("powersrc: system bus: %w", err)
	}

	obj := conn.Object(upowerService, dbus.ObjectPath(upowerPath))
	variant, err := obj.GetProperty(upowerProperty)
	if err != nil {
		return "", fmt.Errorf("powersrc: upower OnBattery: %w", err)
	}
	onBattery, ok := variant.Value().(bool)
	if !ok {
		return "", fmt.Errorf("powersrc: upower OnBattery: unexpected type %T", variant.Value())
	}
	if onBattery {
		return Battery, nil
	}
	return AC, nil
}

// detectSysfs reads the AC adapter online flag from the power_supply class,
// trying the adapter names seen across GZ302 kernels, then inferring from
// battery status as a last resort.
func detectSysfs(root string) (Source, error) {
	for _, pattern := range []string{"AC*/online", "ACAD*/online", "ADP*/online"} {
		if v, ok := readFirst(filepath.Join(root, pattern)); ok {
			if v == "1" {
				return AC, nil
			}
			return Battery, nil
		}
	}
	if v, ok := readFirst(filepath.Join(root, "BAT*/status")); ok {
		switch v {
		case "Charging", "Full":
			return AC, nil
		case "Discharging":
			return Battery, nil
		}
	}
	return "", errors.New("powersrc: no usable power_supply entries")
}

func readFirst(glob string) (string, bool) {
	matches, _ := filepath.Glob(glob)
	for _, p := range matches {
		if b, err := os.ReadFile(p); err == nil {
			return strings.TrimSpace(string(b)), true
		}
	}
	return "", false
}
