package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/th3cavalry/gz302-pwrcfg/pkg/profile"
)

// Configuration is the persisted pwrcfg state. Empty ACProfile or
// BatteryProfile means "unset"; auto-switch cannot be enabled until both
// are set.
type Configuration struct {
	CurrentProfile string
	AutoSwitch     bool
	ACProfile      string
	BatteryProfile string
	RefreshLink    bool
}

// Defaults is the state written on first access and the fallback for any
// corrupted field.
func Defaults() Configuration {
	return Configuration{
		CurrentProfile: string(profile.Balanced),
	}
}

// Marker caches what the hardware was last told: the profile name and when
// it was applied. It is not authoritative configuration, only an
// idempotence/debounce aid. The zero value means nothing applied yet.
type Marker struct {
	Profile   string
	AppliedAt time.Time
}

// IsZero reports whether no apply has been recorded.
func (m Marker) IsZero() bool { return m.Profile == "" }

const (
	keyCurrentProfile = "current_profile"
	keyAutoSwitch     = "auto_switch"
	keyACProfile      = "ac_profile"
	keyBatteryProfile = "battery_profile"
	keyRefreshLink    = "refresh_link"
)

func encodeConfig(c Configuration) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", keyCurrentProfile, c.CurrentProfile)
	fmt.Fprintf(&b, "%s=%t\n", keyAutoSwitch, c.AutoSwitch)
	fmt.Fprintf(&b, "%s=%s\n", keyACProfile, c.ACProfile)
	fmt.Fprintf(&b, "%s=%s\n", keyBatteryProfile, c.BatteryProfile)
	fmt.Fprintf(&b, "%s=%t\n", keyRefreshLink, c.RefreshLink)
	return []byte(b.String())
}

// parseConfig decodes key=value lines, resetting any malformed field to its
// default. It never fails: the second return reports whether a correction
// was made and the file should be rewritten.
func parseConfig(data []byte, log *slog.Logger) (Configuration, bool) {
	cfg := Defaults()
	corrected := false
	seen := map[string]bool{}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			log.Warn("config: ignoring malformed line", "line", line)
			corrected = true
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		seen[k] = true

		switch k {
		case keyCurrentProfile:
			if _, err := profile.Lookup(v); err != nil {
				log.Warn("config: unknown profile, resetting to default",
					"key", k, "value", v, "default", cfg.CurrentProfile)
				corrected = true
				continue
			}
			cfg.CurrentProfile = strings.ToLower(v)
		case keyACProfile, keyBatteryProfile:
			if v != "" {
				if _, err := profile.Lookup(v); err != nil {
					log.Warn("config: unknown profile, clearing", "key", k, "value", v)
					corrected = true
					continue
				}
			}
			if k == keyACProfile {
				cfg.ACProfile = strings.ToLower(v)
			} else {
				cfg.BatteryProfile = strings.ToLower(v)
			}
		case keyAutoSwitch, keyRefreshLink:
			b, err := strconv.ParseBool(v)
			if err != nil {
				log.Warn("config: bad boolean, resetting to default", "key", k, "value", v)
				corrected = true
				continue
			}
			if k == keyAutoSwitch {
				cfg.AutoSwitch = b
			} else {
				cfg.RefreshLink = b
			}
		default:
			log.Warn("config: ignoring unknown key", "key", k)
			corrected = true
		}
	}

	for _, k := range []string{
		keyCurrentProfile, keyAutoSwitch, keyACProfile, keyBatteryProfile, keyRefreshLink,
	} {
		if !seen[k] {
			corrected = true
		}
	}

	return cfg, corrected
}

func encodeMarker(m Marker) []byte {
	if m.IsZero() {
		return []byte("\n")
	}
	return []byte(fmt.Sprintf("%s %d\n", m.Profile, m.AppliedAt.UnixMilli()))
}

// parseMarker decodes the one-line applied marker. Anything unparseable
// degrades to the zero marker (forcing the next apply to hit hardware),
// which is always safe.
func parseMarker(data []byte, log *slog.Logger) (Marker, bool) {
	line := strings.TrimSpace(string(data))
	if line == "" {
		return Marker{}, false
	}
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	if _, err := profile.Lookup(name); err != nil {
		log.Warn("config: unknown profile in applied marker, resetting", "value", fields[0])
		return Marker{}, true
	}
	m := Marker{Profile: name}
	if len(fields) > 1 {
		ms, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			log.Warn("config: bad timestamp in applied marker, resetting", "value", fields[1])
			return Marker{}, true
		}
		m.AppliedAt = time.UnixMilli(ms)
	}
	return m, false
}
