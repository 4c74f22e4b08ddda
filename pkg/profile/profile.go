// Package profile holds the compiled-in table of GZ302 power profiles.
//
// A profile bundles the three processor power ceilings (sustained,
// slow-boost, fast-boost, in milliwatts) with a suggested display refresh
// rate. The table is static: profiles cannot be defined or edited at
// runtime, which keeps unknown-name handling in one place (Lookup).
package profile

import (
	"fmt"
	"strings"

	"github.com/th3cavalry/gz302-pwrcfg/pkg/types"
)

// Name identifies a registry entry.
type Name string

const (
	Emergency   Name = "emergency"
	Battery     Name = "battery"
	Efficient   Name = "efficient"
	Balanced    Name = "balanced"
	Performance Name = "performance"
	Gaming      Name = "gaming"
	Maximum     Name = "maximum"
)

// Profile is one immutable registry entry.
// Invariant: SustainedMw <= SlowBoostMw <= FastBoostMw.
type Profile struct {
	Name        Name
	SustainedMw types.Milliwatts
	SlowBoostMw types.Milliwatts
	FastBoostMw types.Milliwatts
	RefreshHz   int
}

// registry is kept in escalation order (ascending sustained limit).
var registry = []Profile{
	{Emergency, 8000, 10000, 12000, 60},
	{Battery, 15000, 18000, 20000, 60},
	{Efficient, 18000, 22000, 25000, 60},
	{Balanced, 25000, 28000, 30000, 120},
	{Performance, 35000, 40000, 45000, 120},
	{Gaming, 45000, 50000, 54000, 180},
	{Maximum, 54000, 60000, 65000, 180},
}

// Lookup resolves a profile by name. Matching is case-insensitive so the
// CLI and the persisted config agree on the canonical lowercase form.
func Lookup(name string) (Profile, error) {
	n := Name(strings.ToLower(strings.TrimSpace(name)))
	for _, p := range registry {
		if p.Name == n {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// List returns all profiles in escalation order. The returned slice is a
// copy; callers may reorder it freely.
func List() []Profile {
	out := make([]Profile, len(registry))
	copy(out, registry)
	return out
}

// Names returns the profile names in escalation order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for _, p := range registry {
		out = append(out, string(p.Name))
	}
	return out
}
