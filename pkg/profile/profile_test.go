package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LimitOrdering(t *testing.T) {
	// every entry must satisfy sustained <= slow-boost <= fast-boost
	for _, p := range List() {
		assert.LessOrEqual(t, p.SustainedMw, p.SlowBoostMw, "profile %s", p.Name)
		assert.LessOrEqual(t, p.SlowBoostMw, p.FastBoostMw, "profile %s", p.Name)
	}
}

func TestRegistry_EscalationOrder(t *testing.T) {
	ps := List()
	require.NotEmpty(t, ps)
	for i := 1; i < len(ps); i++ {
		assert.Greater(t, ps[i].SustainedMw, ps[i-1].SustainedMw,
			"%s should escalate past %s", ps[i].Name, ps[i-1].Name)
	}
}

func TestRegistry_UniqueNames(t *testing.T) {
	seen := map[Name]struct{}{}
	for _, p := range List() {
		_, dup := seen[p.Name]
		require.False(t, dup, "duplicate name %s", p.Name)
		seen[p.Name] = struct{}{}
	}
}

func TestLookup_Known(t *testing.T) {
	p, err := Lookup("performance")
	require.NoError(t, err)
	assert.Equal(t, Performance, p.Name)
	assert.EqualValues(t, 35000, p.SustainedMw)
	assert.Equal(t, 120, p.RefreshHz)
}

func TestLookup_CaseInsensitive(t *testing.T) {
	p, err := Lookup("  GAMING ")
	require.NoError(t, err)
	assert.Equal(t, Gaming, p.Name)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("ludicrous")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProfile))
	assert.Contains(t, err.Error(), "ludicrous")
}

func TestSuggestedRefreshRates(t *testing.T) {
	// the auto-switch refresh link depends on these suggestions
	eff, err := Lookup("efficient")
	require.NoError(t, err)
	assert.Equal(t, 60, eff.RefreshHz)

	perf, err := Lookup("performance")
	require.NoError(t, err)
	assert.Equal(t, 120, perf.RefreshHz)
}

func TestList_ReturnsCopy(t *testing.T) {
	a := List()
	a[0].SustainedMw = 0
	b := List()
	assert.EqualValues(t, 8000, b[0].SustainedMw)
}

func TestNames_MatchesList(t *testing.T) {
	names := Names()
	ps := List()
	require.Len(t, names, len(ps))
	for i := range ps {
		assert.Equal(t, string(ps[i].Name), names[i])
	}
}
