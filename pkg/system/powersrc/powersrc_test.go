//go:build linux

package powersrc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"AC", AC, false},
		{"ac", AC, false},
		{" Mains ", AC, false},
		{"Battery", Battery, false},
		{"BAT", Battery, false},
		{"offline", Battery, false},
		{"", "", true},
		{"solar", "", true},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrUnknownSource, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func writeSupply(t *testing.T, root, dir, file, value string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, file), []byte(value+"\n"), 0o644))
}

func TestDetectSysfs_ACOnline(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "ACAD", "online", "1")

	src, err := detectSysfs(root)
	require.NoError(t, err)
	assert.Equal(t, AC, src)
}

func TestDetectSysfs_ACOffline(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "ADP1", "online", "0")

	src, err := detectSysfs(root)
	require.NoError(t, err)
	assert.Equal(t, Battery, src)
}

func TestDetectSysfs_BatteryStatusFallback(t *testing.T) {
	root := t.TempDir()
	writeSupply(t, root, "BAT0", "status", "Discharging")

	src, err := detectSysfs(root)
	require.NoError(t, err)
	assert.Equal(t, Battery, src)

	root = t.TempDir()
	writeSupply(t, root, "BAT0", "status", "Charging")
	src, err = detectSysfs(root)
	require.NoError(t, err)
	assert.Equal(t, AC, src)
}

func TestDetectSysfs_NothingUsable(t *testing.T) {
	_, err := detectSysfs(t.TempDir())
	assert.Error(t, err)
}
