//go:build linux

package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLoad_AbsentWritesDefaults(t *testing.T) {
	s := testStore(t)

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	// the defaults must have been persisted
	data, err := os.ReadFile(filepath.Join(s.Dir(), configFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "current_profile=balanced")
	assert.Contains(t, string(data), "auto_switch=false")
}

func TestLoad_CorruptFieldResetToDefault(t *testing.T) {
	s := testStore(t)
	raw := strings.Join([]string{
		"current_profile=performance",
		"auto_switch=maybe",
		"ac_profile=warp9",
		"battery_profile=efficient",
		"refresh_link=true",
	}, "\n")
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), configFile), []byte(raw), 0o644))

	cfg, err := s.Load()
	require.NoError(t, err)

	// intact fields survive, corrupt ones reset
	assert.Equal(t, "performance", cfg.CurrentProfile)
	assert.Equal(t, "efficient", cfg.BatteryProfile)
	assert.True(t, cfg.RefreshLink)
	assert.False(t, cfg.AutoSwitch, "bad boolean resets to default")
	assert.Empty(t, cfg.ACProfile, "unknown profile name clears the field")

	// the corrected file was persisted and now parses cleanly
	data, err := os.ReadFile(filepath.Join(s.Dir(), configFile))
	require.NoError(t, err)
	reparsed, corrected := parseConfig(data, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, corrected)
	assert.Equal(t, cfg, reparsed)
}

func TestLoad_GarbageFileNeverFails(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), configFile),
		[]byte("\x00\x01 not a config at all\n===\n"), 0o644))

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestWithLock_CommitRoundTrip(t *testing.T) {
	s := testStore(t)

	err := s.WithLock(time.Second, func(tx *Tx) error {
		cfg := tx.Config()
		cfg.CurrentProfile = "gaming"
		cfg.ACProfile = "performance"
		cfg.BatteryProfile = "efficient"
		cfg.AutoSwitch = true
		tx.SetConfig(cfg)
		return nil
	})
	require.NoError(t, err)

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "gaming", cfg.CurrentProfile)
	assert.Equal(t, "performance", cfg.ACProfile)
	assert.Equal(t, "efficient", cfg.BatteryProfile)
	assert.True(t, cfg.AutoSwitch)
}

func TestWithLock_CallbackErrorWritesNothing(t *testing.T) {
	s := testStore(t)
	_, err := s.Load() // seed defaults
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(s.Dir(), configFile))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithLock(time.Second, func(tx *Tx) error {
		cfg := tx.Config()
		cfg.CurrentProfile = "maximum"
		tx.SetConfig(cfg)
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(filepath.Join(s.Dir(), configFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWithLock_BusyWhenLockHeld(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))

	lf, err := os.OpenFile(filepath.Join(s.Dir(), lockFile), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer lf.Close()
	require.NoError(t, unix.Flock(int(lf.Fd()), unix.LOCK_EX))
	defer unix.Flock(int(lf.Fd()), unix.LOCK_UN)

	called := false
	err = s.WithLock(150*time.Millisecond, func(tx *Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, called, "callback must not run without the lock")
}

func TestWithLock_NoTempFilesLeftBehind(t *testing.T) {
	s := testStore(t)
	err := s.WithLock(time.Second, func(tx *Tx) error {
		cfg := tx.Config()
		cfg.RefreshLink = true
		tx.SetConfig(cfg)
		tx.SetMarker(Marker{Profile: "balanced", AppliedAt: time.Now()})
		return nil
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "leftover temp file %s", e.Name())
	}
}

func TestMarker_RoundTrip(t *testing.T) {
	s := testStore(t)
	at := time.UnixMilli(time.Now().UnixMilli()) // marker stores milli precision

	err := s.WithLock(time.Second, func(tx *Tx) error {
		tx.SetMarker(Marker{Profile: "performance", AppliedAt: at})
		return nil
	})
	require.NoError(t, err)

	m, err := s.LoadMarker()
	require.NoError(t, err)
	assert.Equal(t, "performance", m.Profile)
	assert.True(t, m.AppliedAt.Equal(at))
}

func TestMarker_CorruptResetsToZero(t *testing.T) {
	s := testStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), markerFile),
		[]byte("warp9 notatime\n"), 0o644))

	m, err := s.LoadMarker()
	require.NoError(t, err)
	assert.True(t, m.IsZero())
}

func TestMarker_AbsentIsZero(t *testing.T) {
	s := testStore(t)
	m, err := s.LoadMarker()
	require.NoError(t, err)
	assert.True(t, m.IsZero())
}

// Two writers race on different profiles: afterwards exactly one of them is
// recorded and the file still parses (no torn write).
func TestWithLock_ConcurrentWritersDoNotTear(t *testing.T) {
	s := testStore(t)
	profiles := []string{"performance", "efficient"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for {
				err := s.WithLock(5*time.Second, func(tx *Tx) error {
					cfg := tx.Config()
					cfg.CurrentProfile = name
					tx.SetConfig(cfg)
					tx.SetMarker(Marker{Profile: name, AppliedAt: time.Now()})
					return nil
				})
				if err == nil {
					return
				}
				if !errors.Is(err, ErrBusy) {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}(profiles[i%2])
	}
	wg.Wait()

	cfg, err := s.Load()
	require.NoError(t, err)
	assert.Contains(t, profiles, cfg.CurrentProfile)

	m, err := s.LoadMarker()
	require.NoError(t, err)
	assert.Equal(t, cfg.CurrentProfile, m.Profile, "config and marker written in one critical section")
}
