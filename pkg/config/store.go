//go:build linux

// Package config persists pwrcfg state as two small files under a single
// state directory: a key=value configuration file and a one-line applied
// marker. Both are only ever replaced whole via write-to-temp-then-rename,
// and all mutation goes through WithLock, which serializes competing
// processes (a manual CLI command racing an AC-event invocation) on one
// advisory flock file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// DefaultDir is the on-disk home of the configuration, marker and
	// lock files. EnvStateDir overrides it (used by tests and by installs
	// that keep state elsewhere).
	DefaultDir  = "/etc/gz302-pwrcfg"
	EnvStateDir = "GZ302_STATE_DIR"

	// DefaultLockTimeout bounds lock acquisition so an event-handler
	// invocation can never hang the OS power hook.
	DefaultLockTimeout = 2 * time.Second

	configFile = "config"
	markerFile = "applied"
	lockFile   = "lock"

	lockRetryInterval = 50 * time.Millisecond
)

// StateDir returns the effective state directory.
func StateDir() string {
	if d := os.Getenv(EnvStateDir); d != "" {
		return d
	}
	return DefaultDir
}

// Store is a handle on the state directory. It holds no open files or
// in-memory state between calls; every invocation of this tool is a
// short-lived process.
type Store struct {
	dir string
	log *slog.Logger
}

// NewStore creates a store rooted at dir (empty means StateDir()).
// A nil logger falls back to slog.Default().
func NewStore(dir string, log *slog.Logger) *Store {
	if dir == "" {
		dir = StateDir()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{dir: dir, log: log}
}

// Dir returns the state directory the store operates on.
func (s *Store) Dir() string { return s.dir }

// Load reads the configuration without taking the lock. Absent file yields
// defaults; corrupted fields are reset to defaults with a warning. In both
// cases the corrected file is persisted best-effort (read-only callers such
// as status may lack write permission, which is fine).
func (s *Store) Load() (Configuration, error) {
	cfg, corrected, err := s.readConfig()
	if err != nil {
		return Configuration{}, err
	}
	if corrected {
		if werr := s.writeConfig(cfg); werr != nil {
			s.log.Debug("config: could not persist corrected file", "err", werr)
		}
	}
	return cfg, nil
}

// LoadMarker reads the applied marker without taking the lock.
func (s *Store) LoadMarker() (Marker, error) {
	m, _, err := s.readMarker()
	return m, err
}

// Tx is the locked view handed to WithLock callbacks. Reads are cheap
// copies; Set* stages a write that is committed atomically before the lock
// is released, but only if the callback returns nil.
type Tx struct {
	cfg         Configuration
	marker      Marker
	cfgDirty    bool
	markerDirty bool
}

// Config returns the configuration as read under the lock.
func (tx *Tx) Config() Configuration { return tx.cfg }

// SetConfig stages a configuration write.
func (tx *Tx) SetConfig(c Configuration) {
	tx.cfg = c
	tx.cfgDirty = true
}

// Marker returns the applied marker as read under the lock.
func (tx *Tx) Marker() Marker { return tx.marker }

// SetMarker stages a marker write.
func (tx *Tx) SetMarker(m Marker) {
	tx.marker = m
	tx.markerDirty = true
}

// WithLock acquires the store's advisory lock (bounded by timeout,
// surfacing ErrBusy on expiry), runs fn against a transaction view of the
// current state, and commits staged writes atomically before unlocking.
// If fn returns an error nothing is written. This is the only sanctioned
// way to mutate the configuration or the marker.
func (s *Store) WithLock(timeout time.Duration, fn func(tx *Tx) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("config: create state dir: %w", err)
	}

	lf, err := os.OpenFile(filepath.Join(s.dir, lockFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("config: open lock file: %w", err)
	}
	defer lf.Close()

	if err := flockTimeout(int(lf.Fd()), timeout); err != nil {
		return err
	}
	defer unix.Flock(int(lf.Fd()), unix.LOCK_UN)

	cfg, cfgCorrected, err := s.readConfig()
	if err != nil {
		return err
	}
	marker, markerCorrected, err := s.readMarker()
	if err != nil {
		return err
	}

	tx := &Tx{cfg: cfg, marker: marker}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.cfgDirty || cfgCorrected {
		if err := s.writeConfig(tx.cfg); err != nil {
			return err
		}
	}
	if tx.markerDirty || markerCorrected {
		if err := s.writeMarker(tx.marker); err != nil {
			return err
		}
	}
	return nil
}

func flockTimeout(fd int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("config: flock: %w", err)
		}
		if time.Now().After(deadline) {
			return ErrBusy
		}
		time.Sleep(lockRetryInterval)
	}
}

func (s *Store) readConfig() (Configuration, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, configFile))
	if errors.Is(err, os.ErrNotExist) {
		// first access: the defaults become the file
		return Defaults(), true, nil
	}
	if err != nil {
		return Configuration{}, false, fmt.Errorf("config: read: %w", err)
	}
	cfg, corrected := parseConfig(data, s.log)
	return cfg, corrected, nil
}

func (s *Store) readMarker() (Marker, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, markerFile))
	if errors.Is(err, os.ErrNotExist) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, fmt.Errorf("config: read marker: %w", err)
	}
	m, corrected := parseMarker(data, s.log)
	return m, corrected, nil
}

func (s *Store) writeConfig(c Configuration) error {
	return s.writeAtomic(configFile, encodeConfig(c))
}

func (s *Store) writeMarker(m Marker) error {
	return s.writeAtomic(markerFile, encodeMarker(m))
}

// writeAtomic replaces name under the state dir via temp-file-then-rename
// so a reader never observes a torn file.
func (s *Store) writeAtomic(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("config: create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("config: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: sync temp: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("config: chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}
