package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wireless"
)

// EnvPrefix namespaces environment overrides, e.g. WIFIQR_CAMERA_INDEX.
const EnvPrefix = "WIFIQR"

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// FileStore persists settings in a single JSON file and layers environment
// variables and optional command-line flags on top of it.
type FileStore struct {
	path  string
	flags *pflag.FlagSet
}

// NewFileStore creates a file-backed settings store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// BindFlags makes flags that were set explicitly override file and env values.
// Flag names must match settings keys (camera-index, backend, ...).
func (s *FileStore) BindFlags(flags *pflag.FlagSet) {
	s.flags = flags
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads settings from disk, env and flags, or returns defaults when missing.
func (s *FileStore) Load() (domain.Settings, error) {
	v := s.newViper()

	if _, err := os.Stat(s.path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return domain.Settings{}, fmt.Errorf("read settings %s: %w", s.path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return domain.Settings{}, err
	}

	if s.flags != nil {
		if err := v.BindPFlags(s.flags); err != nil {
			return domain.Settings{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg domain.Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return domain.Settings{}, err
	}

	return cfg, nil
}

// Save writes settings as JSON and creates parent directories.
func (s *FileStore) Save(cfg domain.Settings) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("camera-index", cfg.CameraIndex)
	v.Set("backend", cfg.Backend)
	v.Set("interface", cfg.Interface)
	v.Set("capture-interval", cfg.CaptureInterval.String())
	v.Set("settle-delay", cfg.SettleDelay.String())
	v.Set("poll-interval", cfg.PollInterval.String())
	v.Set("poll-attempts", cfg.PollAttempts)
	v.Set("derive-psk", cfg.DerivePSK)

	return v.WriteConfigAs(s.path)
}

// newViper builds an isolated viper instance with defaults and env binding.
func (s *FileStore) newViper() *viper.Viper {
	defaults := DefaultSettings()

	v := viper.New()
	v.SetDefault("camera-index", defaults.CameraIndex)
	v.SetDefault("backend", defaults.Backend)
	v.SetDefault("interface", defaults.Interface)
	v.SetDefault("capture-interval", defaults.CaptureInterval)
	v.SetDefault("settle-delay", defaults.SettleDelay)
	v.SetDefault("poll-interval", defaults.PollInterval)
	v.SetDefault("poll-attempts", defaults.PollAttempts)
	v.SetDefault("derive-psk", defaults.DerivePSK)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	return v
}

// Validate checks settings for values the scanner cannot run with.
func Validate(cfg domain.Settings) error {
	if cfg.CameraIndex < 0 {
		return fmt.Errorf("camera-index must be non-negative")
	}
	switch cfg.Backend {
	case wireless.BackendNMCLI, wireless.BackendWPACLI:
	default:
		return fmt.Errorf("backend %q: %w", cfg.Backend, wireless.ErrUnknownBackend)
	}
	if cfg.CaptureInterval <= 0 {
		return fmt.Errorf("capture-interval must be positive")
	}
	if cfg.SettleDelay < 0 {
		return fmt.Errorf("settle-delay must be non-negative")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if cfg.PollAttempts <= 0 {
		return fmt.Errorf("poll-attempts must be positive")
	}
	return nil
}
