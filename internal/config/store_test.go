package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wireless"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Backend != wireless.BackendNMCLI {
		t.Fatalf("backend = %q, want %q", cfg.Backend, wireless.BackendNMCLI)
	}
	if cfg.PollAttempts != 10 {
		t.Fatalf("poll attempts = %d, want 10", cfg.PollAttempts)
	}
	if cfg.CaptureInterval != 30*time.Millisecond {
		t.Fatalf("capture interval = %s, want 30ms", cfg.CaptureInterval)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

// TestFileStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestFileStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewFileStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestFileStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestFileStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewFileStore(path)
	want := domain.Settings{
		CameraIndex:     2,
		Backend:         wireless.BackendWPACLI,
		Interface:       "wlan1",
		CaptureInterval: 50 * time.Millisecond,
		SettleDelay:     1500 * time.Millisecond,
		PollInterval:    2 * time.Second,
		PollAttempts:    5,
		DerivePSK:       true,
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestFileStoreEnvOverride checks WIFIQR_ environment overrides.
func TestFileStoreEnvOverride(t *testing.T) {
	t.Setenv("WIFIQR_CAMERA_INDEX", "3")
	t.Setenv("WIFIQR_POLL_ATTEMPTS", "4")

	store := NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.CameraIndex != 3 {
		t.Fatalf("camera index = %d, want 3", got.CameraIndex)
	}
	if got.PollAttempts != 4 {
		t.Fatalf("poll attempts = %d, want 4", got.PollAttempts)
	}
}

// TestFileStoreFlagOverride checks explicitly set flags win over defaults.
func TestFileStoreFlagOverride(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("interface", "", "")
	flags.Int("camera-index", 0, "")
	if err := flags.Parse([]string{"--interface", "wlp2s0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	store := NewFileStore(filepath.Join(t.TempDir(), "settings.json"))
	store.BindFlags(flags)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Interface != "wlp2s0" {
		t.Fatalf("interface = %q, want wlp2s0", got.Interface)
	}
	if got.CameraIndex != 0 {
		t.Fatalf("camera index = %d, want 0", got.CameraIndex)
	}
}

// TestFileStoreLoadInvalidJSON checks parse error handling.
func TestFileStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewFileStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestValidateRejectsUnknownBackend checks backend validation.
func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := DefaultSettings()
	cfg.Backend = "netplan"

	err := Validate(cfg)
	if !errors.Is(err, wireless.ErrUnknownBackend) {
		t.Fatalf("Validate() error = %v, want %v", err, wireless.ErrUnknownBackend)
	}
}
