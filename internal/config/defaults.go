package config

import (
	"os"
	"path/filepath"
	"time"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wireless"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		CameraIndex:     0,
		Backend:         wireless.BackendNMCLI,
		Interface:       "",
		CaptureInterval: 30 * time.Millisecond,
		SettleDelay:     time.Second,
		PollInterval:    time.Second,
		PollAttempts:    10,
		DerivePSK:       false,
	}
}

// DefaultPath returns the settings file location under the user's home.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".wifi-qr-scanner", "settings.json")
}
