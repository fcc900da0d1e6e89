package domain

import "time"

// AttemptStatus tracks each stage of a single connection attempt.
type AttemptStatus string

const (
	AttemptStatusIdle       AttemptStatus = "idle"
	AttemptStatusPreparing  AttemptStatus = "preparing"
	AttemptStatusConnecting AttemptStatus = "connecting"
	AttemptStatusConnected  AttemptStatus = "connected"
	AttemptStatusFailed     AttemptStatus = "failed"
)

// ScannerState is the capture loop state reported to the UI.
type ScannerState string

const (
	ScannerStateIdle                 ScannerState = "idle"
	ScannerStateCapturing            ScannerState = "capturing"
	ScannerStateAwaitingConfirmation ScannerState = "awaiting_confirmation"
)

// Credential is the SSID/password pair extracted from a WIFI QR payload.
type Credential struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Attempt stores the current connection attempt identity and lifecycle status.
type Attempt struct {
	ID     string        `json:"id"`
	SSID   string        `json:"ssid,omitempty"`
	Status AttemptStatus `json:"status"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	CameraIndex     int           `json:"cameraIndex" mapstructure:"camera-index"`
	Backend         string        `json:"backend" mapstructure:"backend"`
	Interface       string        `json:"interface" mapstructure:"interface"`
	CaptureInterval time.Duration `json:"captureInterval" mapstructure:"capture-interval"`
	SettleDelay     time.Duration `json:"settleDelay" mapstructure:"settle-delay"`
	PollInterval    time.Duration `json:"pollInterval" mapstructure:"poll-interval"`
	PollAttempts    int           `json:"pollAttempts" mapstructure:"poll-attempts"`
	DerivePSK       bool          `json:"derivePsk" mapstructure:"derive-psk"`
}

// CameraOption is one capture device offered in the camera picker.
type CameraOption struct {
	Index    int    `json:"index"`
	Device   string `json:"device"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}
