// Package connector runs the connect-and-verify workflow for one scanned
// credential against a wireless interface.
//
// The workflow is destructive: it removes every stored wireless profile on the
// host before adding the new one, and there is no rollback if the new network
// then fails to connect. Reconnecting to a previous network needs a new scan.
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wireless"
)

// UpdateKind classifies messages emitted during an attempt.
type UpdateKind string

const (
	UpdateStep     UpdateKind = "step"
	UpdateProgress UpdateKind = "progress"
	UpdateResult   UpdateKind = "result"
)

// FailureKind tells a timed out attempt from one the interface rejected.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureInterface FailureKind = "interface"
	FailureTimeout   FailureKind = "timeout"
)

// TimeoutMessage is the terminal message when polling exhausts its bound.
const TimeoutMessage = "Connection Timeout"

// Update is one message of an attempt's stream. Exactly one UpdateResult is
// sent, last.
type Update struct {
	Kind    UpdateKind  `json:"kind"`
	Message string      `json:"message"`
	Poll    int         `json:"poll,omitempty"`
	Success bool        `json:"success,omitempty"`
	Failure FailureKind `json:"failure,omitempty"`
	Err     error       `json:"-"`
}

// Config holds the workflow timing.
type Config struct {
	SettleDelay  time.Duration
	PollInterval time.Duration
	PollAttempts int
	// DerivePSK stores the PBKDF2-derived key instead of the passphrase.
	DerivePSK bool
}

// ConfigFromSettings maps persisted settings to connector timing.
func ConfigFromSettings(settings domain.Settings) Config {
	return Config{
		SettleDelay:  settings.SettleDelay,
		PollInterval: settings.PollInterval,
		PollAttempts: settings.PollAttempts,
		DerivePSK:    settings.DerivePSK,
	}
}

// Connector owns the wireless interface for the duration of each attempt.
type Connector struct {
	iface wireless.Interface
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
}

// New constructs a connector driving iface.
func New(iface wireless.Interface, cfg Config) *Connector {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 10
	}
	return &Connector{
		iface: iface,
		cfg:   cfg,
		sleep: sleepContext,
	}
}

// NewForTests constructs a connector with an injectable sleep.
func NewForTests(iface wireless.Interface, cfg Config, sleep func(ctx context.Context, d time.Duration) error) *Connector {
	c := New(iface, cfg)
	c.sleep = sleep
	return c
}

// Connect starts the workflow on its own goroutine and returns its update
// stream. The channel is buffered for every update an attempt can produce and
// is closed after the terminal result.
func (c *Connector) Connect(ctx context.Context, cred domain.Credential) <-chan Update {
	updates := make(chan Update, c.cfg.PollAttempts+5)
	go func() {
		defer close(updates)
		updates <- c.run(ctx, cred, func(u Update) { updates <- u })
	}()
	return updates
}

// run executes the workflow and returns its terminal result.
func (c *Connector) run(ctx context.Context, cred domain.Credential, emit func(Update)) (result Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("connector_panic", "ssid", cred.SSID, "panic", r)
			result = failed(fmt.Errorf("%v", r))
		}
	}()

	emit(step("Disconnecting current network......"))
	if err := c.iface.Disconnect(ctx); err != nil {
		return failed(err)
	}
	if err := c.sleep(ctx, c.cfg.SettleDelay); err != nil {
		return failed(err)
	}

	emit(step("Removing Existing profiles......"))
	if err := c.iface.RemoveAllProfiles(ctx); err != nil {
		return failed(err)
	}

	emit(step("Adding new network profiles......"))
	profile, err := c.iface.AddProfile(ctx, wireless.NewWPA2Profile(cred.SSID, c.key(cred)))
	if err != nil {
		return failed(err)
	}

	emit(step(fmt.Sprintf("Connecting to %s......", cred.SSID)))
	if err := c.iface.Connect(ctx, profile); err != nil {
		return failed(err)
	}

	for poll := 1; poll <= c.cfg.PollAttempts; poll++ {
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return failed(err)
		}
		emit(Update{
			Kind:    UpdateProgress,
			Message: fmt.Sprintf("Connecting...... (%d/%d)", poll, c.cfg.PollAttempts),
			Poll:    poll,
		})

		status, err := c.iface.Status(ctx)
		if err != nil {
			return failed(err)
		}
		if status == wireless.StatusConnected {
			slog.Info("connector_connected", "ssid", cred.SSID, "polls", poll)
			return Update{
				Kind:    UpdateResult,
				Message: fmt.Sprintf("Connected to %s", cred.SSID),
				Success: true,
			}
		}
	}

	slog.Warn("connector_timeout", "ssid", cred.SSID, "polls", c.cfg.PollAttempts)
	return Update{
		Kind:    UpdateResult,
		Message: TimeoutMessage,
		Failure: FailureTimeout,
	}
}

// key returns the profile key, deriving the PSK when configured and possible.
func (c *Connector) key(cred domain.Credential) string {
	if !c.cfg.DerivePSK || wireless.IsRawPSK(cred.Password) {
		return cred.Password
	}
	if psk, ok := wireless.DerivePSK(cred.SSID, cred.Password); ok {
		return psk
	}
	return cred.Password
}

// step builds a stage update.
func step(message string) Update {
	return Update{Kind: UpdateStep, Message: message}
}

// failed builds the terminal result for an interface or context error.
func failed(err error) Update {
	slog.Error("connector_failed", "error", err)
	return Update{
		Kind:    UpdateResult,
		Message: fmt.Sprintf("Connection failed: %v", err),
		Failure: FailureInterface,
		Err:     err,
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
