package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"wifi-qr-scanner/internal/capture"
	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/jobs"
	"wifi-qr-scanner/internal/session"
	"wifi-qr-scanner/internal/wireless"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    []domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.saved = append(s.saved, settings)
	return nil
}

type fakeFrame struct{}

func (fakeFrame) Close() error { return nil }

type fakeCamera struct{}

func (fakeCamera) Read() (capture.Frame, error) { return fakeFrame{}, nil }
func (fakeCamera) Close() error                 { return nil }

// fakeDecoder sees one WiFi code in every frame.
type fakeDecoder struct{}

func (fakeDecoder) Decode(capture.Frame) ([]capture.Region, error) {
	return []capture.Region{{Text: "WIFI:T:WPA;S:Office;P:correcthorse;;"}}, nil
}

// fakeInterface reports connected on the second poll.
type fakeInterface struct {
	polls int
}

func (f *fakeInterface) Disconnect(context.Context) error        { return nil }
func (f *fakeInterface) RemoveAllProfiles(context.Context) error { return nil }
func (f *fakeInterface) AddProfile(_ context.Context, p wireless.Profile) (wireless.Profile, error) {
	return p, nil
}
func (f *fakeInterface) Connect(context.Context, wireless.Profile) error { return nil }
func (f *fakeInterface) Status(context.Context) (wireless.Status, error) {
	f.polls++
	if f.polls >= 2 {
		return wireless.StatusConnected, nil
	}
	return wireless.StatusConnecting, nil
}

func testSettings() domain.Settings {
	return domain.Settings{
		Backend:         wireless.BackendNMCLI,
		CaptureInterval: time.Millisecond,
		SettleDelay:     time.Millisecond,
		PollInterval:    time.Millisecond,
		PollAttempts:    5,
	}
}

// newTestApp builds an App on fakes. asked receives confirmation prompts.
func newTestApp(openCamera capture.OpenCamera) (*App, chan confirmRequest) {
	asked := make(chan confirmRequest, 1)
	app := &App{
		Store:    &fakeStore{settings: testSettings()},
		Attempts: jobs.NewManager(),
		deps: session.Deps{
			OpenCamera: openCamera,
			NewDecoder: func() (capture.Decoder, error) { return fakeDecoder{}, nil },
			NewInterface: func(string, string, ...wireless.Option) (wireless.Interface, error) {
				return &fakeInterface{}, nil
			},
		},
		events: jobs.NewEventBus(1000),
	}
	app.confirms = &confirmBridge{ask: func(req confirmRequest) {
		select {
		case asked <- req:
		default:
		}
	}}
	return app, asked
}

func openFakeCamera(int) (capture.Camera, error) {
	return fakeCamera{}, nil
}

// TestScannerConfirmAndConnect checks the scan, confirm, connect flow.
func TestScannerConfirmAndConnect(t *testing.T) {
	app, asked := newTestApp(openFakeCamera)
	t.Cleanup(app.StopScanner)

	state, err := app.StartScanner()
	if err != nil {
		t.Fatalf("StartScanner() error = %v", err)
	}
	if state != domain.ScannerStateCapturing {
		t.Fatalf("state = %s, want capturing", state)
	}

	select {
	case req := <-asked:
		if req.SSID != "Office" {
			t.Fatalf("confirm ssid = %q, want Office", req.SSID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no confirmation requested")
	}
	if got := app.ScannerState(); got != domain.ScannerStateAwaitingConfirmation {
		t.Fatalf("state = %s, want awaiting_confirmation", got)
	}

	if err := app.ConfirmCredential(true); err != nil {
		t.Fatalf("ConfirmCredential() error = %v", err)
	}
	waitForAttempt(t, app, domain.AttemptStatusConnected)
	app.StopScanner()

	events := app.AttemptEvents(0)
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeStep)
	assertEventTypeExists(t, events, jobs.EventTypeProgress)
	assertEventTypeExists(t, events, jobs.EventTypeResult)

	if app.CurrentAttempt().SSID != "Office" {
		t.Fatalf("attempt ssid = %q, want Office", app.CurrentAttempt().SSID)
	}
	if got := app.ScannerState(); got != domain.ScannerStateIdle {
		t.Fatalf("state after stop = %s, want idle", got)
	}
}

// TestStartScannerCameraUnavailable checks a camera failure leaves the
// scanner idle.
func TestStartScannerCameraUnavailable(t *testing.T) {
	app, _ := newTestApp(func(int) (capture.Camera, error) {
		return nil, errors.New("busy")
	})

	state, err := app.StartScanner()
	if !errors.Is(err, capture.ErrCameraUnavailable) {
		t.Fatalf("StartScanner() error = %v, want %v", err, capture.ErrCameraUnavailable)
	}
	if state != domain.ScannerStateIdle || app.ScannerState() != domain.ScannerStateIdle {
		t.Fatalf("state = %s, want idle", state)
	}
}

// TestStartScannerTwice checks the single-session guard.
func TestStartScannerTwice(t *testing.T) {
	app, _ := newTestApp(openFakeCamera)
	t.Cleanup(app.StopScanner)

	if _, err := app.StartScanner(); err != nil {
		t.Fatalf("StartScanner() error = %v", err)
	}
	if _, err := app.StartScanner(); !errors.Is(err, capture.ErrAlreadyRunning) {
		t.Fatalf("second StartScanner() error = %v, want %v", err, capture.ErrAlreadyRunning)
	}
}

// TestConfirmCredentialWithoutPrompt checks stray answers are rejected.
func TestConfirmCredentialWithoutPrompt(t *testing.T) {
	app, _ := newTestApp(openFakeCamera)
	if err := app.ConfirmCredential(true); !errors.Is(err, errNoPendingConfirmation) {
		t.Fatalf("ConfirmCredential() error = %v, want %v", err, errNoPendingConfirmation)
	}
}

// TestSaveSettingsNormalizes checks defaults fill unset timing.
func TestSaveSettingsNormalizes(t *testing.T) {
	app, _ := newTestApp(openFakeCamera)

	saved, err := app.SaveSettings(domain.Settings{Backend: " WPA_CLI ", Interface: " wlan0 "})
	if err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	if saved.Backend != wireless.BackendWPACLI || saved.Interface != "wlan0" {
		t.Fatalf("saved = %+v", saved)
	}
	if saved.PollAttempts != 10 || saved.CaptureInterval != 30*time.Millisecond {
		t.Fatalf("timing defaults not applied: %+v", saved)
	}
}

// waitForAttempt polls until the attempt reaches desired status or times out.
func waitForAttempt(t *testing.T, app *App, want domain.AttemptStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentAttempt().Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", app.CurrentAttempt().Status, want)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
