package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"wifi-qr-scanner/internal/capture"
	"wifi-qr-scanner/internal/capture/opencv"
	"wifi-qr-scanner/internal/config"
	"wifi-qr-scanner/internal/diagnostics"
	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/jobs"
	"wifi-qr-scanner/internal/session"
	"wifi-qr-scanner/internal/wireless"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime event names pushed to the frontend.
const (
	EventAttempt = "scan:event"
	EventState   = "scan:state"
	EventConfirm = "scan:confirm"
	EventFrame   = "scan:frame"
)

// framePreview is one encoded camera frame with the codes found in it.
type framePreview struct {
	Image   []byte           `json:"image"`
	Regions []capture.Region `json:"regions"`
}

// App wires configuration, the scanner session, attempts and UI runtime
// callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Attempts    *jobs.Manager
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	fixer       *fixer
	deps        session.Deps
	encodeFrame func(capture.Frame) ([]byte, error)
	confirms    *confirmBridge

	scanMu  sync.Mutex
	session *session.Session

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	store := config.NewFileStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker(diagnostics.DefaultPaths(filepath.Dir(store.Path())))
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Attempts:    jobs.NewManager(),
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		fixer:       newFixer(),
		deps: session.Deps{
			OpenCamera: opencv.Open,
			NewDecoder: func() (capture.Decoder, error) {
				return opencv.NewDecoder(), nil
			},
			NewInterface: wireless.New,
		},
		encodeFrame: opencv.EncodeJPEG,
		events:      jobs.NewEventBus(1000),
	}
	app.confirms = &confirmBridge{ask: func(req confirmRequest) {
		app.emit(EventConfirm, req)
	}}
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "WiFi QR Scanner",
		Width:       960,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.StopScanner()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// StartScanner opens the camera with the saved settings and starts
// capturing. Settings saved while scanning apply from the next start.
func (a *App) StartScanner() (domain.ScannerState, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.ScannerStateIdle, fmt.Errorf("load settings: %w", err)
	}

	a.scanMu.Lock()
	defer a.scanMu.Unlock()
	if a.session != nil {
		return a.session.Loop.State(), capture.ErrAlreadyRunning
	}

	s, err := session.New(settings, a.Attempts, a.events, a.confirms, a.deps)
	if err != nil {
		return domain.ScannerStateIdle, err
	}
	s.Dispatcher.OnEvent(func(event jobs.Event) {
		a.emit(EventAttempt, event)
	})
	s.Loop.OnStateChange(func(state domain.ScannerState) {
		a.emit(EventState, state)
	})
	s.Loop.OnPreview(a.publishPreview)

	if err := s.Start(context.Background()); err != nil {
		s.Close()
		return domain.ScannerStateIdle, err
	}

	a.session = s
	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()
	return s.Loop.State(), nil
}

// StopScanner stops capturing and releases the camera. A running attempt
// continues to its result.
func (a *App) StopScanner() {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()
	if a.session == nil {
		return
	}
	a.session.Close()
	a.session = nil
}

// ConfirmCredential answers the pending scan:confirm prompt.
func (a *App) ConfirmCredential(accept bool) error {
	return a.confirms.Answer(accept)
}

// ScannerState returns the capture loop state.
func (a *App) ScannerState() domain.ScannerState {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()
	if a.session == nil {
		return domain.ScannerStateIdle
	}
	return a.session.Loop.State()
}

// CurrentAttempt returns current attempt metadata and status.
func (a *App) CurrentAttempt() domain.Attempt {
	return a.Attempts.Current()
}

// AttemptEvents returns all events with sequence greater than sinceSeq.
func (a *App) AttemptEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// publishPreview encodes a frame and pushes it with its regions.
func (a *App) publishPreview(frame capture.Frame, regions []capture.Region) {
	ctx := a.runtimeContext()
	if ctx == nil || a.encodeFrame == nil {
		return
	}

	image, err := a.encodeFrame(frame)
	if err != nil {
		return
	}
	wailsruntime.EventsEmit(ctx, EventFrame, framePreview{Image: image, Regions: regions})
}

// emit sends a runtime push notification when the UI is attached.
func (a *App) emit(name string, payload interface{}) {
	if ctx := a.runtimeContext(); ctx != nil {
		wailsruntime.EventsEmit(ctx, name, payload)
	}
}

// runtimeContext returns the Wails runtime context, nil before startup.
func (a *App) runtimeContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runtimeCtx
}

// normalizeSettings trims user inputs and replaces unset timing with defaults.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.Backend = strings.ToLower(strings.TrimSpace(settings.Backend))
	if settings.Backend == "" {
		settings.Backend = defaults.Backend
	}
	settings.Interface = strings.TrimSpace(settings.Interface)
	if settings.CameraIndex < 0 {
		settings.CameraIndex = defaults.CameraIndex
	}
	if settings.CaptureInterval <= 0 {
		settings.CaptureInterval = defaults.CaptureInterval
	}
	if settings.SettleDelay < 0 {
		settings.SettleDelay = defaults.SettleDelay
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaults.PollInterval
	}
	if settings.PollAttempts <= 0 {
		settings.PollAttempts = defaults.PollAttempts
	}
	return settings
}
