package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wifiqr"
)

// DefaultInterval is the frame capture period.
const DefaultInterval = 30 * time.Millisecond

// Options configures a Loop.
type Options struct {
	CameraIndex int
	Interval    time.Duration
}

// Loop owns the camera while capturing and runs the capture/decode cycle on a
// single ticker goroutine.
type Loop struct {
	open       OpenCamera
	decoder    Decoder
	confirmer  Confirmer
	dispatcher Dispatcher
	opts       Options
	newTicker  func(time.Duration) (<-chan time.Time, func())

	mu            sync.Mutex
	state         domain.ScannerState
	camera        Camera
	cancel        context.CancelFunc
	done          chan struct{}
	confirmCancel context.CancelFunc
	confirmWG     sync.WaitGroup
	lastText      string
	onState       func(domain.ScannerState)
	onPreview     func(Frame, []Region)
}

// NewLoop wires the loop to its capabilities.
func NewLoop(open OpenCamera, decoder Decoder, confirmer Confirmer, dispatcher Dispatcher, opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Loop{
		open:       open,
		decoder:    decoder,
		confirmer:  confirmer,
		dispatcher: dispatcher,
		opts:       opts,
		newTicker:  realTicker,
		state:      domain.ScannerStateIdle,
	}
}

// NewLoopForTests builds a loop driven by an injected tick source.
func NewLoopForTests(
	open OpenCamera,
	decoder Decoder,
	confirmer Confirmer,
	dispatcher Dispatcher,
	opts Options,
	newTicker func(time.Duration) (<-chan time.Time, func()),
) *Loop {
	l := NewLoop(open, decoder, confirmer, dispatcher, opts)
	l.newTicker = newTicker
	return l
}

// OnStateChange registers a hook called after each state transition.
func (l *Loop) OnStateChange(fn func(domain.ScannerState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onState = fn
}

// OnPreview registers a hook receiving each frame and its decoded regions.
// The frame is only valid for the duration of the call.
func (l *Loop) OnPreview(fn func(Frame, []Region)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onPreview = fn
}

// State returns the current loop state.
func (l *Loop) State() domain.ScannerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start opens the camera and begins capturing. When the camera cannot be
// opened the loop stays idle and no ticker is started. Cancelling ctx stops
// capturing; Stop must still be called to release the camera.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != domain.ScannerStateIdle {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}

	camera, err := l.open(l.opts.CameraIndex)
	if err != nil {
		l.mu.Unlock()
		slog.Error("camera_open_failed", "camera_index", l.opts.CameraIndex, "error", err)
		return fmt.Errorf("%w: index %d: %v", ErrCameraUnavailable, l.opts.CameraIndex, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.camera = camera
	l.cancel = cancel
	l.done = done
	l.lastText = ""
	notify := l.setStateLocked(domain.ScannerStateCapturing)

	ticks, stopTicker := l.newTicker(l.opts.Interval)
	go l.run(runCtx, camera, ticks, stopTicker, done)
	l.mu.Unlock()

	slog.Info("scanner_started", "camera_index", l.opts.CameraIndex, "interval", l.opts.Interval)
	notify()
	return nil
}

// Stop halts the ticker, waits for the in-flight tick, cancels a pending
// confirmation and then releases the camera. Calling Stop on an idle loop is
// a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.camera == nil {
		l.mu.Unlock()
		return
	}
	camera, cancel, done, confirmCancel := l.camera, l.cancel, l.done, l.confirmCancel
	l.camera, l.cancel, l.done, l.confirmCancel = nil, nil, nil, nil
	l.mu.Unlock()

	cancel()
	<-done
	if confirmCancel != nil {
		confirmCancel()
	}
	l.confirmWG.Wait()

	if err := camera.Close(); err != nil {
		slog.Warn("camera_close_failed", "error", err)
	}

	l.mu.Lock()
	notify := l.setStateLocked(domain.ScannerStateIdle)
	l.mu.Unlock()

	slog.Info("scanner_stopped")
	notify()
}

// run is the ticker goroutine. It is the only reader of camera.
func (l *Loop) run(ctx context.Context, camera Camera, ticks <-chan time.Time, stopTicker func(), done chan struct{}) {
	defer close(done)
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			l.tick(ctx, camera)
		}
	}
}

// tick reads and decodes one frame. Read and decode failures skip the frame.
func (l *Loop) tick(ctx context.Context, camera Camera) {
	frame, err := camera.Read()
	if err != nil || frame == nil {
		return
	}
	defer frame.Close()

	regions, err := l.decoder.Decode(frame)
	if err != nil {
		slog.Debug("frame_decode_failed", "error", err)
		regions = nil
	}

	l.mu.Lock()
	preview := l.onPreview
	if err == nil {
		l.forgetAbsentLocked(regions)
	}
	l.mu.Unlock()
	if preview != nil {
		preview(frame, regions)
	}

	for _, region := range regions {
		if !wifiqr.IsCandidate(region.Text) {
			continue
		}
		cred, ok := wifiqr.Parse(region.Text)
		if !ok {
			continue
		}
		l.offer(ctx, region.Text, cred)
	}
}

// forgetAbsentLocked clears the last offered payload once a decoded frame no
// longer contains it, so the same code shown again is offered afresh.
func (l *Loop) forgetAbsentLocked(regions []Region) {
	if l.lastText == "" {
		return
	}
	for _, region := range regions {
		if region.Text == l.lastText {
			return
		}
	}
	l.lastText = ""
}

// offer starts a confirmation for cred unless one is pending, an attempt is
// active, or text was already offered and has stayed in frame since. In those
// cases the detection is dropped.
func (l *Loop) offer(ctx context.Context, text string, cred domain.Credential) {
	l.mu.Lock()
	if ctx.Err() != nil || l.state != domain.ScannerStateCapturing || l.dispatcher.Busy() || text == l.lastText {
		l.mu.Unlock()
		return
	}

	confirmCtx, cancel := context.WithCancel(ctx)
	l.lastText = text
	l.confirmCancel = cancel
	l.confirmWG.Add(1)
	notify := l.setStateLocked(domain.ScannerStateAwaitingConfirmation)
	l.mu.Unlock()

	slog.Info("network_detected", "ssid", cred.SSID)
	notify()
	go l.confirm(confirmCtx, cancel, cred)
}

// confirm asks the confirmer and dispatches on approval.
func (l *Loop) confirm(ctx context.Context, cancel context.CancelFunc, cred domain.Credential) {
	defer l.confirmWG.Done()
	defer cancel()

	approved, err := l.confirmer.Confirm(ctx, cred)
	switch {
	case ctx.Err() != nil:
		slog.Info("confirmation_cancelled", "ssid", cred.SSID)
		return
	case err != nil:
		slog.Warn("confirmation_failed", "ssid", cred.SSID, "error", err)
	case !approved:
		slog.Info("connection_declined", "ssid", cred.SSID)
	default:
		if _, err := l.dispatcher.Dispatch(cred); err != nil {
			slog.Warn("dispatch_failed", "ssid", cred.SSID, "error", err)
		}
	}

	l.mu.Lock()
	var notify func()
	if l.state == domain.ScannerStateAwaitingConfirmation {
		l.confirmCancel = nil
		notify = l.setStateLocked(domain.ScannerStateCapturing)
	}
	l.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// setStateLocked applies state and returns the hook call to run unlocked.
func (l *Loop) setStateLocked(state domain.ScannerState) func() {
	if l.state == state {
		return func() {}
	}
	l.state = state
	hook := l.onState
	return func() {
		if hook != nil {
			hook(state)
		}
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(d)
	return ticker.C, ticker.Stop
}
