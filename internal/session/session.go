// Package session assembles one scanning run from persisted settings: the
// wireless backend, the connector, the attempt dispatcher and the capture loop.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"wifi-qr-scanner/internal/capture"
	"wifi-qr-scanner/internal/connector"
	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/jobs"
	"wifi-qr-scanner/internal/wireless"
)

// Deps are the platform capabilities a session is built on.
type Deps struct {
	OpenCamera   capture.OpenCamera
	NewDecoder   func() (capture.Decoder, error)
	NewInterface func(backend, iface string, opts ...wireless.Option) (wireless.Interface, error)
}

// Session owns one capture loop and the dispatcher it feeds.
type Session struct {
	Loop       *capture.Loop
	Dispatcher *jobs.Dispatcher

	decoder   capture.Decoder
	closeOnce sync.Once
}

// New wires a session. The attempt manager and event bus are shared across
// sessions so only one attempt can run at a time process-wide.
func New(
	settings domain.Settings,
	manager *jobs.Manager,
	events *jobs.EventBus,
	confirmer capture.Confirmer,
	deps Deps,
) (*Session, error) {
	if deps.NewInterface == nil {
		deps.NewInterface = wireless.New
	}

	var dispatcher *jobs.Dispatcher
	iface, err := deps.NewInterface(settings.Backend, settings.Interface, wireless.WithCommandLog(func(log wireless.CommandLog) {
		dispatcher.PublishCommand(log)
	}))
	if err != nil {
		return nil, fmt.Errorf("wireless backend: %w", err)
	}

	conn := connector.New(iface, connector.ConfigFromSettings(settings))
	dispatcher = jobs.NewDispatcher(manager, events, conn)

	decoder, err := deps.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("qr decoder: %w", err)
	}

	loop := capture.NewLoop(deps.OpenCamera, decoder, confirmer, dispatcher, capture.Options{
		CameraIndex: settings.CameraIndex,
		Interval:    settings.CaptureInterval,
	})

	slog.Debug("session_built", "backend", settings.Backend, "interface", settings.Interface, "camera_index", settings.CameraIndex)
	return &Session{
		Loop:       loop,
		Dispatcher: dispatcher,
		decoder:    decoder,
	}, nil
}

// Start begins capturing.
func (s *Session) Start(ctx context.Context) error {
	return s.Loop.Start(ctx)
}

// Close stops the loop and releases the decoder. In-flight attempts keep
// running; use Wait to block on them.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Loop.Stop()
		if closer, ok := s.decoder.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("decoder_close_failed", "error", err)
			}
		}
	})
}

// Wait blocks until dispatched attempts have reported their result.
func (s *Session) Wait() {
	s.Dispatcher.Wait()
}
