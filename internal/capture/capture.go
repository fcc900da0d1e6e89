// Package capture drives the camera, finds WiFi QR codes in frames and hands
// confirmed credentials to the connection dispatcher.
package capture

import (
	"context"
	"errors"

	"wifi-qr-scanner/internal/domain"
)

// ErrCameraUnavailable is returned by Start when the camera cannot be opened.
var ErrCameraUnavailable = errors.New("camera unavailable")

// ErrAlreadyRunning is returned by Start while the loop is capturing.
var ErrAlreadyRunning = errors.New("scanner already running")

// Frame is one captured image. Callers must Close it.
type Frame interface {
	Close() error
}

// Camera yields frames until closed.
type Camera interface {
	Read() (Frame, error)
	Close() error
}

// OpenCamera opens the capture device with the given index.
type OpenCamera func(index int) (Camera, error)

// Rect is a region bounding box in pixels.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Region is one decoded QR code.
type Region struct {
	Text string `json:"text"`
	Rect Rect   `json:"rect"`
}

// Decoder finds and decodes QR codes in a frame.
type Decoder interface {
	Decode(frame Frame) ([]Region, error)
}

// Confirmer asks the user whether to connect to a scanned network.
type Confirmer interface {
	Confirm(ctx context.Context, cred domain.Credential) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, cred domain.Credential) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, cred domain.Credential) (bool, error) {
	return f(ctx, cred)
}

// AcceptAll confirms every credential.
var AcceptAll = ConfirmFunc(func(context.Context, domain.Credential) (bool, error) {
	return true, nil
})

// Dispatcher starts connection attempts.
type Dispatcher interface {
	Busy() bool
	Dispatch(cred domain.Credential) (domain.Attempt, error)
}
