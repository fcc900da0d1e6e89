// Package opencv implements the capture capabilities on gocv.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"wifi-qr-scanner/internal/capture"
)

var errEmptyFrame = errors.New("empty frame")

// Frame wraps a gocv matrix.
type Frame struct {
	Mat gocv.Mat
}

// Close releases the matrix.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Camera reads frames from a video device.
type Camera struct {
	capture *gocv.VideoCapture
}

// Open opens the video device with the given index.
func Open(index int) (capture.Camera, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("open video device %d: %w", index, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("video device %d not opened", index)
	}
	return &Camera{capture: vc}, nil
}

// Read grabs the next frame.
func (c *Camera) Read() (capture.Frame, error) {
	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		_ = mat.Close()
		return nil, errEmptyFrame
	}
	return &Frame{Mat: mat}, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	return c.capture.Close()
}

// Decoder finds QR codes with the OpenCV QR detector.
type Decoder struct {
	detector gocv.QRCodeDetector
}

// NewDecoder allocates the detector. Callers must Close it.
func NewDecoder() *Decoder {
	return &Decoder{detector: gocv.NewQRCodeDetector()}
}

// Decode returns every decoded QR code in frame. Codes that were located but
// not decoded are skipped.
func (d *Decoder) Decode(frame capture.Frame) ([]capture.Region, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}

	points := gocv.NewMat()
	defer points.Close()
	var decoded []string
	var codes []gocv.Mat
	defer func() {
		for _, code := range codes {
			_ = code.Close()
		}
	}()

	if !d.detector.DetectAndDecodeMulti(f.Mat, &decoded, &points, &codes) {
		return nil, nil
	}

	regions := make([]capture.Region, 0, len(decoded))
	for i, text := range decoded {
		if text == "" {
			continue
		}
		regions = append(regions, capture.Region{Text: text, Rect: boundingRect(points, i)})
	}
	return regions, nil
}

// Close releases the detector.
func (d *Decoder) Close() error {
	return d.detector.Close()
}

// boundingRect folds the four corner points of code i into a box.
func boundingRect(points gocv.Mat, i int) capture.Rect {
	if points.Empty() || i >= points.Rows() {
		return capture.Rect{}
	}

	minX, minY := math.MaxFloat32, math.MaxFloat32
	maxX, maxY := -math.MaxFloat32, -math.MaxFloat32
	for j := 0; j < points.Cols(); j++ {
		v := points.GetVecfAt(i, j)
		if len(v) < 2 {
			continue
		}
		x, y := float64(v[0]), float64(v[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	if minX > maxX {
		return capture.Rect{}
	}

	r := image.Rect(int(minX), int(minY), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	return capture.Rect{Left: r.Min.X, Top: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// EncodeJPEG encodes frame for preview.
func EncodeJPEG(frame capture.Frame) ([]byte, error) {
	f, ok := frame.(*Frame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
