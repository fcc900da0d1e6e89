package commands

import (
	"wifi-qr-scanner/internal/capture"
	"wifi-qr-scanner/internal/capture/opencv"
	"wifi-qr-scanner/internal/session"
	"wifi-qr-scanner/internal/wireless"
)

func platformDeps() session.Deps {
	return session.Deps{
		OpenCamera: opencv.Open,
		NewDecoder: func() (capture.Decoder, error) {
			return opencv.NewDecoder(), nil
		},
		NewInterface: wireless.New,
	}
}
