package bootstrap

import (
	"context"
	"errors"
	"sync"

	"wifi-qr-scanner/internal/domain"
)

var errNoPendingConfirmation = errors.New("no connection awaiting confirmation")

// confirmRequest is pushed to the UI as scan:confirm. The password stays in
// the backend.
type confirmRequest struct {
	SSID string `json:"ssid"`
}

// confirmBridge turns the UI's asynchronous yes/no answer into a blocking
// capture.Confirmer call.
type confirmBridge struct {
	mu      sync.Mutex
	pending chan bool
	ask     func(confirmRequest)
}

// Confirm asks the UI and waits for Answer or ctx cancellation.
func (b *confirmBridge) Confirm(ctx context.Context, cred domain.Credential) (bool, error) {
	answer := make(chan bool, 1)
	b.mu.Lock()
	b.pending = answer
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		if b.pending == answer {
			b.pending = nil
		}
		b.mu.Unlock()
	}()

	if b.ask != nil {
		b.ask(confirmRequest{SSID: cred.SSID})
	}

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Answer resolves the pending confirmation.
func (b *confirmBridge) Answer(accept bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return errNoPendingConfirmation
	}
	b.pending <- accept
	b.pending = nil
	return nil
}
