package jobs

import (
	"errors"
	"fmt"
	"sync"

	"wifi-qr-scanner/internal/domain"
)

// ErrAttemptActive is returned when starting a second connection attempt.
var ErrAttemptActive = errors.New("connection attempt already running")

// ErrNoActiveAttempt is returned when transitioning without a started attempt.
var ErrNoActiveAttempt = errors.New("no connection attempt")

// Manager tracks the single allowed active attempt and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Attempt
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Attempt{
			Status: domain.AttemptStatusIdle,
		},
	}
}

// Start registers a new attempt and moves it to preparing state.
func (m *Manager) Start(attemptID, ssid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrAttemptActive
	}

	m.current = domain.Attempt{
		ID:     attemptID,
		SSID:   ssid,
		Status: domain.AttemptStatusPreparing,
	}
	return nil
}

// Transition validates and applies state transitions for current attempt.
func (m *Manager) Transition(status domain.AttemptStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.AttemptStatusIdle {
		return ErrNoActiveAttempt
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current attempt.
func (m *Manager) Current() domain.Attempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears attempt metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Attempt{Status: domain.AttemptStatusIdle}
}

// IsRunning reports whether an attempt is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// isRunning checks if a status represents an in-flight attempt.
func isRunning(status domain.AttemptStatus) bool {
	switch status {
	case domain.AttemptStatusPreparing, domain.AttemptStatusConnecting:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed attempt state machine edges.
func isValidTransition(from, to domain.AttemptStatus) bool {
	switch from {
	case domain.AttemptStatusIdle:
		return to == domain.AttemptStatusPreparing
	case domain.AttemptStatusPreparing:
		return to == domain.AttemptStatusConnecting || to == domain.AttemptStatusFailed
	case domain.AttemptStatusConnecting:
		return to == domain.AttemptStatusConnected || to == domain.AttemptStatusFailed
	case domain.AttemptStatusConnected, domain.AttemptStatusFailed:
		return to == domain.AttemptStatusPreparing || to == domain.AttemptStatusIdle
	default:
		return false
	}
}
