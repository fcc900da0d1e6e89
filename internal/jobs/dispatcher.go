package jobs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"wifi-qr-scanner/internal/connector"
	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wireless"
)

// connectorRunner isolates the connect workflow behind an interface.
type connectorRunner interface {
	Connect(ctx context.Context, cred domain.Credential) <-chan connector.Update
}

// Dispatcher starts connection attempts one at a time and republishes their
// update streams as events, in order.
type Dispatcher struct {
	manager *Manager
	events  *EventBus
	runner  connectorRunner
	newID   func() string

	mu   sync.Mutex
	sink func(Event)
	wg   sync.WaitGroup
}

// NewDispatcher wires attempt tracking, event history and the connector.
func NewDispatcher(manager *Manager, events *EventBus, runner connectorRunner) *Dispatcher {
	return &Dispatcher{
		manager: manager,
		events:  events,
		runner:  runner,
		newID:   uuid.NewString,
	}
}

// OnEvent registers a push sink called after each event is stored.
func (d *Dispatcher) OnEvent(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = fn
}

// Busy reports whether an attempt is in flight.
func (d *Dispatcher) Busy() bool {
	return d.manager.IsRunning()
}

// Current returns the latest attempt snapshot.
func (d *Dispatcher) Current() domain.Attempt {
	return d.manager.Current()
}

// Dispatch starts an attempt for cred. It returns ErrAttemptActive while
// another attempt is in flight. The attempt is not tied to any caller context
// and always runs to its terminal result.
func (d *Dispatcher) Dispatch(cred domain.Credential) (domain.Attempt, error) {
	attemptID := d.newID()
	if err := d.manager.Start(attemptID, cred.SSID); err != nil {
		return domain.Attempt{}, err
	}

	slog.Info("attempt_started", "attempt_id", attemptID, "ssid", cred.SSID)
	d.publishStatus(attemptID, domain.AttemptStatusPreparing, "Attempt started")

	updates := d.runner.Connect(context.Background(), cred)
	d.wg.Add(1)
	go d.forward(attemptID, updates)

	return d.manager.Current(), nil
}

// Wait blocks until every dispatched attempt has reported its result.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// PublishCommand records a wireless command log against the current attempt.
func (d *Dispatcher) PublishCommand(log wireless.CommandLog) {
	d.publish(Event{
		AttemptID: d.manager.Current().ID,
		Type:      EventTypeLog,
		Message:   "Command completed",
		Command:   log.Command,
		Args:      log.Args,
		ExitCode:  log.ExitCode,
		Stdout:    log.Stdout,
		Stderr:    log.Stderr,
	})
}

// forward maps connector updates to attempt transitions and events.
func (d *Dispatcher) forward(attemptID string, updates <-chan connector.Update) {
	defer d.wg.Done()

	for update := range updates {
		switch update.Kind {
		case connector.UpdateStep:
			d.publish(Event{AttemptID: attemptID, Type: EventTypeStep, Message: update.Message})
		case connector.UpdateProgress:
			if err := d.manager.Transition(domain.AttemptStatusConnecting); err == nil && update.Poll == 1 {
				d.publishStatus(attemptID, domain.AttemptStatusConnecting, "Waiting for association")
			}
			d.publish(Event{
				AttemptID: attemptID,
				Type:      EventTypeProgress,
				Status:    domain.AttemptStatusConnecting,
				Message:   update.Message,
				Poll:      update.Poll,
			})
		case connector.UpdateResult:
			d.finish(attemptID, update)
		}
	}
}

// finish applies the terminal transition before publishing the result so a
// subscriber reacting to it can start the next attempt.
func (d *Dispatcher) finish(attemptID string, update connector.Update) {
	status := domain.AttemptStatusFailed
	if update.Success {
		status = domain.AttemptStatusConnected
	}
	if err := d.manager.Transition(status); err != nil {
		slog.Error("attempt_transition_failed", "attempt_id", attemptID, "status", status, "error", err)
	}

	if update.Success {
		slog.Info("attempt_connected", "attempt_id", attemptID)
	} else {
		slog.Warn("attempt_failed", "attempt_id", attemptID, "failure", update.Failure, "message", update.Message)
		d.publish(Event{
			AttemptID: attemptID,
			Type:      EventTypeError,
			Status:    status,
			Message:   update.Message,
			Failure:   string(update.Failure),
		})
	}

	d.publish(Event{
		AttemptID: attemptID,
		Type:      EventTypeResult,
		Status:    status,
		Message:   update.Message,
		Success:   update.Success,
		Failure:   string(update.Failure),
	})
}

// publishStatus sends a normalized status event.
func (d *Dispatcher) publishStatus(attemptID string, status domain.AttemptStatus, message string) {
	d.publish(Event{
		AttemptID: attemptID,
		Type:      EventTypeStatus,
		Status:    status,
		Message:   message,
	})
}

// publish stores event history and forwards to the push sink.
func (d *Dispatcher) publish(event Event) {
	published := d.events.Publish(event)

	d.mu.Lock()
	sink := d.sink
	d.mu.Unlock()
	if sink != nil {
		sink(published)
	}
}
