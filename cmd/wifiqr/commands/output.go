package commands

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"wifi-qr-scanner/internal/jobs"
)

// eventPrinter writes attempt events as terminal lines.
func eventPrinter(out io.Writer) func(jobs.Event) {
	var mu sync.Mutex
	return func(event jobs.Event) {
		mu.Lock()
		defer mu.Unlock()

		switch event.Type {
		case jobs.EventTypeStep, jobs.EventTypeProgress, jobs.EventTypeResult:
			fmt.Fprintln(out, event.Message)
		case jobs.EventTypeLog:
			slog.Debug("wireless_command",
				"attempt_id", event.AttemptID,
				"command", event.Command,
				"args", event.Args,
				"exit_code", event.ExitCode,
			)
		case jobs.EventTypeError:
			slog.Debug("attempt_error", "attempt_id", event.AttemptID, "failure", event.Failure)
		}
	}
}
