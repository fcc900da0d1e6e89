package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"wifi-qr-scanner/internal/domain"
)

// pendingLines bounds how many lines typed between prompts are held before
// the reader blocks.
const pendingLines = 16

// promptConfirmer asks on the terminal. One reader goroutine owns input so
// an abandoned prompt never leaves a second reader behind.
type promptConfirmer struct {
	out   io.Writer
	lines <-chan string
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	lines := make(chan string, pendingLines)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return &promptConfirmer{out: out, lines: lines}
}

// Confirm prints the prompt and waits for a y/n answer. Lines typed before
// the prompt appeared are discarded.
func (p *promptConfirmer) Confirm(ctx context.Context, cred domain.Credential) (bool, error) {
	if err := p.discardPending(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "Found network %q. Connect? This removes all saved WiFi networks. [y/N]: ", cred.SSID)

	select {
	case line, ok := <-p.lines:
		if !ok {
			return false, io.EOF
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return false, ctx.Err()
	}
}

// discardPending drops queued input without blocking.
func (p *promptConfirmer) discardPending() error {
	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return io.EOF
			}
			slog.Debug("stale_input_discarded", "bytes", len(line))
		default:
			return nil
		}
	}
}
