package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"wifi-qr-scanner/internal/config"
	"wifi-qr-scanner/internal/domain"
	"wifi-qr-scanner/internal/wireless"
)

const installCommandTimeout = 10 * time.Minute

type installOption struct {
	manager  string
	commands [][]string
}

// fixer runs remediation commands with elevation fallbacks.
type fixer struct {
	lookPath func(string) (string, error)
	run      func(name string, args ...string) error
}

func newFixer() *fixer {
	return &fixer{
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	f := a.fixer
	if f == nil {
		f = newFixer()
	}

	var fixErr error
	switch id {
	case "tool_" + wireless.BackendNMCLI:
		fixErr = f.installBackend(wireless.BackendNMCLI)
	case "tool_" + wireless.BackendWPACLI:
		fixErr = f.installBackend(wireless.BackendWPACLI)
	case "wireless_interface":
		fixErr = f.enableWireless()
	case "settings_dir":
		fixErr = fixSettingsDir(a.Store)
	case "camera":
		fixErr = fmt.Errorf("camera %d cannot be fixed automatically; connect a camera or change the camera index", settings.CameraIndex)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// installBackend installs the package that provides the backend CLI.
func (f *fixer) installBackend(backend string) error {
	var options []installOption
	switch backend {
	case wireless.BackendNMCLI:
		options = []installOption{
			{manager: "apt-get", commands: [][]string{{"apt-get", "install", "-y", "network-manager"}}},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", "NetworkManager"}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-S", "--noconfirm", "networkmanager"}}},
			{manager: "zypper", commands: [][]string{{"zypper", "--non-interactive", "install", "NetworkManager"}}},
		}
	case wireless.BackendWPACLI:
		options = []installOption{
			{manager: "apt-get", commands: [][]string{{"apt-get", "install", "-y", "wpasupplicant"}}},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", "wpa_supplicant"}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-S", "--noconfirm", "wpa_supplicant"}}},
			{manager: "zypper", commands: [][]string{{"zypper", "--non-interactive", "install", "wpa_supplicant"}}},
		}
	default:
		return fmt.Errorf("%w: %s", wireless.ErrUnknownBackend, backend)
	}

	installErr := f.runFirstSuccessfulInstall(options)
	if _, err := f.lookPath(backend); err != nil {
		if installErr != nil {
			return fmt.Errorf("install %s failed: %v | verify %s on PATH: %w", backend, installErr, backend, err)
		}
		return fmt.Errorf("verify %s on PATH: %w", backend, err)
	}
	return nil
}

// enableWireless lifts a soft block and turns the radio on.
func (f *fixer) enableWireless() error {
	attempted := false
	var failures []string

	if f.commandAvailable("rfkill") {
		attempted = true
		if err := f.runCommandWithPossibleElevation([]string{"rfkill", "unblock", "wifi"}); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if f.commandAvailable(wireless.BackendNMCLI) {
		attempted = true
		if err := f.run(wireless.BackendNMCLI, "radio", "wifi", "on"); err != nil {
			failures = append(failures, err.Error())
		}
	}

	if !attempted {
		return fmt.Errorf("neither rfkill nor nmcli is available to enable the wireless radio")
	}
	if len(failures) > 0 {
		return errors.New(strings.Join(failures, " | "))
	}
	return nil
}

// fixSettingsDir creates the directory holding the settings file.
func fixSettingsDir(store config.Store) error {
	path := config.DefaultPath()
	if fs, ok := store.(*config.FileStore); ok {
		path = fs.Path()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory %s: %w", dir, err)
	}
	return nil
}

func (f *fixer) runFirstSuccessfulInstall(options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured")
	}

	errorsByManager := make([]string, 0, len(options))
	atLeastOneManager := false

	for _, option := range options {
		if !f.commandAvailable(option.manager) {
			continue
		}
		atLeastOneManager = true
		if err := f.runInstallCommands(option.commands); err == nil {
			return nil
		} else {
			errorsByManager = append(errorsByManager, fmt.Sprintf("%s: %v", option.manager, err))
		}
	}

	if !atLeastOneManager {
		return fmt.Errorf("no supported package manager found")
	}
	return errors.New(strings.Join(errorsByManager, " | "))
}

func (f *fixer) runInstallCommands(commands [][]string) error {
	for _, command := range commands {
		if err := f.runCommandWithPossibleElevation(command); err != nil {
			return err
		}
	}
	return nil
}

func (f *fixer) runCommandWithPossibleElevation(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := [][]string{command}
	if requiresElevation(command[0]) {
		if f.commandAvailable("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, command...))
		}
		if f.commandAvailable("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
		}
	}

	attemptErrors := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := f.run(candidate[0], candidate[1:]...); err == nil {
			return nil
		} else {
			attemptErrors = append(attemptErrors, err.Error())
		}
	}

	return errors.New(strings.Join(attemptErrors, " | "))
}

func (f *fixer) commandAvailable(name string) bool {
	_, err := f.lookPath(name)
	return err == nil
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", formatCommand(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", formatCommand(name, args), err, trimmed)
}

func formatCommand(name string, args []string) string {
	parts := append([]string{name}, args...)
	return strings.Join(parts, " ")
}

func requiresElevation(name string) bool {
	switch name {
	case "apt-get", "dnf", "pacman", "zypper", "rfkill":
		return true
	default:
		return false
	}
}
