package bootstrap

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"wifi-qr-scanner/internal/wireless"
)

// recordingFixer builds a fixer over a fake PATH that records commands.
func recordingFixer(onPath map[string]bool, fail map[string]bool) (*fixer, *[][]string) {
	var calls [][]string
	f := &fixer{
		lookPath: func(name string) (string, error) {
			if onPath[name] {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		run: func(name string, args ...string) error {
			calls = append(calls, append([]string{name}, args...))
			if fail[name] {
				return errors.New(name + " failed")
			}
			return nil
		},
	}
	return f, &calls
}

// TestInstallBackendFallsBackToElevation checks pkexec retry after a plain failure.
func TestInstallBackendFallsBackToElevation(t *testing.T) {
	onPath := map[string]bool{"dnf": true, "pkexec": true, "nmcli": true}
	f, calls := recordingFixer(onPath, map[string]bool{"dnf": true})

	if err := f.installBackend(wireless.BackendNMCLI); err != nil {
		t.Fatalf("installBackend() error = %v", err)
	}

	want := [][]string{
		{"dnf", "install", "-y", "NetworkManager"},
		{"pkexec", "dnf", "install", "-y", "NetworkManager"},
	}
	if !reflect.DeepEqual(*calls, want) {
		t.Fatalf("calls = %v, want %v", *calls, want)
	}
}

// TestInstallBackendWithoutPackageManager reports a missing manager.
func TestInstallBackendWithoutPackageManager(t *testing.T) {
	f, calls := recordingFixer(map[string]bool{}, nil)

	err := f.installBackend(wireless.BackendWPACLI)
	if err == nil || !strings.Contains(err.Error(), "no supported package manager") {
		t.Fatalf("installBackend() error = %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("calls = %v, want none", *calls)
	}
}

// TestEnableWirelessRunsRadioCommands checks the radio is unblocked and enabled.
func TestEnableWirelessRunsRadioCommands(t *testing.T) {
	f, calls := recordingFixer(map[string]bool{"rfkill": true, "nmcli": true}, nil)

	if err := f.enableWireless(); err != nil {
		t.Fatalf("enableWireless() error = %v", err)
	}
	want := [][]string{
		{"rfkill", "unblock", "wifi"},
		{"nmcli", "radio", "wifi", "on"},
	}
	if !reflect.DeepEqual(*calls, want) {
		t.Fatalf("calls = %v, want %v", *calls, want)
	}
}

// TestEnableWirelessWithoutTools reports missing tooling.
func TestEnableWirelessWithoutTools(t *testing.T) {
	f, _ := recordingFixer(map[string]bool{}, nil)
	if err := f.enableWireless(); err == nil {
		t.Fatal("expected error without rfkill or nmcli")
	}
}
