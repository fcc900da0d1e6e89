package wireless

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

// TestWPACLIAddProfileConfiguresNetwork checks the set_network sequence.
func TestWPACLIAddProfileConfiguresNetwork(t *testing.T) {
	runner := &fakeRunner{
		run: func(name string, args ...string) (commandResult, error) {
			if args[2] == "add_network" {
				return commandResult{Stdout: "3\n"}, nil
			}
			return commandResult{Stdout: "OK\n"}, nil
		},
	}

	w := NewWPACLIForTests("wpa_cli", "wlan0", runner)
	profile, err := w.AddProfile(context.Background(), NewWPA2Profile("HomeNet", "hunter2hunter2"))
	if err != nil {
		t.Fatalf("AddProfile() error = %v", err)
	}
	if profile.ID != "3" {
		t.Fatalf("profile id = %q, want 3", profile.ID)
	}

	settings := map[string]string{}
	for _, call := range runner.calls {
		if len(call) != 7 || call[3] != "set_network" {
			continue
		}
		if call[4] != "3" {
			t.Fatalf("set_network id = %q, want 3", call[4])
		}
		settings[call[5]] = call[6]
	}

	want := map[string]string{
		"ssid":     hex.EncodeToString([]byte("HomeNet")),
		"key_mgmt": "WPA-PSK",
		"auth_alg": "OPEN",
		"proto":    "RSN",
		"pairwise": "CCMP",
		"psk":      `"hunter2hunter2"`,
	}
	for key, value := range want {
		if settings[key] != value {
			t.Fatalf("set_network %s = %q, want %q", key, settings[key], value)
		}
	}

	last := strings.Join(runner.calls[len(runner.calls)-1], " ")
	if last != "wpa_cli -i wlan0 enable_network 3" {
		t.Fatalf("last command = %q", last)
	}
}

// TestWPACLIRawPSKIsUnquoted checks 64 hex digit keys pass through unquoted.
func TestWPACLIRawPSKIsUnquoted(t *testing.T) {
	key := strings.Repeat("ab", 32)
	for _, kv := range buildWPANetworkSettings(NewWPA2Profile("HomeNet", key)) {
		if kv[0] == "psk" && kv[1] != key {
			t.Fatalf("psk = %q, want raw key", kv[1])
		}
	}
}

// TestWPACLIFailReplyIsError checks FAIL output on exit 0 becomes StepError.
func TestWPACLIFailReplyIsError(t *testing.T) {
	runner := &fakeRunner{
		run: func(name string, args ...string) (commandResult, error) {
			return commandResult{Stdout: "FAIL\n"}, nil
		},
	}

	w := NewWPACLIForTests("wpa_cli", "wlan0", runner)
	err := w.RemoveAllProfiles(context.Background())

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error type = %T, want *StepError", err)
	}
	if stepErr.Stage != "remove_profiles" {
		t.Fatalf("stage = %s, want remove_profiles", stepErr.Stage)
	}
	if !errors.Is(err, errCommandFailed) {
		t.Fatalf("error should wrap errCommandFailed, got %v", err)
	}
}

// TestWPACLIStatusDiscoversInterface checks interface listing and state mapping.
func TestWPACLIStatusDiscoversInterface(t *testing.T) {
	runner := &fakeRunner{
		run: func(name string, args ...string) (commandResult, error) {
			if args[0] == "interface" {
				return commandResult{Stdout: "Selected interface 'p2p-dev-wlan0'\nAvailable interfaces:\nwlan0\np2p-dev-wlan0\n"}, nil
			}
			return commandResult{Stdout: "bssid=aa:bb:cc:dd:ee:ff\nssid=HomeNet\nwpa_state=COMPLETED\n"}, nil
		},
	}

	w := NewWPACLIForTests("wpa_cli", "", runner)
	status, err := w.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status != StatusConnected {
		t.Fatalf("status = %s, want connected", status)
	}
	if got := strings.Join(runner.calls[1], " "); got != "wpa_cli -i wlan0 status" {
		t.Fatalf("status command = %q", got)
	}
}

// TestParseWPAState verifies wpa_state mapping.
func TestParseWPAState(t *testing.T) {
	cases := map[string]Status{
		"wpa_state=COMPLETED":      StatusConnected,
		"wpa_state=4WAY_HANDSHAKE": StatusConnecting,
		"wpa_state=SCANNING":       StatusScanning,
		"wpa_state=INACTIVE":       StatusInactive,
		"wpa_state=DISCONNECTED":   StatusDisconnected,
	}
	for in, want := range cases {
		if got := parseWPAState(in); got != want {
			t.Fatalf("parseWPAState(%q) = %s, want %s", in, got, want)
		}
	}
}
