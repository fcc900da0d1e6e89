package wireless

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

// errCommandFailed marks a wpa_cli reply of FAIL on a zero exit status.
var errCommandFailed = errors.New("wpa_cli replied FAIL")

// WPACLI drives wpa_supplicant through its wpa_cli control client.
type WPACLI struct {
	invocation

	mu    sync.Mutex
	iface string
}

// NewWPACLI constructs a wpa_cli backend bound to iface (empty = first reported).
func NewWPACLI(iface string) *WPACLI {
	return &WPACLI{
		invocation: invocation{path: "wpa_cli", runner: &execRunner{}},
		iface:      strings.TrimSpace(iface),
	}
}

// NewWPACLIForTests constructs a wpa_cli backend with an injectable runner.
func NewWPACLIForTests(path, iface string, runner commandRunner) *WPACLI {
	return &WPACLI{
		invocation: invocation{path: path, runner: runner},
		iface:      iface,
	}
}

// Disconnect drops the current association.
func (w *WPACLI) Disconnect(ctx context.Context) error {
	_, err := w.control(ctx, "disconnect", "failed to disconnect", nil, "disconnect")
	return err
}

// RemoveAllProfiles removes every configured network block.
func (w *WPACLI) RemoveAllProfiles(ctx context.Context) error {
	_, err := w.control(ctx, "remove_profiles", "failed to remove networks", nil, "remove_network", "all")
	return err
}

// AddProfile adds and configures a network block; ID is the network id.
func (w *WPACLI) AddProfile(ctx context.Context, profile Profile) (Profile, error) {
	out, err := w.control(ctx, "add_profile", "failed to add network", nil, "add_network")
	if err != nil {
		return Profile{}, err
	}
	lines := nonEmptyLines(out)
	if len(lines) == 0 {
		return Profile{}, &StepError{Stage: "add_profile", Message: "add_network returned no network id"}
	}
	id := lines[len(lines)-1]

	for _, kv := range buildWPANetworkSettings(profile) {
		var secrets []string
		if kv[0] == "psk" {
			secrets = []string{profile.Key}
		}
		if _, err := w.control(ctx, "add_profile", "failed to set "+kv[0], secrets,
			"set_network", id, kv[0], kv[1]); err != nil {
			return Profile{}, err
		}
	}
	if _, err := w.control(ctx, "add_profile", "failed to enable network", nil, "enable_network", id); err != nil {
		return Profile{}, err
	}

	profile.ID = id
	return profile, nil
}

// Connect selects the network, disabling all others.
func (w *WPACLI) Connect(ctx context.Context, profile Profile) error {
	_, err := w.control(ctx, "connect", "failed to select network "+profile.ID, nil, "select_network", profile.ID)
	return err
}

// Status maps wpa_state from `wpa_cli status`.
func (w *WPACLI) Status(ctx context.Context) (Status, error) {
	out, err := w.control(ctx, "status", "failed to read status", nil, "status")
	if err != nil {
		return StatusDisconnected, err
	}
	return parseWPAState(out), nil
}

// control runs one wpa_cli command against the bound interface.
func (w *WPACLI) control(ctx context.Context, stage, message string, secrets []string, args ...string) (string, error) {
	iface, err := w.device(ctx)
	if err != nil {
		return "", err
	}

	full := append([]string{"-i", iface}, args...)
	res, err := w.run(ctx, stage, message, secrets, full...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Stdout) == "FAIL" {
		return "", &StepError{
			Stage:   stage,
			Message: message,
			CommandLog: CommandLog{
				Command: w.path,
				Args:    redactArgs(full, secrets),
				Stdout:  res.Stdout,
				Stderr:  res.Stderr,
			},
			Err: errCommandFailed,
		}
	}
	return res.Stdout, nil
}

// device returns the configured interface or the first one wpa_cli lists.
func (w *WPACLI) device(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.iface != "" {
		return w.iface, nil
	}

	res, err := w.run(ctx, "interface", "failed to list interfaces", nil, "interface")
	if err != nil {
		return "", err
	}
	if iface := parseWPAInterfaces(res.Stdout); iface != "" {
		w.iface = iface
		return iface, nil
	}
	return "", ErrNoInterface
}

// buildWPANetworkSettings returns set_network key/value pairs for a profile.
func buildWPANetworkSettings(profile Profile) [][2]string {
	settings := [][2]string{
		{"ssid", hex.EncodeToString([]byte(profile.SSID))},
	}
	if !profile.secured() {
		return append(settings, [2]string{"key_mgmt", "NONE"})
	}

	auth := profile.Auth
	if auth == "" {
		auth = AuthAlgOpen
	}
	settings = append(settings,
		[2]string{"key_mgmt", "WPA-PSK"},
		[2]string{"auth_alg", strings.ToUpper(string(auth))},
	)
	if profile.hasAKM(AKMWPA2PSK) && !profile.hasAKM(AKMWPAPSK) {
		settings = append(settings, [2]string{"proto", "RSN"})
	}
	if profile.Cipher != "" && profile.Cipher != CipherNone {
		settings = append(settings, [2]string{"pairwise", strings.ToUpper(string(profile.Cipher))})
	}

	psk := `"` + profile.Key + `"`
	if IsRawPSK(profile.Key) {
		psk = profile.Key
	}
	return append(settings, [2]string{"psk", psk})
}

// parseWPAInterfaces reads the first name under "Available interfaces:".
func parseWPAInterfaces(out string) string {
	listing := false
	for _, line := range nonEmptyLines(out) {
		if strings.HasPrefix(line, "Available interfaces") {
			listing = true
			continue
		}
		if listing {
			return line
		}
	}
	return ""
}

// parseWPAState maps the wpa_state line of `wpa_cli status`.
func parseWPAState(out string) Status {
	for _, line := range nonEmptyLines(out) {
		key, value, ok := strings.Cut(line, "=")
		if !ok || key != "wpa_state" {
			continue
		}
		switch value {
		case "COMPLETED":
			return StatusConnected
		case "SCANNING":
			return StatusScanning
		case "AUTHENTICATING", "ASSOCIATING", "ASSOCIATED", "4WAY_HANDSHAKE", "GROUP_HANDSHAKE":
			return StatusConnecting
		case "INACTIVE", "INTERFACE_DISABLED":
			return StatusInactive
		default:
			return StatusDisconnected
		}
	}
	return StatusDisconnected
}
