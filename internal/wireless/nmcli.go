package wireless

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var nmcliUUIDPattern = regexp.MustCompile(`\(([0-9a-fA-F-]{36})\)`)

// NMCLI drives NetworkManager through the nmcli command line tool.
type NMCLI struct {
	invocation

	mu    sync.Mutex
	iface string
}

// NewNMCLI constructs an nmcli backend bound to iface (empty = first wifi device).
func NewNMCLI(iface string) *NMCLI {
	return &NMCLI{
		invocation: invocation{path: "nmcli", runner: &execRunner{}},
		iface:      strings.TrimSpace(iface),
	}
}

// NewNMCLIForTests constructs an nmcli backend with an injectable runner.
func NewNMCLIForTests(path, iface string, runner commandRunner) *NMCLI {
	return &NMCLI{
		invocation: invocation{path: path, runner: runner},
		iface:      iface,
	}
}

// Disconnect deactivates the device; an already inactive device is not an error.
func (n *NMCLI) Disconnect(ctx context.Context) error {
	iface, err := n.device(ctx)
	if err != nil {
		return err
	}

	_, err = n.run(ctx, "disconnect", "failed to disconnect "+iface, nil, "device", "disconnect", iface)
	if err != nil && isNotActive(err) {
		return nil
	}
	return err
}

// RemoveAllProfiles deletes every stored wifi connection profile.
func (n *NMCLI) RemoveAllProfiles(ctx context.Context) error {
	res, err := n.run(ctx, "remove_profiles", "failed to list connection profiles", nil,
		"-t", "-f", "UUID,TYPE", "connection", "show")
	if err != nil {
		return err
	}

	for _, line := range nonEmptyLines(res.Stdout) {
		fields := splitTerse(line)
		if len(fields) < 2 || !isWifiConnectionType(fields[1]) {
			continue
		}
		if _, err := n.run(ctx, "remove_profiles", "failed to delete profile "+fields[0], nil,
			"connection", "delete", "uuid", fields[0]); err != nil {
			return err
		}
	}
	return nil
}

// AddProfile creates a connection profile and returns it with its UUID as ID.
func (n *NMCLI) AddProfile(ctx context.Context, profile Profile) (Profile, error) {
	iface, err := n.device(ctx)
	if err != nil {
		return Profile{}, err
	}

	args := buildNMCLIAddArgs(iface, profile)
	res, err := n.run(ctx, "add_profile", "failed to add profile for "+profile.SSID, []string{profile.Key}, args...)
	if err != nil {
		return Profile{}, err
	}

	profile.ID = profile.SSID
	if m := nmcliUUIDPattern.FindStringSubmatch(res.Stdout); m != nil {
		profile.ID = m[1]
	}
	return profile, nil
}

// Connect asks NetworkManager to activate the profile without waiting.
func (n *NMCLI) Connect(ctx context.Context, profile Profile) error {
	iface, err := n.device(ctx)
	if err != nil {
		return err
	}

	selector := "uuid"
	if profile.ID == profile.SSID {
		selector = "id"
	}
	_, err = n.run(ctx, "connect", "failed to activate "+profile.SSID, nil,
		"--wait", "0", "connection", "up", selector, profile.ID, "ifname", iface)
	return err
}

// Status maps the NetworkManager device state of the interface.
func (n *NMCLI) Status(ctx context.Context) (Status, error) {
	iface, err := n.device(ctx)
	if err != nil {
		return StatusDisconnected, err
	}

	res, err := n.run(ctx, "status", "failed to read device state", nil,
		"-t", "-f", "GENERAL.STATE", "device", "show", iface)
	if err != nil {
		return StatusDisconnected, err
	}
	return parseNMCLIState(res.Stdout), nil
}

// device returns the configured interface or discovers the first wifi device.
func (n *NMCLI) device(ctx context.Context) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.iface != "" {
		return n.iface, nil
	}

	res, err := n.run(ctx, "interface", "failed to list devices", nil,
		"-t", "-f", "DEVICE,TYPE", "device", "status")
	if err != nil {
		return "", err
	}
	for _, line := range nonEmptyLines(res.Stdout) {
		fields := splitTerse(line)
		if len(fields) >= 2 && fields[1] == "wifi" {
			n.iface = fields[0]
			return n.iface, nil
		}
	}
	return "", ErrNoInterface
}

// buildNMCLIAddArgs builds the `connection add` command for a profile.
func buildNMCLIAddArgs(iface string, profile Profile) []string {
	args := []string{
		"connection", "add",
		"type", "wifi",
		"ifname", iface,
		"con-name", profile.SSID,
		"autoconnect", "no",
		"ssid", profile.SSID,
	}
	if !profile.secured() {
		return args
	}

	auth := profile.Auth
	if auth == "" {
		auth = AuthAlgOpen
	}
	args = append(args,
		"wifi-sec.key-mgmt", "wpa-psk",
		"wifi-sec.auth-alg", string(auth),
	)
	if profile.hasAKM(AKMWPA2PSK) && !profile.hasAKM(AKMWPAPSK) {
		args = append(args, "wifi-sec.proto", "rsn")
	}
	if profile.Cipher != "" && profile.Cipher != CipherNone {
		args = append(args,
			"wifi-sec.pairwise", string(profile.Cipher),
			"wifi-sec.group", string(profile.Cipher),
		)
	}
	return append(args, "wifi-sec.psk", profile.Key)
}

// parseNMCLIState maps `GENERAL.STATE:100 (connected)` to a Status.
func parseNMCLIState(out string) Status {
	for _, line := range nonEmptyLines(out) {
		fields := splitTerse(line)
		value := fields[len(fields)-1]
		codeText, _, _ := strings.Cut(strings.TrimSpace(value), " ")
		code, err := strconv.Atoi(codeText)
		if err != nil {
			continue
		}
		switch {
		case code == 100:
			return StatusConnected
		case code >= 40 && code < 100:
			return StatusConnecting
		case code == 10 || code == 20:
			return StatusInactive
		default:
			return StatusDisconnected
		}
	}
	return StatusDisconnected
}

// isWifiConnectionType reports whether an nmcli TYPE column is a wifi profile.
func isWifiConnectionType(kind string) bool {
	return kind == "802-11-wireless" || kind == "wifi"
}

// isNotActive detects nmcli's "device is not active" disconnect failure.
func isNotActive(err error) bool {
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		return false
	}
	return strings.Contains(strings.ToLower(stepErr.CommandLog.Stderr), "not active")
}

// splitTerse splits one nmcli -t line on unescaped colons.
func splitTerse(line string) []string {
	var fields []string
	var current strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, current.String())
}

// nonEmptyLines splits command output into trimmed, non-empty lines.
func nonEmptyLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// String describes the backend for logs.
func (n *NMCLI) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return fmt.Sprintf("nmcli(%s)", n.iface)
}
