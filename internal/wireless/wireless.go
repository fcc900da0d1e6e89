// Package wireless drives the host's WiFi interface through the OS network
// tooling. Implementations are destructive: RemoveAllProfiles deletes every
// stored wireless profile on the host and nothing here can restore them.
package wireless

import (
	"context"
	"errors"
	"fmt"
)

const (
	BackendNMCLI  = "nmcli"
	BackendWPACLI = "wpa_cli"
)

// ErrNoInterface is returned when the host has no wireless interface.
var ErrNoInterface = errors.New("no wireless interface found")

// ErrUnknownBackend is returned for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown wireless backend")

// Status is the association state reported by an interface.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusScanning     Status = "scanning"
	StatusInactive     Status = "inactive"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// AuthAlg is the 802.11 authentication algorithm.
type AuthAlg string

const (
	AuthAlgOpen   AuthAlg = "open"
	AuthAlgShared AuthAlg = "shared"
)

// AKM is the key management suite.
type AKM string

const (
	AKMNone    AKM = "none"
	AKMWPAPSK  AKM = "wpa-psk"
	AKMWPA2PSK AKM = "wpa2-psk"
)

// Cipher is the pairwise cipher suite.
type Cipher string

const (
	CipherNone Cipher = "none"
	CipherTKIP Cipher = "tkip"
	CipherCCMP Cipher = "ccmp"
)

// Profile is one stored network configuration.
type Profile struct {
	// ID is the backend handle assigned by AddProfile (connection UUID or network id).
	ID     string
	SSID   string
	Auth   AuthAlg
	AKM    []AKM
	Cipher Cipher
	Key    string
}

// NewWPA2Profile builds an open-auth WPA2-PSK/CCMP profile.
func NewWPA2Profile(ssid, key string) Profile {
	return Profile{
		SSID:   ssid,
		Auth:   AuthAlgOpen,
		AKM:    []AKM{AKMWPA2PSK},
		Cipher: CipherCCMP,
		Key:    key,
	}
}

// hasAKM reports whether the profile lists the given key management suite.
func (p Profile) hasAKM(want AKM) bool {
	for _, akm := range p.AKM {
		if akm == want {
			return true
		}
	}
	return false
}

// secured reports whether the profile needs a pre-shared key.
func (p Profile) secured() bool {
	return p.hasAKM(AKMWPA2PSK) || p.hasAKM(AKMWPAPSK)
}

// Interface is the capability the connector drives for one attempt.
type Interface interface {
	Disconnect(ctx context.Context) error
	RemoveAllProfiles(ctx context.Context) error
	AddProfile(ctx context.Context, profile Profile) (Profile, error)
	Connect(ctx context.Context, profile Profile) error
	Status(ctx context.Context) (Status, error)
}

// Option customizes backend construction.
type Option func(*options)

type options struct {
	onLog func(CommandLog)
}

// WithCommandLog reports every executed command (secrets redacted).
func WithCommandLog(fn func(CommandLog)) Option {
	return func(o *options) {
		o.onLog = fn
	}
}

// New builds the backend selected in settings. An empty iface means the first
// wireless interface the backend reports.
func New(backend, iface string, opts ...Option) (Interface, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	switch backend {
	case BackendNMCLI:
		n := NewNMCLI(iface)
		n.onLog = o.onLog
		return n, nil
	case BackendWPACLI:
		w := NewWPACLI(iface)
		w.onLog = o.onLog
		return w, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
}
