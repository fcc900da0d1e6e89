package wireless

import (
	"crypto/sha1"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// DerivePSK computes the WPA2 pre-shared key for a passphrase as
// PBKDF2-HMAC-SHA1(passphrase, ssid, 4096, 32). It reports false when the
// passphrase is outside the 8..63 character range the derivation is defined for.
func DerivePSK(ssid, passphrase string) (string, bool) {
	if len(passphrase) < 8 || len(passphrase) > 63 {
		return "", false
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New)
	return hex.EncodeToString(key), true
}

// IsRawPSK reports whether key is already a 64 hex digit PSK.
func IsRawPSK(key string) bool {
	if len(key) != 64 {
		return false
	}
	_, err := hex.DecodeString(key)
	return err == nil
}
