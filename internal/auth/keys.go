// Package auth issues and verifies PASETO tokens and hashes passwords.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeySize is the length of a PASETO v4 symmetric key.
const KeySize = 32

// KeyFile is the name of the key file inside the data directory.
const KeyFile = "auth.key"

// ParseKey decodes a hex-encoded token key.
func ParseKey(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	if len(keyHex) != hex.EncodedLen(KeySize) {
		return nil, fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", hex.EncodedLen(KeySize), len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid auth key format: not valid hex: %w", err)
	}
	return key, nil
}

// LoadOrGenerateKey returns the token key stored in dir/auth.key,
// creating the file with a fresh random key on first use.
func LoadOrGenerateKey(dir string) ([]byte, error) {
	keyPath := filepath.Join(dir, KeyFile)

	//#nosec G304 -- path derived from the configured data directory
	if data, err := os.ReadFile(keyPath); err == nil {
		return ParseKey(string(data))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read auth key: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate auth key: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}
	return key, nil
}
