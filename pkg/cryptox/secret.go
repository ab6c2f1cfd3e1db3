package cryptox

import (
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for stretching the secret file into a signing key.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the derived key
)

// signingKeySalt is a fixed domain-separation salt. The secret itself is
// high entropy (generated below), so the salt only needs to keep this
// derivation distinct from any other use of the same file.
var signingKeySalt = []byte("console-session-signing-key")

// LoadSigningKey reads the secret file at path, generating it on first boot,
// and stretches its contents into a 32-byte HMAC signing key with Argon2id.
func LoadSigningKey(path string) ([]byte, error) {
	secret, err := loadOrGenerateSecret(path)
	if err != nil {
		return nil, err
	}

	key := argon2.IDKey([]byte(secret), signingKeySalt, iterations, memory, parallelism, keyLength)
	return key, nil
}

// loadOrGenerateSecret loads the secret from a file or generates one if not
// found.
func loadOrGenerateSecret(path string) (string, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Generate a new secret and save it to the file
		secret, err := GenerateToken(TokenSize256)
		if err != nil {
			return "", err
		}

		if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
			return "", err
		}
		return secret, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
