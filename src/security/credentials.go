package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize    = 16
	pbkdf2Iters = 65536
	keySize     = 32
)

// Credentials holds the API key material for a live venue. The values only
// exist decrypted in memory; they must never be logged or embedded in error
// text.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iters, keySize, sha256.New)
}

// EncryptCredentials serializes and encrypts credentials for storage. The
// output layout is base64(salt || nonce || ciphertext) with a fresh salt and
// nonce each call.
func EncryptCredentials(creds Credentials, passphrase string) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encoding credentials: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	blob := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptCredentials reverses EncryptCredentials.
func DecryptCredentials(encoded, passphrase string) (*Credentials, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding credentials blob: %w", err)
	}
	if len(blob) < saltSize {
		return nil, fmt.Errorf("credentials blob too short")
	}

	salt := blob[:saltSize]
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	rest := blob[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("credentials blob too short")
	}

	plaintext, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: wrong passphrase or corrupt file")
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return &creds, nil
}

// LoadCredentials reads an encrypted credentials file. The file must not be
// readable by group or other.
func LoadCredentials(path, passphrase string) (*Credentials, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("credentials file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("credentials file %s has permissions %04o, want 0600", path, perm)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	return DecryptCredentials(string(raw), passphrase)
}

// WriteCredentials encrypts and writes a credentials file with owner-only
// permissions.
func WriteCredentials(path string, creds Credentials, passphrase string) error {
	encoded, err := EncryptCredentials(creds, passphrase)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(encoded), 0o600)
}
