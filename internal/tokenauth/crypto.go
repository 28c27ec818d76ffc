package tokenauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"mediashelf/internal/storage"
)

const (
	ivSize          = 16
	tagSize         = 16
	keySize         = 32
	pbkdf2Rounds    = 100000
	hostSecretFile  = "host_secret.enc"
	hostSecretBytes = 32
	hostSecretSalt  = "mediashelf-host-secret"
	machineIDPath   = "/etc/machine-id"
)

// DeriveKey derives a 32-byte key with PBKDF2-HMAC-SHA256
func DeriveKey(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, pbkdf2Rounds, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, ivSize)
}

// Encrypt seals plaintext with AES-256-GCM and returns hex(iv).hex(tag).hex(ciphertext)
func Encrypt(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return strings.Join([]string{hex.EncodeToString(iv), hex.EncodeToString(tag), hex.EncodeToString(ct)}, "."), nil
}

// Decrypt reverses Encrypt. Any malformed input, wrong key or tampering yields (nil, false).
func Decrypt(key []byte, sealed string) ([]byte, bool) {
	parts := strings.Split(sealed, ".")
	if len(parts) != 3 {
		return nil, false
	}
	iv, err1 := hex.DecodeString(parts[0])
	tag, err2 := hex.DecodeString(parts[1])
	ct, err3 := hex.DecodeString(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || len(iv) != ivSize || len(tag) != tagSize {
		return nil, false
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, false
	}
	plain, err := gcm.Open(nil, iv, append(ct, tag...), nil)
	if err != nil {
		return nil, false
	}
	return plain, true
}

// HardwareID identifies this machine, falling back to the hostname
func HardwareID() string {
	if data, err := os.ReadFile(machineIDPath); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "mediashelf-unknown-host"
	}
	return host
}

// HostSecret loads the per-host signing secret from dataDir, creating it on first use.
// The secret is stored encrypted with a key derived from hardwareID.
func HostSecret(dataDir, hardwareID string) ([]byte, error) {
	key := DeriveKey([]byte(hardwareID), []byte(hostSecretSalt))
	path := filepath.Join(dataDir, hostSecretFile)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		secret, ok := Decrypt(key, strings.TrimSpace(string(data)))
		if !ok {
			return nil, errors.New("host secret cannot be decrypted on this machine")
		}
		return secret, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read host secret: %w", err)
	}

	secret := make([]byte, hostSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate host secret: %w", err)
	}
	sealed, err := Encrypt(key, secret)
	if err != nil {
		return nil, err
	}
	if err := storage.WriteFileAtomic(path, []byte(sealed), 0o600); err != nil {
		return nil, fmt.Errorf("write host secret: %w", err)
	}
	return secret, nil
}
