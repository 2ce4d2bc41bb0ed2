// Package credstore persists broker OAuth tokens in an AES-256-GCM encrypted
// file. The key never touches the file; it arrives hex-encoded from config.
package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stockpilot/internal/ports"
)

const keyBytes = 32 // AES-256

// FileStore implements ports.CredentialStore with an encrypted file at rest.
type FileStore struct {
	path   string
	key    []byte
	logger ports.Logger
}

// Config holds configuration for the file-backed credential store.
type Config struct {
	Path   string
	HexKey string // hex-encoded 32-byte AES key
	Logger ports.Logger
}

// New creates a new encrypted file credential store.
func New(cfg Config) (*FileStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for credential store")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: credential store path is required", ports.ErrConfigurationError)
	}
	key, err := hex.DecodeString(cfg.HexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: TOKEN_ENCRYPTION_KEY is not valid hex: %v", ports.ErrConfigurationError, err)
	}
	if len(key) != keyBytes {
		return nil, fmt.Errorf("%w: TOKEN_ENCRYPTION_KEY must decode to %d bytes, got %d", ports.ErrConfigurationError, keyBytes, len(key))
	}
	return &FileStore{path: cfg.Path, key: key, logger: cfg.Logger}, nil
}

// Load retrieves and decrypts the stored credentials.
func (s *FileStore) Load(ctx context.Context) (*ports.Credentials, error) {
	ciphertext, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ports.ErrNoCredentials, s.path)
		}
		return nil, fmt.Errorf("reading credential file %s: %w", s.path, err)
	}

	plaintext, err := s.decrypt(ciphertext)
	if err != nil {
		s.logger.Error(ctx, err, "Credential decryption failed", map[string]interface{}{"path": s.path})
		return nil, fmt.Errorf("%w: %v", ports.ErrCredentialDecrypt, err)
	}

	var creds ports.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrCredentialCorrupted, err)
	}
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return nil, fmt.Errorf("%w: decrypted payload holds no tokens", ports.ErrCredentialCorrupted)
	}
	return &creds, nil
}

// Save encrypts and persists credentials, replacing any previous set. The
// write goes through a temp file and rename so a crash never leaves a
// half-written token file.
func (s *FileStore) Save(ctx context.Context, creds *ports.Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials must not be nil")
	}
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	ciphertext, err := s.encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating credential directory %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, ciphertext, 0600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing credential file: %w", err)
	}
	s.logger.Debug(ctx, "Credentials saved", map[string]interface{}{"path": s.path})
	return nil
}

// encrypt seals plaintext with AES-GCM; the random nonce is prepended to the
// ciphertext.
func (s *FileStore) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *FileStore) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
