package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials are the bot account secrets kept sealed on disk. The plaintext
// only exists in memory while a command runs.
type Credentials struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// SetupEncryption generates the key pair protecting stored credentials.
func (a *SentinelApp) SetupEncryption(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// SealCredentials encrypts the credentials to the configured path. Sealing
// only needs the public key, so no passphrase is required.
func (a *SentinelApp) SealCredentials(creds *Credentials) error {
	if !a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption not set up, run setup first")
	}

	var plain bytes.Buffer
	if err := toml.NewEncoder(&plain).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	path := a.cfg.Encryption.CredentialsPath
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating credentials file: %w", err)
	}
	defer f.Close()

	if err := a.encryptor.Seal(&plain, f); err != nil {
		return fmt.Errorf("sealing credentials: %w", err)
	}
	return nil
}

// OpenCredentials decrypts the stored credentials using the passphrase.
func (a *SentinelApp) OpenCredentials(passphrase string) (*Credentials, error) {
	f, err := os.Open(a.cfg.Encryption.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("opening credentials file: %w", err)
	}
	defer f.Close()

	var plain bytes.Buffer
	if err := a.encryptor.Open(passphrase, f, &plain); err != nil {
		return nil, fmt.Errorf("unsealing credentials: %w", err)
	}

	var creds Credentials
	if _, err := toml.NewDecoder(&plain).Decode(&creds); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return &creds, nil
}
