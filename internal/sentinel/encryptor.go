package sentinel

import "io"

// Encryptor seals bot credentials at rest. Sealing needs only the public half
// of the key pair; opening requires the passphrase that protects the private
// half.
type Encryptor interface {
	// Setup generates and stores a new key pair, protecting the private key
	// with the passphrase.
	Setup(passphrase string) error

	// Seal encrypts r into w.
	Seal(r io.Reader, w io.Writer) error

	// Open decrypts r into w using the passphrase-protected private key.
	Open(passphrase string, r io.Reader, w io.Writer) error

	// IsConfigured reports whether a key pair is already in place.
	IsConfigured() bool
}
