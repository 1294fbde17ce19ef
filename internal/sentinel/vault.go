package sentinel

import "io"

// Vault stores audit archives exported from the ledger. Backends stream
// through io.Reader/io.Writer so large archives never need to be held in
// memory.
type Vault interface {
	// PutArchive stores a named archive. size is the number of bytes that will
	// be read from r. version is stored alongside for consistency checks.
	PutArchive(name string, r io.Reader, size int64, version int64) error

	// GetArchive retrieves a named archive and writes it to w.
	GetArchive(name string, w io.Writer) error

	// ArchiveVersion returns the stored version for a named archive.
	// Returns 0 when nothing has been stored under that name.
	ArchiveVersion(name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}
