// Package vault implements audit archive storage backends.
package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// MemoryVault is an in-memory implementation of the Vault interface, useful
// for testing. Safe for concurrent use.
type MemoryVault struct {
	name     string
	archives map[string][]byte
	versions map[string]int64
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		archives: make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// PutArchive stores a named archive with its version marker.
func (m *MemoryVault) PutArchive(name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[name] = data
	m.versions[name] = version
	return nil
}

// GetArchive retrieves a named archive and writes it to w.
func (m *MemoryVault) GetArchive(name string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.archives[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("archive not found: %s", name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// ArchiveVersion returns the stored version, or 0 when nothing is stored.
func (m *MemoryVault) ArchiveVersion(name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[name], nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup() error { return nil }

var _ sentinel.Vault = (*MemoryVault)(nil)
