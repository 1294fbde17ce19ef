package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// FileSystemVault stores audit archives as files:
//
//	<root>/
//	  archives/
//	    <name>          (archive content)
//	    <name>.version  (decimal version marker)
type FileSystemVault struct {
	name       string
	root       string
	archiveDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	archiveDir := filepath.Join(root, "archives")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSystemVault{name: name, root: root, archiveDir: archiveDir}, nil
}

// PutArchive stores a named archive with its version marker. The version file
// is written after the content so a torn write reads as the older version.
func (v *FileSystemVault) PutArchive(name string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(v.archiveDir, name)

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	versionPath := destPath + ".version"
	if err := os.WriteFile(versionPath, []byte(strconv.FormatInt(version, 10)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write version marker: %w", err)
	}
	return nil
}

// GetArchive retrieves a named archive and writes it to w.
func (v *FileSystemVault) GetArchive(name string, w io.Writer) error {
	f, err := os.Open(filepath.Join(v.archiveDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("archive not found: %s", name)
		}
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	return nil
}

// ArchiveVersion returns the stored version, or 0 when nothing is stored.
func (v *FileSystemVault) ArchiveVersion(name string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(v.archiveDir, name+".version"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read version marker: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed version marker for %s: %w", name, err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directory is writable.
func (v *FileSystemVault) ValidateSetup() error {
	probe := filepath.Join(v.archiveDir, ".probe")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return fmt.Errorf("archive directory not writable: %w", err)
	}
	return os.Remove(probe)
}

var _ sentinel.Vault = (*FileSystemVault)(nil)
