package vault

import (
	"fmt"

	"github.com/Thirdegree/TheSentinel/internal/config"
	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config
// type.
func NewVaultFromConfig(cfg config.VaultConfig) (sentinel.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		return NewS3Vault(cfg)
	case "filesystem":
		if cfg.FSArchiveRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_archive_root to be set")
		}
		return NewFileSystemVault(cfg.Name, cfg.FSArchiveRoot)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
