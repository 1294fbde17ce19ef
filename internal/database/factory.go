package database

import (
	"fmt"
	"path/filepath"

	"github.com/Thirdegree/TheSentinel/internal/config"
	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// NewLedgerFromConfig creates a Ledger implementation based on the database
// config type.
func NewLedgerFromConfig(cfg config.DatabaseConfig, scope sentinel.CommunityScope, clock sentinel.Clock, logger sentinel.Logger) (sentinel.Ledger, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteLedger(filepath.Join(cfg.DataDir, "sentinel.db"), scope, clock, logger)
	case "memory":
		return NewSQLiteLedger(":memory:", scope, clock, logger)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
