package testutil

import (
	"testing"

	"github.com/Thirdegree/TheSentinel/internal/database"
	"github.com/Thirdegree/TheSentinel/internal/database/migrations"
	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// NewTestLedger creates an in-memory SQLite ledger with the schema applied.
// The ledger is closed automatically when the test finishes.
func NewTestLedger(t *testing.T, scope sentinel.CommunityScope, clock sentinel.Clock) *database.SQLiteLedger {
	t.Helper()

	db, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		t.Fatalf("applying migrations: %v", err)
	}

	ledger := database.NewSQLiteLedgerFromDB(db, scope, clock, nil)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}
