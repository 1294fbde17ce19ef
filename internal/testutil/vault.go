package testutil

import (
	"github.com/Thirdegree/TheSentinel/internal/vault"
)

// NewTestVault returns an in-memory vault for tests.
func NewTestVault(name string) *vault.MemoryVault {
	return vault.NewMemoryVault(name)
}
