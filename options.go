package redoubt

import (
	"fmt"

	"github.com/memparanoid/redoubt/audit"
	"github.com/memparanoid/redoubt/vault"
)

// Options configures vault construction. The library reads no files and
// no environment; everything is set here. The zero value is a sensible
// secure default: no-op audit, memory locking and process hardening
// attempted.
type Options struct {
	// EnableAudit selects the bundled in-memory audit ring instead of
	// the no-op logger. Mutually exclusive with AuditLogger.
	EnableAudit bool

	// AuditCapacity bounds the in-memory ring when EnableAudit is set;
	// zero means the ring's default.
	AuditCapacity int

	// AuditLogger plugs in a caller-owned sink. The library never
	// writes audit data to disk itself.
	AuditLogger audit.Logger

	// DisableMemoryLock skips the best-effort attempt to lock process
	// memory against swapping. Correctness is unaffected.
	DisableMemoryLock bool

	// DisableHardening skips the one-time core-dump / ptrace process
	// hardening. Correctness is unaffected.
	DisableHardening bool
}

// Validate checks the options for contradictions.
func (o Options) Validate() error {
	if o.EnableAudit && o.AuditLogger != nil {
		return fmt.Errorf("redoubt: EnableAudit and AuditLogger are mutually exclusive")
	}
	if o.AuditCapacity < 0 {
		return fmt.Errorf("redoubt: negative audit capacity")
	}
	if o.AuditCapacity > 0 && !o.EnableAudit {
		return fmt.Errorf("redoubt: AuditCapacity requires EnableAudit")
	}
	return nil
}

// NewVault validates o and constructs a vault from it. Boxes for any
// number of payload types can be built against the one vault; they share
// its master key without ever holding it.
func NewVault(o Options) (*vault.Vault, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	logger := o.AuditLogger
	if o.EnableAudit {
		logger = audit.NewMemoryLogger(o.AuditCapacity)
	}

	return vault.New(vault.Config{
		Audit:             logger,
		DisableMemoryLock: o.DisableMemoryLock,
		DisableHardening:  o.DisableHardening,
	})
}
