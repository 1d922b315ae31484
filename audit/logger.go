// Package audit records security-relevant events from the vault and the
// cipher boxes: construction, seal/open outcomes, leaks, destruction.
// Events carry operation metadata only — never key bytes, never plaintext,
// never ciphertext.
//
// The library itself writes nothing to disk; the bundled sinks are a
// no-op logger and a bounded in-memory ring. Callers that need durable
// audit trails implement Logger against their own storage.
package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Actions emitted by this module.
const (
	ActionVaultCreate  = "vault.create"
	ActionVaultClose   = "vault.close"
	ActionSlotSeal     = "vault.slot.seal"
	ActionSlotOpen     = "vault.slot.open"
	ActionBoxCreate    = "box.create"
	ActionBoxOpen      = "box.open"
	ActionBoxOpenMut   = "box.open_mut"
	ActionFieldOpen    = "box.field.open"
	ActionFieldOpenMut = "box.field.open_mut"
	ActionFieldLeak    = "box.field.leak"
	ActionBoxDestroy   = "box.destroy"
)

// Logger is the pluggable audit sink.
type Logger interface {
	Log(action string, success bool, metadata map[string]interface{}) error
	Query(options QueryOptions) (QueryResult, error)
	Close() error
}

// Event is one recorded operation.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	VaultID   string                 `json:"vault_id,omitempty"`
	SlotIndex int                    `json:"slot_index"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// QueryOptions filters recorded events.
type QueryOptions struct {
	Since   *time.Time
	Until   *time.Time
	Action  string
	Success *bool // nil = all, true = only success, false = only failures
	VaultID string
	Limit   int
	Offset  int
}

// QueryResult contains the results of an audit query.
type QueryResult struct {
	Events     []Event `json:"events"`
	TotalCount int     `json:"total_count"`
	Filtered   int     `json:"filtered"`
	HasMore    bool    `json:"has_more"`
}

// NewEvent stamps an event with a fresh identifier and the current time.
func NewEvent(action string, success bool, metadata map[string]interface{}) Event {
	e := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Success:   success,
		SlotIndex: -1,
		Metadata:  metadata,
	}
	if v, ok := metadata["vault_id"].(string); ok {
		e.VaultID = v
	}
	if v, ok := metadata["slot"].(int); ok {
		e.SlotIndex = v
	}
	if v, ok := metadata["error"].(string); ok {
		e.Error = v
	}
	return e
}

func (e Event) matches(q QueryOptions) bool {
	if q.Action != "" && q.Action != e.Action {
		return false
	}
	if q.Success != nil && *q.Success != e.Success {
		return false
	}
	if q.VaultID != "" && q.VaultID != e.VaultID {
		return false
	}
	if q.Since != nil && e.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && e.Timestamp.After(*q.Until) {
		return false
	}
	return true
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s success=%t", e.Timestamp.Format(time.RFC3339), e.Action, e.Success)
}
