package domain

import "time"

// TxStatus is the state of one orchestrated change.
type TxStatus int

const (
	// TxOpen means the transaction holds the lock and a staged working copy.
	TxOpen TxStatus = iota
	// TxValidated means the staged document passed schema validation.
	TxValidated
	// TxApplying means staged state is on disk and a restart was requested.
	TxApplying
	// TxVerifying means the restart reported success and the health probe is
	// being polled.
	TxVerifying
	// TxCommitted is terminal: staged state is now canonical.
	TxCommitted
	// TxRolledBack is terminal: staged state was discarded and canonical
	// state is unchanged.
	TxRolledBack
)

// String returns the lowercase name of the status.
func (s TxStatus) String() string {
	switch s {
	case TxOpen:
		return "open"
	case TxValidated:
		return "validated"
	case TxApplying:
		return "applying"
	case TxVerifying:
		return "verifying"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolledback"
	}
	return "unknown"
}

// Terminal reports whether the status is final.
func (s TxStatus) Terminal() bool {
	return s == TxCommitted || s == TxRolledBack
}

// Transaction is the ephemeral working state of one applyChange call. It is
// owned by the orchestrator for the duration of the call and never shared
// across concurrent operations.
type Transaction struct {
	ID       uint64
	Status   TxStatus
	OpenedAt time.Time

	// Staged working copies. Snapshot fields hold the pre-transaction truth
	// used for rollback.
	Doc             ConfigDocument
	SnapshotDoc     ConfigDocument
	Records         []PluginRecord
	SnapshotRecords []PluginRecord
}
