package tracker

import (
	"time"

	"github.com/Klingon-tech/octwallet/pkg/tx"
)

// Status is the local lifecycle state of a tracked transaction.
type Status string

// Record states. Confirmed, Failed and Cancelled are terminal.
const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSubmitted  Status = "submitted"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCancelled
}

// transitions lists the legal next states of each state.
var transitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusSubmitted, StatusFailed},
	StatusSubmitted:  {StatusConfirmed, StatusFailed},
}

func canTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Record is one tracked transaction.
type Record struct {
	ID          string    `json:"id"`
	Kind        tx.Kind   `json:"kind"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      uint64    `json:"amount"`
	Fee         uint64    `json:"fee"`
	Nonce       uint64    `json:"nonce"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"` // status lookups against the node
	LastError   string    `json:"lastError,omitempty"`
	TxHash      string    `json:"txHash,omitempty"`
	Epoch       uint64    `json:"epoch,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Pending reports whether the record is still waiting on the node.
func (r *Record) Pending() bool { return !r.Status.Terminal() }

// needsCheck reports whether reconciliation should ask the node about r.
func (r *Record) needsCheck() bool {
	return r.TxHash != "" && (r.Status == StatusSubmitted || r.Status == StatusProcessing)
}

// hashless reports whether r reached the node, or was being handed to it,
// without a hash to look it up by.
func (r *Record) hashless() bool {
	return r.TxHash == "" && (r.Status == StatusSubmitted || r.Status == StatusProcessing)
}

// Transition is passed to OnTransition callbacks.
type Transition struct {
	Record Record
	From   Status // empty for a newly queued record
}
