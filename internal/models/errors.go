package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the administrative operations. Handlers map these to
// HTTP status codes, batch operations embed them in per-record results.
var (
	// ErrSubmissionNotFound means the submission id is unknown to the store.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidAction means the requested lifecycle action is not one of
	// close, deactivate, reactivate.
	ErrInvalidAction = errors.New("invalid lifecycle action")
	// ErrNoJoinKey means the submission has no metadataURI, so no safe repair
	// is possible.
	ErrNoJoinKey = errors.New("submission has no metadata URI join key")
	// ErrNoOnChainMatch means no registry campaign carries the submission's
	// metadataURI as its base URI.
	ErrNoOnChainMatch = errors.New("no on-chain campaign matches metadata URI")
	// ErrCampaignInactive means a campaign matched by base URI but is marked
	// inactive; linking to it would attach the record to an abandoned campaign.
	ErrCampaignInactive = errors.New("matched on-chain campaign is inactive")
	// ErrMissingCampaignID means a close was requested for a submission with
	// no campaign id.
	ErrMissingCampaignID = errors.New("submission has no campaign id")
	// ErrWriteConflict means the compare-and-set status update lost a race
	// with a concurrent transition. The decide-and-write cycle must be
	// retried against fresh state, never overwritten.
	ErrWriteConflict = errors.New("submission status changed concurrently")
)

// LedgerReadError wraps a transient failure reading a campaign projection.
// Reads are retried with backoff inside the ledger client; once the budget
// is exhausted the error is recorded and the slot skipped.
type LedgerReadError struct {
	CampaignID uint64
	Err        error
}

func (e *LedgerReadError) Error() string {
	return fmt.Sprintf("ledger read for campaign %d failed: %v", e.CampaignID, e.Err)
}

func (e *LedgerReadError) Unwrap() error { return e.Err }

// LedgerWriteError wraps a failed or unconfirmed on-chain transaction. It is
// never auto-retried; the off-chain record is left untouched and the error
// is surfaced for operator attention.
type LedgerWriteError struct {
	CampaignID uint64
	TxHash     string
	Err        error
}

func (e *LedgerWriteError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger write for campaign %d failed (tx %s): %v", e.CampaignID, e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger write for campaign %d failed: %v", e.CampaignID, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }
