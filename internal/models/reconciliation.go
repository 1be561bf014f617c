package models

import "time"

// Classification is the per-submission outcome of a reconciliation pass.
type Classification string

const (
	// ClassificationValid means the stored campaign id agrees with the index.
	ClassificationValid Classification = "VALID"
	// ClassificationFixed means the stored campaign id disagreed and was repaired.
	ClassificationFixed Classification = "FIXED"
	// ClassificationOrphan means the record claims on-chain presence the
	// registry does not corroborate. Never repaired automatically.
	ClassificationOrphan Classification = "ORPHAN"
	// ClassificationError means the record could not be classified or the
	// repair write failed. The detail field carries the cause.
	ClassificationError Classification = "ERROR"
)

// ReconciliationResult is the ephemeral per-submission outcome of a batch run.
type ReconciliationResult struct {
	SubmissionID       string         `json:"submission_id"`
	Classification     Classification `json:"classification"`
	Detail             string         `json:"detail,omitempty"`
	ResolvedCampaignID *uint64        `json:"resolved_campaign_id,omitempty"`
}

// ReconciliationReport is the persisted summary of one batch run, kept so
// operators can inspect drift history without re-running the scan.
type ReconciliationReport struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Valid         int       `json:"valid"`
	Fixed         int       `json:"fixed"`
	Orphaned      int       `json:"orphaned"`
	Errored       int       `json:"errored"`
	ScannedSlots  int       `json:"scanned_slots"`
	SkippedSlots  int       `json:"skipped_slots"`
	URICollisions int       `gorm:"column:uri_collisions" json:"uri_collisions"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
