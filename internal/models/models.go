package models

import (
	"time"
)

type SubmissionStatus string

const (
	SubmissionStatusPending     SubmissionStatus = "pending"
	SubmissionStatusApproved    SubmissionStatus = "approved"
	SubmissionStatusMinted      SubmissionStatus = "minted"
	SubmissionStatusClosed      SubmissionStatus = "closed"
	SubmissionStatusDeactivated SubmissionStatus = "deactivated"
	SubmissionStatusRejected    SubmissionStatus = "rejected"
)

// Submission is the off-chain record of a campaign. It is authoritative for
// display, moderation and marketplace visibility; the campaign registry
// contract is authoritative for funds and mint state.
//
// MetadataURI is written once at mint time and acts as the join key between
// the two stores. CampaignID is the off-chain copy of the registry id and
// can be miswritten independently of it, which is what reconciliation
// detects and repairs.
type Submission struct {
	ID                   string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CampaignID           *uint64          `gorm:"index" json:"campaign_id,omitempty"`
	MetadataURI          string           `gorm:"index" json:"metadata_uri"`
	Status               SubmissionStatus `gorm:"default:pending;index" json:"status"`
	ContractAddress      string           `json:"contract_address"`
	ContractVersion      string           `json:"contract_version"`
	ChainID              string           `gorm:"column:chain_id" json:"chain_id"`
	VisibleOnMarketplace bool             `gorm:"default:false" json:"visible_on_marketplace"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}
