package models

import "time"

type AuditAction string

const (
	AuditActionClose      AuditAction = "close"
	AuditActionDeactivate AuditAction = "deactivate"
	AuditActionReactivate AuditAction = "reactivate"
	AuditActionRepair     AuditAction = "repair"
)

// AuditEvent is the append-only record mirrored to the audit sink for every
// mutation performed by the lifecycle controller and the reconciliation
// engine. Rows are never updated or deleted.
type AuditEvent struct {
	ID            string      `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Actor         string      `gorm:"not null" json:"actor"`
	Action        AuditAction `gorm:"not null;index" json:"action"`
	ResourceID    string      `gorm:"not null;index" json:"resource_id"`
	PreviousState string      `json:"previous_state"`
	NewState      string      `json:"new_state"`
	TxHash        string      `json:"tx_hash,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}
