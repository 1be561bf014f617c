package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
)

// AuditService is the append-only audit sink. Every mutation performed by
// the lifecycle controller and the reconciliation engine is mirrored here.
type AuditService interface {
	Record(ctx context.Context, event models.AuditEvent) error
	ListEventsByResource(resourceID string) ([]models.AuditEvent, error)
}

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditService
func NewAuditService(db *gorm.DB) AuditService {
	return &auditService{db: db}
}

// Record appends one audit event. The event id and timestamp are assigned
// here so callers only describe the mutation.
func (s *auditService) Record(ctx context.Context, event models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(&event).Error
}

// ListEventsByResource returns the audit trail for one submission, newest first
func (s *auditService) ListEventsByResource(resourceID string) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	err := s.db.Where("resource_id = ?", resourceID).Order("created_at DESC").Find(&events).Error
	return events, err
}
