package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
)

// SubmissionService is the off-chain store surface consumed by the
// reconciliation engine, the lifecycle controller and diagnostics.
type SubmissionService interface {
	CreateSubmission(submission *models.Submission) error
	GetSubmissionByID(id string) (*models.Submission, error)
	ListSubmissions() ([]models.Submission, error)
	ListSubmissionsByStatus(status models.SubmissionStatus) ([]models.Submission, error)
	// UpdateCampaignLink repairs the on-chain linkage fields. It is a plain
	// idempotent write: repeating it with the same values changes nothing.
	UpdateCampaignLink(id string, campaignID uint64, contractAddress string) error
	// UpdateStatusCAS applies updates only if the stored status still equals
	// expected. Returns models.ErrWriteConflict when a concurrent transition
	// raced ahead, so callers retry or reject the whole decide-and-write cycle.
	UpdateStatusCAS(id string, expected models.SubmissionStatus, updates map[string]interface{}) error
}

type submissionService struct {
	db *gorm.DB
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(db *gorm.DB) SubmissionService {
	return &submissionService{db: db}
}

// CreateSubmission creates a new submission record
func (s *submissionService) CreateSubmission(submission *models.Submission) error {
	return s.db.Create(submission).Error
}

// GetSubmissionByID returns a submission by its ID
func (s *submissionService) GetSubmissionByID(id string) (*models.Submission, error) {
	var submission models.Submission
	err := s.db.Where("id = ?", id).First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSubmissionNotFound
		}
		return nil, err
	}
	return &submission, nil
}

// ListSubmissions returns all submission records
func (s *submissionService) ListSubmissions() ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.db.Find(&submissions).Error
	return submissions, err
}

// ListSubmissionsByStatus returns all submissions with the given status
func (s *submissionService) ListSubmissionsByStatus(status models.SubmissionStatus) ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.db.Where("status = ?", status).Find(&submissions).Error
	return submissions, err
}

// UpdateCampaignLink writes the campaign id and contract address observed on
// chain onto the submission record
func (s *submissionService) UpdateCampaignLink(id string, campaignID uint64, contractAddress string) error {
	updates := map[string]interface{}{
		"campaign_id": campaignID,
	}
	if contractAddress != "" {
		updates["contract_address"] = contractAddress
	}

	result := s.db.Model(&models.Submission{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrSubmissionNotFound
	}
	return nil
}

// UpdateStatusCAS fences the status write on the status observed at decision
// time. The WHERE clause carries the expected status; zero rows affected on
// an existing record means a concurrent writer won the race.
func (s *submissionService) UpdateStatusCAS(id string, expected models.SubmissionStatus, updates map[string]interface{}) error {
	result := s.db.Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&models.Submission{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.ErrSubmissionNotFound
		}
		return fmt.Errorf("%w: expected status %q", models.ErrWriteConflict, expected)
	}
	return nil
}
