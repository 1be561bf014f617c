package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/metrics"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
)

// ReconciliationRunResult is the outcome of one batch run.
type ReconciliationRunResult struct {
	RunID      string                        `json:"run_id"`
	Valid      int                           `json:"valid"`
	Fixed      int                           `json:"fixed"`
	Orphaned   int                           `json:"orphaned"`
	Errored    int                           `json:"errored"`
	Results    []models.ReconciliationResult `json:"results"`
	Collisions []URICollision                `json:"collisions,omitempty"`
	Failures   []ReadFailure                 `json:"ledger_read_failures,omitempty"`
}

// RepairResult is the outcome of a single-record interactive repair.
type RepairResult struct {
	SubmissionID  string                    `json:"submission_id"`
	OldCampaignID *uint64                   `json:"old_campaign_id"`
	NewCampaignID uint64                    `json:"new_campaign_id"`
	Projection    ledger.CampaignProjection `json:"projection"`
}

// ReconciliationService classifies and repairs drift between the off-chain
// submission store and the on-chain campaign registry.
type ReconciliationService interface {
	// Run reconciles every minted submission against a fresh registry
	// snapshot. Per-record failures are embedded in the result set; the
	// batch itself only fails when the snapshot cannot be built at all.
	// Running it twice with no intervening ledger change is a no-op the
	// second time.
	Run(ctx context.Context, actor string) (*ReconciliationRunResult, error)
	// RepairSubmission repairs one submission interactively. Unlike the
	// batch path it refuses to link onto a campaign the registry marks
	// inactive, returning models.ErrCampaignInactive.
	RepairSubmission(ctx context.Context, submissionID, actor string) (*RepairResult, error)
}

type reconciliationService struct {
	db          *gorm.DB
	submissions SubmissionService
	indexer     IndexerService
	reader      ledger.Reader
	audit       AuditService
	logger      *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(db *gorm.DB, submissions SubmissionService, indexer IndexerService, reader ledger.Reader, audit AuditService, logger *zap.Logger) ReconciliationService {
	return &reconciliationService{
		db:          db,
		submissions: submissions,
		indexer:     indexer,
		reader:      reader,
		audit:       audit,
		logger:      logger,
	}
}

func (s *reconciliationService) Run(ctx context.Context, actor string) (*ReconciliationRunResult, error) {
	started := time.Now()

	index, err := s.indexer.BuildIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build campaign index: %w", err)
	}

	minted, err := s.submissions.ListSubmissionsByStatus(models.SubmissionStatusMinted)
	if err != nil {
		return nil, fmt.Errorf("failed to list minted submissions: %w", err)
	}

	result := &ReconciliationRunResult{
		RunID:      uuid.New().String(),
		Collisions: index.Collisions,
		Failures:   index.Failures,
	}

	for i := range minted {
		record := s.reconcileOne(ctx, &minted[i], index, actor)
		result.Results = append(result.Results, record)

		metrics.ClassificationsTotal.WithLabelValues(string(record.Classification)).Inc()
		switch record.Classification {
		case models.ClassificationValid:
			result.Valid++
		case models.ClassificationFixed:
			result.Fixed++
		case models.ClassificationOrphan:
			result.Orphaned++
		case models.ClassificationError:
			result.Errored++
		}
	}

	metrics.ReconciliationRunsTotal.Inc()

	report := models.ReconciliationReport{
		ID:            result.RunID,
		Valid:         result.Valid,
		Fixed:         result.Fixed,
		Orphaned:      result.Orphaned,
		Errored:       result.Errored,
		ScannedSlots:  index.Scanned,
		SkippedSlots:  index.Skipped,
		URICollisions: len(index.Collisions),
		DurationMs:    time.Since(started).Milliseconds(),
		CreatedAt:     time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		// The run itself succeeded; a report row is history, not state.
		s.logger.Warn("failed to persist reconciliation report",
			zap.String("run_id", result.RunID),
			zap.Error(err))
	}

	s.logger.Info("reconciliation run complete",
		zap.String("run_id", result.RunID),
		zap.Int("valid", result.Valid),
		zap.Int("fixed", result.Fixed),
		zap.Int("orphaned", result.Orphaned),
		zap.Int("errored", result.Errored))

	return result, nil
}

// reconcileOne classifies a single minted submission against the index and
// repairs a mismatch. Each record is independent: its write failure becomes
// its own ERROR result and never blocks the rest of the batch.
func (s *reconciliationService) reconcileOne(ctx context.Context, submission *models.Submission, index *CampaignIndex, actor string) models.ReconciliationResult {
	if submission.MetadataURI == "" {
		return models.ReconciliationResult{
			SubmissionID:   submission.ID,
			Classification: models.ClassificationError,
			Detail:         "no metadata URI join key",
		}
	}

	entry, found := index.Lookup(submission.MetadataURI)
	if !found {
		return models.ReconciliationResult{
			SubmissionID:   submission.ID,
			Classification: models.ClassificationOrphan,
			Detail:         fmt.Sprintf("metadata URI %q not found on chain", submission.MetadataURI),
		}
	}

	if submission.CampaignID != nil && *submission.CampaignID == entry.CampaignID {
		resolved := entry.CampaignID
		return models.ReconciliationResult{
			SubmissionID:       submission.ID,
			Classification:     models.ClassificationValid,
			ResolvedCampaignID: &resolved,
		}
	}

	previous := formatCampaignID(submission.CampaignID)
	if err := s.submissions.UpdateCampaignLink(submission.ID, entry.CampaignID, entry.ContractAddress); err != nil {
		return models.ReconciliationResult{
			SubmissionID:   submission.ID,
			Classification: models.ClassificationError,
			Detail:         fmt.Sprintf("repair write failed: %v", err),
		}
	}

	if err := s.audit.Record(ctx, models.AuditEvent{
		Actor:         actor,
		Action:        models.AuditActionRepair,
		ResourceID:    submission.ID,
		PreviousState: previous,
		NewState:      fmt.Sprintf("campaign_id=%d", entry.CampaignID),
		Reason:        "batch reconciliation",
	}); err != nil {
		s.logger.Warn("failed to record audit event for repair",
			zap.String("submission_id", submission.ID),
			zap.Error(err))
	}

	s.logger.Info("repaired submission campaign link",
		zap.String("submission_id", submission.ID),
		zap.String("previous", previous),
		zap.Uint64("campaign_id", entry.CampaignID))

	resolved := entry.CampaignID
	return models.ReconciliationResult{
		SubmissionID:       submission.ID,
		Classification:     models.ClassificationFixed,
		Detail:             fmt.Sprintf("campaign id %s -> %d", previous, entry.CampaignID),
		ResolvedCampaignID: &resolved,
	}
}

func (s *reconciliationService) RepairSubmission(ctx context.Context, submissionID, actor string) (*RepairResult, error) {
	submission, err := s.submissions.GetSubmissionByID(submissionID)
	if err != nil {
		return nil, err
	}
	if submission.MetadataURI == "" {
		return nil, models.ErrNoJoinKey
	}

	index, err := s.indexer.BuildIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build campaign index: %w", err)
	}

	entry, found := index.Lookup(submission.MetadataURI)
	if !found {
		return nil, fmt.Errorf("%w: %q", models.ErrNoOnChainMatch, submission.MetadataURI)
	}
	if !entry.Active {
		return nil, fmt.Errorf("%w: campaign %d", models.ErrCampaignInactive, entry.CampaignID)
	}

	projection, err := s.reader.CampaignProjection(ctx, entry.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to read matched campaign %d: %w", entry.CampaignID, err)
	}

	result := &RepairResult{
		SubmissionID:  submission.ID,
		OldCampaignID: submission.CampaignID,
		NewCampaignID: entry.CampaignID,
		Projection:    projection,
	}

	// Already linked correctly: nothing to write.
	if submission.CampaignID != nil && *submission.CampaignID == entry.CampaignID {
		return result, nil
	}

	if err := s.submissions.UpdateCampaignLink(submission.ID, entry.CampaignID, entry.ContractAddress); err != nil {
		return nil, fmt.Errorf("failed to repair submission %s: %w", submission.ID, err)
	}

	if err := s.audit.Record(ctx, models.AuditEvent{
		Actor:         actor,
		Action:        models.AuditActionRepair,
		ResourceID:    submission.ID,
		PreviousState: formatCampaignID(submission.CampaignID),
		NewState:      fmt.Sprintf("campaign_id=%d", entry.CampaignID),
		Reason:        "interactive repair",
	}); err != nil {
		s.logger.Warn("failed to record audit event for repair",
			zap.String("submission_id", submission.ID),
			zap.Error(err))
	}

	return result, nil
}

func formatCampaignID(id *uint64) string {
	if id == nil {
		return "campaign_id=null"
	}
	return fmt.Sprintf("campaign_id=%d", *id)
}
