package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/metrics"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
)

type LifecycleAction string

const (
	LifecycleActionClose      LifecycleAction = "close"
	LifecycleActionDeactivate LifecycleAction = "deactivate"
	LifecycleActionReactivate LifecycleAction = "reactivate"
)

type LifecycleArgs struct {
	SubmissionID string          `validate:"required"`
	Action       LifecycleAction `validate:"required,oneof=close deactivate reactivate"`
	Actor        string          `validate:"required"`
	Reason       string
}

// LifecycleResult reports a completed transition. Warning is set when the
// transition deliberately diverges from on-chain state (reactivating a
// submission whose campaign remains closed on chain).
type LifecycleResult struct {
	SubmissionID   string                  `json:"submission_id"`
	PreviousStatus models.SubmissionStatus `json:"previous_status"`
	NewStatus      models.SubmissionStatus `json:"new_status"`
	TxHash         string                  `json:"tx_hash,omitempty"`
	Warning        string                  `json:"warning,omitempty"`
}

// LifecycleService drives close/deactivate/reactivate transitions while
// keeping the off-chain store and the registry coherent under partial
// failure. The on-chain close is always the last preconditioned step and
// the off-chain status is only written after it confirms.
type LifecycleService interface {
	Apply(ctx context.Context, args LifecycleArgs) (*LifecycleResult, error)
}

type lifecycleService struct {
	submissions SubmissionService
	writer      ledger.Writer
	audit       AuditService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(submissions SubmissionService, writer ledger.Writer, audit AuditService, logger *zap.Logger) LifecycleService {
	return &lifecycleService{
		submissions: submissions,
		writer:      writer,
		audit:       audit,
		validator:   validator.New(),
		logger:      logger,
	}
}

func (s *lifecycleService) Apply(ctx context.Context, args LifecycleArgs) (*LifecycleResult, error) {
	if err := s.validator.Struct(args); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidAction, err)
	}

	submission, err := s.submissions.GetSubmissionByID(args.SubmissionID)
	if err != nil {
		return nil, err
	}

	var result *LifecycleResult
	switch args.Action {
	case LifecycleActionClose:
		result, err = s.close(ctx, submission, args)
	case LifecycleActionDeactivate:
		result, err = s.deactivate(ctx, submission, args)
	case LifecycleActionReactivate:
		result, err = s.reactivate(ctx, submission, args)
	default:
		return nil, models.ErrInvalidAction
	}
	if err != nil {
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues(string(args.Action)).Inc()
	return result, nil
}

// close issues the single irreversible on-chain call of this engine. The
// off-chain status is written only after the transaction confirms; any
// on-chain failure leaves the record untouched.
func (s *lifecycleService) close(ctx context.Context, submission *models.Submission, args LifecycleArgs) (*LifecycleResult, error) {
	if submission.CampaignID == nil {
		return nil, fmt.Errorf("%w: cannot close submission %s", models.ErrMissingCampaignID, submission.ID)
	}

	closeResult, err := s.writer.CloseCampaign(ctx, *submission.CampaignID)
	if err != nil {
		s.logger.Error("on-chain close failed",
			zap.String("submission_id", submission.ID),
			zap.Uint64("campaign_id", *submission.CampaignID),
			zap.Error(err))
		return nil, err
	}

	err = s.submissions.UpdateStatusCAS(submission.ID, submission.Status, map[string]interface{}{
		"status":                 models.SubmissionStatusClosed,
		"visible_on_marketplace": false,
	})
	if err != nil {
		// The campaign is closed on chain. The audit trail still owes an
		// event for that confirmed mutation; the off-chain status stays as
		// it was, and the divergence is surfaced with the transaction hash
		// so an operator can finish the off-chain half.
		s.recordAudit(ctx, submission, args, submission.Status, closeResult.TxHash,
			fmt.Sprintf("on-chain close confirmed; off-chain update failed: %v", err))
		return nil, fmt.Errorf("on-chain close confirmed (tx %s) but off-chain update failed: %w", closeResult.TxHash, err)
	}

	s.recordAudit(ctx, submission, args, models.SubmissionStatusClosed, closeResult.TxHash, args.Reason)

	return &LifecycleResult{
		SubmissionID:   submission.ID,
		PreviousStatus: submission.Status,
		NewStatus:      models.SubmissionStatusClosed,
		TxHash:         closeResult.TxHash,
	}, nil
}

// deactivate is off-chain only: it affects marketplace visibility, never
// funds or mint state, and carries no campaign id requirement.
func (s *lifecycleService) deactivate(ctx context.Context, submission *models.Submission, args LifecycleArgs) (*LifecycleResult, error) {
	err := s.submissions.UpdateStatusCAS(submission.ID, submission.Status, map[string]interface{}{
		"status":                 models.SubmissionStatusDeactivated,
		"visible_on_marketplace": false,
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, submission, args, models.SubmissionStatusDeactivated, "", args.Reason)

	return &LifecycleResult{
		SubmissionID:   submission.ID,
		PreviousStatus: submission.Status,
		NewStatus:      models.SubmissionStatusDeactivated,
	}, nil
}

// reactivate restores off-chain visibility. A close cannot be reversed on
// chain with the registry capability assumed here, so reactivating a closed
// submission produces a deliberate divergence that is surfaced as a warning
// rather than hidden.
func (s *lifecycleService) reactivate(ctx context.Context, submission *models.Submission, args LifecycleArgs) (*LifecycleResult, error) {
	newStatus := models.SubmissionStatusApproved
	if submission.CampaignID != nil {
		newStatus = models.SubmissionStatusMinted
	}

	var warning string
	if submission.Status == models.SubmissionStatusClosed && submission.CampaignID != nil {
		warning = fmt.Sprintf("on-chain campaign %d remains closed; off-chain visibility restored only", *submission.CampaignID)
	}

	err := s.submissions.UpdateStatusCAS(submission.ID, submission.Status, map[string]interface{}{
		"status":                 newStatus,
		"visible_on_marketplace": true,
	})
	if err != nil {
		return nil, err
	}

	reason := args.Reason
	if warning != "" {
		if reason == "" {
			reason = warning
		} else {
			reason = fmt.Sprintf("%s (%s)", reason, warning)
		}
		s.logger.Warn("reactivated submission diverges from on-chain state",
			zap.String("submission_id", submission.ID),
			zap.Uint64("campaign_id", *submission.CampaignID))
	}

	s.recordAudit(ctx, submission, args, newStatus, "", reason)

	return &LifecycleResult{
		SubmissionID:   submission.ID,
		PreviousStatus: submission.Status,
		NewStatus:      newStatus,
		Warning:        warning,
	}, nil
}

// recordAudit appends the single audit event every completed transition owes.
func (s *lifecycleService) recordAudit(ctx context.Context, submission *models.Submission, args LifecycleArgs, newStatus models.SubmissionStatus, txHash, reason string) {
	if err := s.audit.Record(ctx, models.AuditEvent{
		Actor:         args.Actor,
		Action:        models.AuditAction(args.Action),
		ResourceID:    submission.ID,
		PreviousState: string(submission.Status),
		NewState:      string(newStatus),
		TxHash:        txHash,
		Reason:        reason,
	}); err != nil {
		s.logger.Warn("failed to record audit event",
			zap.String("submission_id", submission.ID),
			zap.String("action", string(args.Action)),
			zap.Error(err))
	}
}
