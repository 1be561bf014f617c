package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/rxtech-lab/crowdfund-mcp/internal/api/middleware"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

type lifecycleRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// handleLifecycle executes a close/deactivate/reactivate transition
func (s *APIServer) handleLifecycle(c *fiber.Ctx) error {
	submissionID := c.Params("id")

	var req lifecycleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := s.lifecycle.Apply(c.UserContext(), services.LifecycleArgs{
		SubmissionID: submissionID,
		Action:       services.LifecycleAction(req.Action),
		Actor:        actorFromContext(c),
		Reason:       req.Reason,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(result)
}

// handleRepair runs the single-record interactive repair
func (s *APIServer) handleRepair(c *fiber.Ctx) error {
	result, err := s.reconciliation.RepairSubmission(c.UserContext(), c.Params("id"), actorFromContext(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

// handleRunReconciliation runs the idempotent batch reconciliation
func (s *APIServer) handleRunReconciliation(c *fiber.Ctx) error {
	result, err := s.reconciliation.Run(c.UserContext(), actorFromContext(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

// handleDriftScan reports per-submission drift without mutating anything
func (s *APIServer) handleDriftScan(c *fiber.Ctx) error {
	entries, err := s.diagnostics.ScanForDrift(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"entries": entries})
}

// handleListingCheck re-evaluates the marketplace listing predicate for one
// submission
func (s *APIServer) handleListingCheck(c *fiber.Ctx) error {
	check, err := s.diagnostics.CheckListing(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(check)
}

// handleListSubmissions lists submissions, optionally filtered by status
func (s *APIServer) handleListSubmissions(c *fiber.Ctx) error {
	status := c.Query("status")

	var (
		submissions []models.Submission
		err         error
	)
	if status != "" {
		submissions, err = s.submissions.ListSubmissionsByStatus(models.SubmissionStatus(status))
	} else {
		submissions, err = s.submissions.ListSubmissions()
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"submissions": submissions})
}

// handleAuditTrail returns the append-only audit trail for one submission
func (s *APIServer) handleAuditTrail(c *fiber.Ctx) error {
	events, err := s.audit.ListEventsByResource(c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// actorFromContext resolves the audit actor from the authenticated user,
// falling back to a fixed identity when auth is disabled.
func actorFromContext(c *fiber.Ctx) string {
	if user := middleware.GetAuthenticatedUser(c); user != nil && user.Sub != "" {
		return user.Sub
	}
	return "admin:local"
}

// errorResponse maps the error taxonomy onto HTTP status codes. Every
// response carries enough detail for an operator to act without re-deriving
// state manually.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var writeErr *models.LedgerWriteError
	switch {
	case errors.Is(err, models.ErrSubmissionNotFound),
		errors.Is(err, models.ErrNoOnChainMatch):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidAction):
		status = fiber.StatusBadRequest
	case errors.Is(err, models.ErrMissingCampaignID):
		status = fiber.StatusPreconditionFailed
	case errors.Is(err, models.ErrNoJoinKey),
		errors.Is(err, models.ErrCampaignInactive),
		errors.Is(err, models.ErrWriteConflict):
		status = fiber.StatusConflict
	case errors.As(err, &writeErr):
		status = fiber.StatusBadGateway
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
