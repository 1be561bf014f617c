package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

type LifecycleServiceTestSuite struct {
	suite.Suite
	db          services.DBService
	submissions services.SubmissionService
	audit       services.AuditService
	registry    *fakeRegistry
	service     services.LifecycleService
}

func (suite *LifecycleServiceTestSuite) SetupTest() {
	db, err := services.NewSqliteDBService(":memory:")
	suite.Require().NoError(err)
	suite.db = db
	suite.submissions = services.NewSubmissionService(db.GetDB())
	suite.audit = services.NewAuditService(db.GetDB())
	suite.registry = newFakeRegistry()
	suite.service = services.NewLifecycleService(suite.submissions, suite.registry, suite.audit, zap.NewNop())
}

func (suite *LifecycleServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *LifecycleServiceTestSuite) createMinted(id string, campaignID uint64) {
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID:                   id,
		CampaignID:           &campaignID,
		MetadataURI:          fmt.Sprintf("ipfs://Qm%s", id),
		Status:               models.SubmissionStatusMinted,
		VisibleOnMarketplace: true,
	}))
}

func (suite *LifecycleServiceTestSuite) TestCloseSubmission() {
	suite.registry.setProjection(ledger.CampaignProjection{
		CampaignID: 12, BaseURI: "ipfs://Qmsub-1", Active: true,
	})
	suite.createMinted("sub-1", 12)

	result, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1",
		Action:       services.LifecycleActionClose,
		Actor:        "admin:test",
		Reason:       "funding goal reached",
	})
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusMinted, result.PreviousStatus)
	suite.Equal(models.SubmissionStatusClosed, result.NewStatus)
	suite.NotEmpty(result.TxHash)

	// On-chain close ran against the linked campaign.
	suite.Equal([]uint64{12}, suite.registry.closedIDs)

	got, err := suite.submissions.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusClosed, got.Status)
	suite.False(got.VisibleOnMarketplace)

	events, err := suite.audit.ListEventsByResource("sub-1")
	suite.Require().NoError(err)
	suite.Require().Len(events, 1)
	suite.Equal(models.AuditActionClose, events[0].Action)
	suite.Equal(result.TxHash, events[0].TxHash)
	suite.Equal("funding goal reached", events[0].Reason)
}

func (suite *LifecycleServiceTestSuite) TestCloseFailsClosedOnLedgerError() {
	suite.createMinted("sub-1", 12)
	suite.registry.closeErr = fmt.Errorf("nonce too low")

	_, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1",
		Action:       services.LifecycleActionClose,
		Actor:        "admin:test",
	})
	suite.Require().Error(err)
	suite.Contains(err.Error(), "nonce too low")

	// The off-chain record is untouched when the chain write fails.
	got, err := suite.submissions.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusMinted, got.Status)
	suite.True(got.VisibleOnMarketplace)

	events, err := suite.audit.ListEventsByResource("sub-1")
	suite.Require().NoError(err)
	suite.Empty(events)
}

func (suite *LifecycleServiceTestSuite) TestCloseRequiresCampaignID() {
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID: "sub-unlinked", MetadataURI: "ipfs://QmUnlinked", Status: models.SubmissionStatusMinted,
	}))

	_, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-unlinked",
		Action:       services.LifecycleActionClose,
		Actor:        "admin:test",
	})
	suite.ErrorIs(err, models.ErrMissingCampaignID)
	suite.Equal(0, suite.registry.closeCalls)
}

func (suite *LifecycleServiceTestSuite) TestDeactivateSubmission() {
	suite.createMinted("sub-1", 12)

	result, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1",
		Action:       services.LifecycleActionDeactivate,
		Actor:        "admin:test",
		Reason:       "moderation takedown",
	})
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusDeactivated, result.NewStatus)
	suite.Empty(result.TxHash)

	// Deactivation never touches the chain.
	suite.Equal(0, suite.registry.closeCalls)

	got, err := suite.submissions.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusDeactivated, got.Status)
	suite.False(got.VisibleOnMarketplace)
}

func (suite *LifecycleServiceTestSuite) TestReactivateDeactivatedSubmission() {
	suite.createMinted("sub-1", 12)

	_, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1", Action: services.LifecycleActionDeactivate, Actor: "admin:test",
	})
	suite.Require().NoError(err)

	result, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1", Action: services.LifecycleActionReactivate, Actor: "admin:test",
	})
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusMinted, result.NewStatus)
	suite.Empty(result.Warning)

	got, err := suite.submissions.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusMinted, got.Status)
	suite.True(got.VisibleOnMarketplace)
}

func (suite *LifecycleServiceTestSuite) TestReactivateClosedSubmissionWarns() {
	suite.registry.setProjection(ledger.CampaignProjection{
		CampaignID: 12, BaseURI: "ipfs://Qmsub-1", Active: true,
	})
	suite.createMinted("sub-1", 12)

	_, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1", Action: services.LifecycleActionClose, Actor: "admin:test",
	})
	suite.Require().NoError(err)

	result, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1", Action: services.LifecycleActionReactivate, Actor: "admin:test",
	})
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusMinted, result.NewStatus)
	suite.Contains(result.Warning, "remains closed")

	// The registry knows no reopen; nothing further was sent.
	suite.Equal(1, suite.registry.closeCalls)

	got, err := suite.submissions.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.True(got.VisibleOnMarketplace)

	events, err := suite.audit.ListEventsByResource("sub-1")
	suite.Require().NoError(err)
	suite.Require().Len(events, 2)
	// Newest first: the reactivation carries the divergence in its reason.
	suite.Equal(models.AuditActionReactivate, events[0].Action)
	suite.Contains(events[0].Reason, "remains closed")
}

func (suite *LifecycleServiceTestSuite) TestReactivateUnlinkedSubmissionRestoresApproved() {
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID: "sub-1", MetadataURI: "ipfs://QmApproved", Status: models.SubmissionStatusDeactivated,
	}))

	result, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1", Action: services.LifecycleActionReactivate, Actor: "admin:test",
	})
	suite.Require().NoError(err)
	suite.Equal(models.SubmissionStatusApproved, result.NewStatus)
	suite.Empty(result.Warning)
}

func (suite *LifecycleServiceTestSuite) TestApplyValidation() {
	suite.Run("unknown action", func() {
		_, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
			SubmissionID: "sub-1", Action: "archive", Actor: "admin:test",
		})
		suite.ErrorIs(err, models.ErrInvalidAction)
	})

	suite.Run("missing actor", func() {
		_, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
			SubmissionID: "sub-1", Action: services.LifecycleActionClose,
		})
		suite.ErrorIs(err, models.ErrInvalidAction)
	})

	suite.Run("missing submission", func() {
		_, err := suite.service.Apply(context.Background(), services.LifecycleArgs{
			SubmissionID: "missing", Action: services.LifecycleActionDeactivate, Actor: "admin:test",
		})
		suite.ErrorIs(err, models.ErrSubmissionNotFound)
	})
}

// conflictingStore wraps a real SubmissionService and makes the CAS write
// lose once, simulating a concurrent transition racing between the on-chain
// close and the off-chain status write.
type conflictingStore struct {
	services.SubmissionService
	conflicts int
}

func (c *conflictingStore) UpdateStatusCAS(id string, expected models.SubmissionStatus, updates map[string]interface{}) error {
	if c.conflicts > 0 {
		c.conflicts--
		return fmt.Errorf("%w: expected status %q", models.ErrWriteConflict, expected)
	}
	return c.SubmissionService.UpdateStatusCAS(id, expected, updates)
}

func (suite *LifecycleServiceTestSuite) TestCloseSurfacesConflictAfterConfirmedTx() {
	suite.createMinted("sub-1", 12)
	store := &conflictingStore{SubmissionService: suite.submissions, conflicts: 1}
	service := services.NewLifecycleService(store, suite.registry, suite.audit, zap.NewNop())

	_, err := service.Apply(context.Background(), services.LifecycleArgs{
		SubmissionID: "sub-1", Action: services.LifecycleActionClose, Actor: "admin:test",
	})
	suite.Require().Error(err)
	suite.ErrorIs(err, models.ErrWriteConflict)
	// The error names the confirmed transaction so an operator can finish
	// the off-chain half.
	suite.Contains(err.Error(), "on-chain close confirmed")
	suite.Contains(err.Error(), "0xclose")
	suite.Equal([]uint64{12}, suite.registry.closedIDs)

	// The confirmed on-chain mutation is still audited: status unchanged on
	// both sides of the event, tx hash recorded.
	events, err := suite.audit.ListEventsByResource("sub-1")
	suite.Require().NoError(err)
	suite.Require().Len(events, 1)
	suite.Equal(models.AuditActionClose, events[0].Action)
	suite.Equal(string(models.SubmissionStatusMinted), events[0].PreviousState)
	suite.Equal(string(models.SubmissionStatusMinted), events[0].NewState)
	suite.NotEmpty(events[0].TxHash)
	suite.Contains(events[0].Reason, "off-chain update failed")
}

func TestLifecycleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LifecycleServiceTestSuite))
}
