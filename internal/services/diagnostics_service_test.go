package services_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

type DiagnosticsServiceTestSuite struct {
	suite.Suite
	db          services.DBService
	submissions services.SubmissionService
	registry    *fakeRegistry
	service     services.DiagnosticsService
}

func (suite *DiagnosticsServiceTestSuite) SetupTest() {
	db, err := services.NewSqliteDBService(":memory:")
	suite.Require().NoError(err)
	suite.db = db
	suite.submissions = services.NewSubmissionService(db.GetDB())
	suite.registry = newFakeRegistry()
	suite.service = services.NewDiagnosticsService(suite.submissions, suite.registry, []string{testRegistryAddress})
}

func (suite *DiagnosticsServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *DiagnosticsServiceTestSuite) TestCheckListingEligible() {
	campaignID := uint64(3)
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID:                   "sub-1",
		CampaignID:           &campaignID,
		MetadataURI:          "ipfs://QmListed",
		Status:               models.SubmissionStatusMinted,
		ContractAddress:      testRegistryAddress,
		VisibleOnMarketplace: true,
	}))

	check, err := suite.service.CheckListing(context.Background(), "sub-1")
	suite.Require().NoError(err)
	suite.True(check.Eligible)
	suite.Empty(check.Unmet)
}

func (suite *DiagnosticsServiceTestSuite) TestCheckListingReportsEveryUnmetCondition() {
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID:     "sub-bad",
		Status: models.SubmissionStatusPending,
	}))

	check, err := suite.service.CheckListing(context.Background(), "sub-bad")
	suite.Require().NoError(err)
	suite.False(check.Eligible)
	suite.Len(check.Unmet, 4)
	suite.Contains(check.Unmet[0], "status")
	suite.Contains(check.Unmet, "not visible on marketplace")
	suite.Contains(check.Unmet, "no campaign id")
	suite.Contains(check.Unmet, "no contract address")
}

func (suite *DiagnosticsServiceTestSuite) TestCheckListingIgnoresContractCasing() {
	campaignID := uint64(3)
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID:                   "sub-1",
		CampaignID:           &campaignID,
		Status:               models.SubmissionStatusMinted,
		ContractAddress:      "0xD8DA6BF26964AF9D7EED9E03E53415D37AA96045",
		VisibleOnMarketplace: true,
	}))

	// The allowlist was configured with different casing for the same address.
	service := services.NewDiagnosticsService(suite.submissions, suite.registry,
		[]string{"0xd8da6bf26964af9d7eed9e03e53415d37aa96045"})

	check, err := service.CheckListing(context.Background(), "sub-1")
	suite.Require().NoError(err)
	suite.True(check.Eligible)
	suite.Empty(check.Unmet)
}

func (suite *DiagnosticsServiceTestSuite) TestCheckListingRejectsUnknownContract() {
	campaignID := uint64(3)
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID:                   "sub-1",
		CampaignID:           &campaignID,
		Status:               models.SubmissionStatusMinted,
		ContractAddress:      "0x2222222222222222222222222222222222222222",
		VisibleOnMarketplace: true,
	}))

	check, err := suite.service.CheckListing(context.Background(), "sub-1")
	suite.Require().NoError(err)
	suite.False(check.Eligible)
	suite.Require().Len(check.Unmet, 1)
	suite.Contains(check.Unmet[0], "allowlist")
}

func (suite *DiagnosticsServiceTestSuite) TestCheckListingNotFound() {
	_, err := suite.service.CheckListing(context.Background(), "missing")
	suite.ErrorIs(err, models.ErrSubmissionNotFound)
}

func (suite *DiagnosticsServiceTestSuite) TestScanForDrift() {
	matched := uint64(0)
	mismatched := uint64(1)
	unreadable := uint64(2)

	suite.registry.setProjection(ledger.CampaignProjection{CampaignID: 0, BaseURI: "ipfs://QmMatch", Active: true})
	suite.registry.setProjection(ledger.CampaignProjection{CampaignID: 1, BaseURI: "ipfs://QmOther", Active: false})
	suite.registry.failSlot(2, fmt.Errorf("timeout"))

	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID: "sub-match", CampaignID: &matched, MetadataURI: "ipfs://QmMatch", Status: models.SubmissionStatusMinted,
	}))
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID: "sub-mismatch", CampaignID: &mismatched, MetadataURI: "ipfs://QmMine", Status: models.SubmissionStatusMinted,
	}))
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID: "sub-unreadable", CampaignID: &unreadable, MetadataURI: "ipfs://QmDark", Status: models.SubmissionStatusMinted,
	}))
	suite.Require().NoError(suite.submissions.CreateSubmission(&models.Submission{
		ID: "sub-unlinked", MetadataURI: "ipfs://QmLoose", Status: models.SubmissionStatusMinted,
	}))

	entries, err := suite.service.ScanForDrift(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(entries, 4)

	byID := make(map[string]services.DriftEntry, len(entries))
	for _, entry := range entries {
		byID[entry.SubmissionID] = entry
	}

	suite.Run("matching record is clean", func() {
		entry := byID["sub-match"]
		suite.True(entry.URIMatches)
		suite.True(entry.OnChainActive)
		suite.False(entry.NeedsFix)
	})

	suite.Run("URI mismatch needs fixing", func() {
		entry := byID["sub-mismatch"]
		suite.False(entry.URIMatches)
		suite.True(entry.NeedsFix)
		suite.Contains(entry.Detail, "does not match")
	})

	suite.Run("read failure is embedded, not fatal", func() {
		entry := byID["sub-unreadable"]
		suite.Contains(entry.Detail, "ledger read failed")
	})

	suite.Run("missing campaign id needs fixing", func() {
		entry := byID["sub-unlinked"]
		suite.True(entry.NeedsFix)
		suite.Nil(entry.StoredCampaignID)
	})
}

func TestDiagnosticsServiceTestSuite(t *testing.T) {
	suite.Run(t, new(DiagnosticsServiceTestSuite))
}
