package services_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

type SubmissionServiceTestSuite struct {
	suite.Suite
	db      services.DBService
	service services.SubmissionService
}

func (suite *SubmissionServiceTestSuite) SetupTest() {
	db, err := services.NewSqliteDBService(":memory:")
	suite.Require().NoError(err)
	suite.db = db
	suite.service = services.NewSubmissionService(db.GetDB())
}

func (suite *SubmissionServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *SubmissionServiceTestSuite) TestCreateAndGetSubmission() {
	campaignID := uint64(7)
	submission := &models.Submission{
		ID:          "sub-1",
		CampaignID:  &campaignID,
		MetadataURI: "ipfs://QmCampaignOne",
		Status:      models.SubmissionStatusMinted,
	}

	err := suite.service.CreateSubmission(submission)
	suite.Require().NoError(err)

	got, err := suite.service.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.Equal("sub-1", got.ID)
	suite.Require().NotNil(got.CampaignID)
	suite.Equal(uint64(7), *got.CampaignID)
	suite.Equal("ipfs://QmCampaignOne", got.MetadataURI)
	suite.Equal(models.SubmissionStatusMinted, got.Status)
}

func (suite *SubmissionServiceTestSuite) TestGetSubmissionNotFound() {
	_, err := suite.service.GetSubmissionByID("missing")
	suite.Require().Error(err)
	suite.ErrorIs(err, models.ErrSubmissionNotFound)
}

func (suite *SubmissionServiceTestSuite) TestListSubmissionsByStatus() {
	suite.Require().NoError(suite.service.CreateSubmission(&models.Submission{
		ID: "sub-minted", MetadataURI: "ipfs://a", Status: models.SubmissionStatusMinted,
	}))
	suite.Require().NoError(suite.service.CreateSubmission(&models.Submission{
		ID: "sub-pending", MetadataURI: "ipfs://b", Status: models.SubmissionStatusPending,
	}))

	minted, err := suite.service.ListSubmissionsByStatus(models.SubmissionStatusMinted)
	suite.Require().NoError(err)
	suite.Len(minted, 1)
	suite.Equal("sub-minted", minted[0].ID)

	all, err := suite.service.ListSubmissions()
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *SubmissionServiceTestSuite) TestUpdateCampaignLink() {
	suite.Require().NoError(suite.service.CreateSubmission(&models.Submission{
		ID: "sub-1", MetadataURI: "ipfs://a", Status: models.SubmissionStatusMinted,
	}))

	err := suite.service.UpdateCampaignLink("sub-1", 42, "0xRegistry")
	suite.Require().NoError(err)

	got, err := suite.service.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.Require().NotNil(got.CampaignID)
	suite.Equal(uint64(42), *got.CampaignID)
	suite.Equal("0xRegistry", got.ContractAddress)

	// Repeating the identical write changes nothing.
	err = suite.service.UpdateCampaignLink("sub-1", 42, "0xRegistry")
	suite.Require().NoError(err)

	again, err := suite.service.GetSubmissionByID("sub-1")
	suite.Require().NoError(err)
	suite.Equal(uint64(42), *again.CampaignID)
}

func (suite *SubmissionServiceTestSuite) TestUpdateCampaignLinkNotFound() {
	err := suite.service.UpdateCampaignLink("missing", 42, "0xRegistry")
	suite.ErrorIs(err, models.ErrSubmissionNotFound)
}

func (suite *SubmissionServiceTestSuite) TestUpdateStatusCAS() {
	suite.Require().NoError(suite.service.CreateSubmission(&models.Submission{
		ID: "sub-1", MetadataURI: "ipfs://a", Status: models.SubmissionStatusMinted, VisibleOnMarketplace: true,
	}))

	suite.Run("succeeds when expected status matches", func() {
		err := suite.service.UpdateStatusCAS("sub-1", models.SubmissionStatusMinted, map[string]interface{}{
			"status":                 models.SubmissionStatusClosed,
			"visible_on_marketplace": false,
		})
		suite.Require().NoError(err)

		got, err := suite.service.GetSubmissionByID("sub-1")
		suite.Require().NoError(err)
		suite.Equal(models.SubmissionStatusClosed, got.Status)
		suite.False(got.VisibleOnMarketplace)
	})

	suite.Run("conflicts when expected status is stale", func() {
		// The record is closed now, so a writer still assuming minted loses.
		err := suite.service.UpdateStatusCAS("sub-1", models.SubmissionStatusMinted, map[string]interface{}{
			"status": models.SubmissionStatusDeactivated,
		})
		suite.Require().Error(err)
		suite.ErrorIs(err, models.ErrWriteConflict)

		got, err := suite.service.GetSubmissionByID("sub-1")
		suite.Require().NoError(err)
		suite.Equal(models.SubmissionStatusClosed, got.Status)
	})

	suite.Run("not found beats conflict for missing records", func() {
		err := suite.service.UpdateStatusCAS("missing", models.SubmissionStatusMinted, map[string]interface{}{
			"status": models.SubmissionStatusClosed,
		})
		suite.ErrorIs(err, models.ErrSubmissionNotFound)
	})
}

func TestSubmissionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SubmissionServiceTestSuite))
}
