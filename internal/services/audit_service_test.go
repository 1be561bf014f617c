package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
)

type AuditServiceTestSuite struct {
	suite.Suite
	db      services.DBService
	service services.AuditService
}

func (suite *AuditServiceTestSuite) SetupTest() {
	db, err := services.NewSqliteDBService(":memory:")
	suite.Require().NoError(err)
	suite.db = db
	suite.service = services.NewAuditService(db.GetDB())
}

func (suite *AuditServiceTestSuite) TearDownTest() {
	suite.db.Close()
}

func (suite *AuditServiceTestSuite) TestRecordAssignsIDAndTimestamp() {
	err := suite.service.Record(context.Background(), models.AuditEvent{
		Actor:      "admin:test",
		Action:     models.AuditActionClose,
		ResourceID: "sub-1",
		TxHash:     "0xabc",
	})
	suite.Require().NoError(err)

	events, err := suite.service.ListEventsByResource("sub-1")
	suite.Require().NoError(err)
	suite.Require().Len(events, 1)
	suite.NotEmpty(events[0].ID)
	suite.False(events[0].CreatedAt.IsZero())
	suite.Equal("0xabc", events[0].TxHash)
}

func (suite *AuditServiceTestSuite) TestListEventsByResourceNewestFirst() {
	base := time.Now().Add(-time.Hour)
	for i, action := range []models.AuditAction{
		models.AuditActionDeactivate,
		models.AuditActionReactivate,
		models.AuditActionClose,
	} {
		err := suite.service.Record(context.Background(), models.AuditEvent{
			Actor:      "admin:test",
			Action:     action,
			ResourceID: "sub-1",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		suite.Require().NoError(err)
	}
	err := suite.service.Record(context.Background(), models.AuditEvent{
		Actor:      "admin:test",
		Action:     models.AuditActionRepair,
		ResourceID: "sub-other",
		CreatedAt:  base,
	})
	suite.Require().NoError(err)

	events, err := suite.service.ListEventsByResource("sub-1")
	suite.Require().NoError(err)
	suite.Require().Len(events, 3)
	suite.Equal(models.AuditActionClose, events[0].Action)
	suite.Equal(models.AuditActionReactivate, events[1].Action)
	suite.Equal(models.AuditActionDeactivate, events[2].Action)
}

func TestAuditServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuditServiceTestSuite))
}
