package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/apflow/invoice-reconciler/constants"
	"github.com/apflow/invoice-reconciler/internal/common"
	"github.com/apflow/invoice-reconciler/internal/entity"
)

type MemoryStoreSuite struct {
	suite.Suite
	repos Repositories
	ctx   context.Context
}

func (s *MemoryStoreSuite) SetupTest() {
	s.repos = NewMemoryRepositories()
	s.ctx = context.Background()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newRecord(role entity.DocumentRole, sourceID string, at time.Time) *entity.DocumentRecord {
	po := "PO-157"
	return &entity.DocumentRecord{
		ID:       uuid.New(),
		Role:     role,
		SourceID: sourceID,
		Fields: map[string]entity.FieldValue{
			"po_number": {Name: "po_number", Kind: entity.KindIdentifier, Raw: &po},
		},
		IngestedAt: at,
	}
}

func (s *MemoryStoreSuite) TestFileDedupeByHash() {
	hash := []byte{0x01, 0x02, 0x03}
	now := time.Now().UTC()

	first, dedup, err := s.repos.Files.UpsertByHash(s.ctx, entity.RoleInvoice, "/in/a.pdf", "pdf", hash, now)
	s.Require().NoError(err)
	s.False(dedup)

	second, dedup, err := s.repos.Files.UpsertByHash(s.ctx, entity.RoleInvoice, "/in/copy-of-a.pdf", "pdf", hash, now)
	s.Require().NoError(err)
	s.True(dedup)
	s.Equal(first.ID, second.ID)
	s.Equal("/in/a.pdf", second.SourcePath)

	found, err := s.repos.Files.GetByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(first.SourcePath, found.SourcePath)
}

func (s *MemoryStoreSuite) TestFileNotFound() {
	_, err := s.repos.Files.GetByID(s.ctx, uuid.New())
	s.Require().ErrorIs(err, common.ErrNotFound)

	_, err = s.repos.Files.GetByHash(s.ctx, []byte{0xff})
	s.Require().ErrorIs(err, common.ErrNotFound)
}

func (s *MemoryStoreSuite) TestRecordRoundTrip() {
	rec := s.newRecord(entity.RoleInvoice, "inv-001.json", time.Now().UTC())
	s.Require().NoError(s.repos.Records.Save(s.ctx, rec))

	found, err := s.repos.Records.GetByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(rec.SourceID, found.SourceID)
	s.Require().NotNil(found.Field("po_number"))
	s.Equal("PO-157", *found.Field("po_number").Raw)
}

func (s *MemoryStoreSuite) TestRecordListByRoleOrdered() {
	base := time.Now().UTC()
	older := s.newRecord(entity.RoleInvoice, "inv-older.json", base.Add(-time.Hour))
	newer := s.newRecord(entity.RoleInvoice, "inv-newer.json", base)
	po := s.newRecord(entity.RolePurchaseOrder, "po-001.json", base)

	s.Require().NoError(s.repos.Records.Save(s.ctx, newer))
	s.Require().NoError(s.repos.Records.Save(s.ctx, older))
	s.Require().NoError(s.repos.Records.Save(s.ctx, po))

	invoices, err := s.repos.Records.ListByRole(s.ctx, entity.RoleInvoice)
	s.Require().NoError(err)
	s.Require().Len(invoices, 2)
	s.Equal("inv-older.json", invoices[0].SourceID)
	s.Equal("inv-newer.json", invoices[1].SourceID)
}

func (s *MemoryStoreSuite) TestRunLifecycle() {
	run := &entity.MatchRun{
		ID:              uuid.New(),
		Status:          string(constants.RunStatusQueued),
		MatchThreshold:  70,
		AmountTolerance: 0.01,
		InvoiceCount:    2,
		POCount:         2,
		StartedAt:       time.Now().UTC(),
	}
	s.Require().NoError(s.repos.Runs.Create(s.ctx, run))

	s.Require().NoError(s.repos.Runs.UpdateStatus(s.ctx, run.ID, constants.RunStatusRunning))

	result := json.RawMessage(`{"results":[],"summary":{"high_confidence":0,"medium_confidence":0,"low_confidence":0}}`)
	s.Require().NoError(s.repos.Runs.Complete(s.ctx, run.ID, result, time.Now().UTC()))

	found, err := s.repos.Runs.GetByID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(string(constants.RunStatusCompleted), found.Status)
	s.JSONEq(string(result), string(found.ResultJSON))
	s.NotNil(found.FinishedAt)
}

func (s *MemoryStoreSuite) TestRunFail() {
	run := &entity.MatchRun{
		ID:        uuid.New(),
		Status:    string(constants.RunStatusQueued),
		StartedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.repos.Runs.Create(s.ctx, run))
	s.Require().NoError(s.repos.Runs.Fail(s.ctx, run.ID, "record 0 is nil", time.Now().UTC()))

	found, err := s.repos.Runs.GetByID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(string(constants.RunStatusFailed), found.Status)
	s.Require().NotNil(found.ErrorMessage)
	s.Equal("record 0 is nil", *found.ErrorMessage)
}

func (s *MemoryStoreSuite) TestRunListNewestFirst() {
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		run := &entity.MatchRun{
			ID:        uuid.New(),
			Status:    string(constants.RunStatusQueued),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		s.Require().NoError(s.repos.Runs.Create(s.ctx, run))
	}

	runs, err := s.repos.Runs.List(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.True(runs[0].StartedAt.After(runs[1].StartedAt))
}

func (s *MemoryStoreSuite) TestRunUpdateUnknownID() {
	err := s.repos.Runs.UpdateStatus(s.ctx, uuid.New(), constants.RunStatusRunning)
	s.Require().ErrorIs(err, common.ErrNotFound)
}
