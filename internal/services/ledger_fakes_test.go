package services_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
)

// fakeRegistry implements ledger.Reader and ledger.Writer against an
// in-memory slot table so service behavior can be tested without a node.
type fakeRegistry struct {
	mu sync.Mutex

	projections map[uint64]ledger.CampaignProjection
	readErrors  map[uint64]error
	countErr    error

	closeErr    error
	closedIDs   []uint64
	closeCalls  int
	nextTxNonce int
}

func newFakeRegistry(projections ...ledger.CampaignProjection) *fakeRegistry {
	f := &fakeRegistry{
		projections: make(map[uint64]ledger.CampaignProjection),
		readErrors:  make(map[uint64]error),
	}
	for _, p := range projections {
		f.projections[p.CampaignID] = p
	}
	return f
}

func (f *fakeRegistry) setProjection(p ledger.CampaignProjection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projections[p.CampaignID] = p
}

func (f *fakeRegistry) failSlot(id uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErrors[id] = err
}

// CampaignCount reports one past the highest populated or failing slot,
// matching the sequential id assignment of the registry contract.
func (f *fakeRegistry) CampaignCount(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	var max uint64
	seen := false
	for id := range f.projections {
		if !seen || id > max {
			max, seen = id, true
		}
	}
	for id := range f.readErrors {
		if !seen || id > max {
			max, seen = id, true
		}
	}
	if !seen {
		return 0, nil
	}
	return max + 1, nil
}

func (f *fakeRegistry) CampaignProjection(ctx context.Context, campaignID uint64) (ledger.CampaignProjection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.readErrors[campaignID]; ok {
		return ledger.CampaignProjection{}, err
	}
	p, ok := f.projections[campaignID]
	if !ok {
		return ledger.CampaignProjection{}, fmt.Errorf("slot %d is empty", campaignID)
	}
	return p, nil
}

func (f *fakeRegistry) CloseCampaign(ctx context.Context, campaignID uint64) (ledger.CloseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.closeErr != nil {
		return ledger.CloseResult{}, f.closeErr
	}
	f.closedIDs = append(f.closedIDs, campaignID)
	if p, ok := f.projections[campaignID]; ok {
		p.Active = false
		p.Closed = true
		f.projections[campaignID] = p
	}
	f.nextTxNonce++
	return ledger.CloseResult{
		TxHash:    fmt.Sprintf("0xclose%04d", f.nextTxNonce),
		Confirmed: true,
	}, nil
}
