package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/rxtech-lab/crowdfund-mcp/internal/constants"
	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/metrics"
)

// IndexEntry is one campaign as seen during a scan, keyed by its base URI.
type IndexEntry struct {
	CampaignID      uint64 `json:"campaign_id"`
	Active          bool   `json:"active"`
	Closed          bool   `json:"closed"`
	ContractAddress string `json:"contract_address"`
}

// URICollision records two campaigns sharing one base URI. Base URIs are
// unique under correct registry operation, so a collision is a data anomaly
// to surface, not a case to resolve silently.
type URICollision struct {
	BaseURI     string   `json:"base_uri"`
	CampaignIDs []uint64 `json:"campaign_ids"`
}

// ReadFailure records a registry slot that stayed unreadable after the
// retry budget and was skipped.
type ReadFailure struct {
	CampaignID uint64 `json:"campaign_id"`
	Detail     string `json:"detail"`
}

// CampaignIndex is a read-only snapshot of the registry keyed by base URI.
// It is a multimap: Lookup resolves duplicates to the highest campaign id,
// and every duplicate is listed in Collisions.
type CampaignIndex struct {
	entries map[string][]IndexEntry

	Collisions []URICollision `json:"collisions,omitempty"`
	Failures   []ReadFailure  `json:"failures,omitempty"`
	Scanned    int            `json:"scanned"`
	Skipped    int            `json:"skipped"`
}

// Lookup resolves a metadata URI to its campaign entry. When the URI is
// duplicated on chain the entry with the highest campaign id wins; the
// collision itself is already surfaced in Collisions.
func (idx *CampaignIndex) Lookup(uri string) (IndexEntry, bool) {
	entries, ok := idx.entries[uri]
	if !ok || len(entries) == 0 {
		return IndexEntry{}, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.CampaignID > best.CampaignID {
			best = e
		}
	}
	return best, true
}

// Len returns the number of distinct base URIs in the index.
func (idx *CampaignIndex) Len() int {
	return len(idx.entries)
}

// IndexerService builds read-only snapshots of the on-chain campaign
// registry. It performs no writes and is safe to re-run at any time.
type IndexerService interface {
	BuildIndex(ctx context.Context) (*CampaignIndex, error)
}

type indexerService struct {
	reader      ledger.Reader
	contract    string
	concurrency int
	logger      *zap.Logger
}

// NewIndexerService creates a new IndexerService. contract is the registry
// address recorded onto repaired submissions; concurrency bounds the
// projection-read fan-out (<=0 selects the default).
func NewIndexerService(reader ledger.Reader, contract string, concurrency int, logger *zap.Logger) IndexerService {
	if concurrency <= 0 {
		concurrency = constants.DefaultScanConcurrency
	}
	return &indexerService{
		reader:      reader,
		contract:    contract,
		concurrency: concurrency,
		logger:      logger,
	}
}

// BuildIndex scans registry slots 0..n-1 over a bounded worker pool. A read
// failure for one slot is recorded and skipped; the scan never aborts on a
// single failure.
func (s *indexerService) BuildIndex(ctx context.Context) (*CampaignIndex, error) {
	count, err := s.reader.CampaignCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign count: %w", err)
	}

	index := &CampaignIndex{entries: make(map[string][]IndexEntry)}

	var mu sync.Mutex
	var wg sync.WaitGroup
	ids := make(chan uint64)

	for w := 0; w < s.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				metrics.LedgerReadsTotal.Inc()
				projection, err := s.reader.CampaignProjection(ctx, id)

				mu.Lock()
				if err != nil {
					metrics.LedgerReadFailuresTotal.Inc()
					index.Skipped++
					index.Failures = append(index.Failures, ReadFailure{CampaignID: id, Detail: err.Error()})
					s.logger.Warn("skipping unreadable campaign slot",
						zap.Uint64("campaign_id", id),
						zap.Error(err))
				} else {
					index.Scanned++
					index.entries[projection.BaseURI] = append(index.entries[projection.BaseURI], IndexEntry{
						CampaignID:      projection.CampaignID,
						Active:          projection.Active,
						Closed:          projection.Closed,
						ContractAddress: s.contract,
					})
				}
				mu.Unlock()
			}
		}()
	}

	for id := uint64(0); id < count; id++ {
		select {
		case ids <- id:
		case <-ctx.Done():
			close(ids)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(ids)
	wg.Wait()

	s.collectCollisions(index)

	s.logger.Info("campaign index built",
		zap.Uint64("campaign_count", count),
		zap.Int("scanned", index.Scanned),
		zap.Int("skipped", index.Skipped),
		zap.Int("collisions", len(index.Collisions)))

	return index, nil
}

func (s *indexerService) collectCollisions(index *CampaignIndex) {
	for uri, entries := range index.entries {
		if len(entries) < 2 {
			continue
		}
		metrics.URICollisionsTotal.Inc()
		collision := URICollision{BaseURI: uri}
		for _, e := range entries {
			collision.CampaignIDs = append(collision.CampaignIDs, e.CampaignID)
		}
		sort.Slice(collision.CampaignIDs, func(i, j int) bool {
			return collision.CampaignIDs[i] < collision.CampaignIDs[j]
		})
		index.Collisions = append(index.Collisions, collision)
		s.logger.Warn("duplicate base URI on chain",
			zap.String("base_uri", uri),
			zap.Uint64s("campaign_ids", collision.CampaignIDs))
	}
	sort.Slice(index.Collisions, func(i, j int) bool {
		return index.Collisions[i].BaseURI < index.Collisions[j].BaseURI
	})
}
