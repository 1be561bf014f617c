package services

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/crowdfund-mcp/internal/ledger"
	"github.com/rxtech-lab/crowdfund-mcp/internal/metrics"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
	"github.com/rxtech-lab/crowdfund-mcp/internal/utils"
)

// ListingCheck reports whether one submission satisfies the marketplace
// listing predicate, listing every unmet condition.
type ListingCheck struct {
	SubmissionID string   `json:"submission_id"`
	Eligible     bool     `json:"eligible"`
	Unmet        []string `json:"unmet,omitempty"`
}

// DriftEntry is the per-submission row of a bulk consistency scan.
type DriftEntry struct {
	SubmissionID     string  `json:"submission_id"`
	StoredCampaignID *uint64 `json:"stored_campaign_id"`
	OnChainActive    bool    `json:"on_chain_active"`
	URIMatches       bool    `json:"uri_matches"`
	NeedsFix         bool    `json:"needs_fix"`
	Detail           string  `json:"detail,omitempty"`
}

// DiagnosticsService is the read-only inspection surface. It never mutates
// either store.
type DiagnosticsService interface {
	CheckListing(ctx context.Context, submissionID string) (*ListingCheck, error)
	ScanForDrift(ctx context.Context) ([]DriftEntry, error)
}

type diagnosticsService struct {
	submissions      SubmissionService
	reader           ledger.Reader
	enabledContracts map[string]bool
}

// NewDiagnosticsService creates a new DiagnosticsService. enabledContracts
// is the allowlist of registry contract addresses accepted for marketplace
// listings; entries are checksum-normalized so casing never affects matches.
func NewDiagnosticsService(submissions SubmissionService, reader ledger.Reader, enabledContracts []string) DiagnosticsService {
	allowlist := make(map[string]bool, len(enabledContracts))
	for _, addr := range enabledContracts {
		if normalized := utils.NormalizeEthereumAddress(addr); normalized != "" {
			allowlist[normalized] = true
		}
	}
	return &diagnosticsService{
		submissions:      submissions,
		reader:           reader,
		enabledContracts: allowlist,
	}
}

// CheckListing re-evaluates the predicate a marketplace listing uses and
// returns the unmet conditions.
func (s *diagnosticsService) CheckListing(ctx context.Context, submissionID string) (*ListingCheck, error) {
	submission, err := s.submissions.GetSubmissionByID(submissionID)
	if err != nil {
		return nil, err
	}

	check := &ListingCheck{SubmissionID: submission.ID}

	if submission.Status != models.SubmissionStatusMinted {
		check.Unmet = append(check.Unmet, fmt.Sprintf("status is %q, want %q", submission.Status, models.SubmissionStatusMinted))
	}
	if !submission.VisibleOnMarketplace {
		check.Unmet = append(check.Unmet, "not visible on marketplace")
	}
	if submission.CampaignID == nil {
		check.Unmet = append(check.Unmet, "no campaign id")
	}
	if submission.ContractAddress == "" {
		check.Unmet = append(check.Unmet, "no contract address")
	} else if !s.enabledContracts[utils.NormalizeEthereumAddress(submission.ContractAddress)] {
		check.Unmet = append(check.Unmet, fmt.Sprintf("contract %s is not in the enabled allowlist", submission.ContractAddress))
	}

	check.Eligible = len(check.Unmet) == 0
	return check, nil
}

// ScanForDrift inspects every minted submission against its stored campaign
// slot. A failed per-record ledger read becomes that entry's detail and the
// scan continues; it is never fatal.
func (s *diagnosticsService) ScanForDrift(ctx context.Context) ([]DriftEntry, error) {
	minted, err := s.submissions.ListSubmissionsByStatus(models.SubmissionStatusMinted)
	if err != nil {
		return nil, fmt.Errorf("failed to list minted submissions: %w", err)
	}

	entries := make([]DriftEntry, 0, len(minted))
	for i := range minted {
		entries = append(entries, s.inspectOne(ctx, &minted[i]))
	}
	return entries, nil
}

func (s *diagnosticsService) inspectOne(ctx context.Context, submission *models.Submission) DriftEntry {
	entry := DriftEntry{
		SubmissionID:     submission.ID,
		StoredCampaignID: submission.CampaignID,
	}

	if submission.CampaignID == nil {
		entry.NeedsFix = true
		entry.Detail = "minted submission has no campaign id"
		return entry
	}

	metrics.LedgerReadsTotal.Inc()
	projection, err := s.reader.CampaignProjection(ctx, *submission.CampaignID)
	if err != nil {
		metrics.LedgerReadFailuresTotal.Inc()
		entry.Detail = fmt.Sprintf("ledger read failed: %v", err)
		return entry
	}

	entry.OnChainActive = projection.Active
	entry.URIMatches = projection.BaseURI == submission.MetadataURI
	entry.NeedsFix = !entry.URIMatches
	if !entry.URIMatches {
		entry.Detail = fmt.Sprintf("stored metadata URI %q does not match on-chain base URI %q", submission.MetadataURI, projection.BaseURI)
	}
	return entry
}
