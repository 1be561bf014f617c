package ledger

import (
	"context"
)

// registryABI is the consumed surface of the campaign registry contract.
// Campaign creation and fund settlement run elsewhere; this service only
// reads projections and closes campaigns.
const registryABI = `[
	{
		"name": "campaignCount",
		"type": "function",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"name": "campaigns",
		"type": "function",
		"stateMutability": "view",
		"inputs": [{"name": "campaignId", "type": "uint256"}],
		"outputs": [
			{"name": "baseURI", "type": "string"},
			{"name": "active", "type": "bool"},
			{"name": "closed", "type": "bool"},
			{"name": "editionsMinted", "type": "uint256"},
			{"name": "maxEditions", "type": "uint256"}
		]
	},
	{
		"name": "closeCampaign",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "campaignId", "type": "uint256"}],
		"outputs": []
	}
]`

// CampaignProjection is a read-only view of one registry slot. CampaignIDs
// are assigned sequentially by the contract and never reused.
type CampaignProjection struct {
	CampaignID     uint64 `json:"campaign_id"`
	BaseURI        string `json:"base_uri"`
	Active         bool   `json:"active"`
	Closed         bool   `json:"closed"`
	EditionsMinted uint64 `json:"editions_minted"`
	MaxEditions    uint64 `json:"max_editions"`
}

// CloseResult reports a confirmed closeCampaign transaction.
type CloseResult struct {
	TxHash    string `json:"tx_hash"`
	Confirmed bool   `json:"confirmed"`
}

// Reader is the read surface of the registry. Implementations must bound
// every call with a timeout and retry transient failures within a fixed
// budget; callers treat an error as "slot not readable right now".
type Reader interface {
	CampaignCount(ctx context.Context) (uint64, error)
	CampaignProjection(ctx context.Context, campaignID uint64) (CampaignProjection, error)
}

// Writer is the write surface of the registry. CloseCampaign blocks until
// the transaction is mined and returns only confirmed results; an error
// means nothing may be assumed about on-chain state.
type Writer interface {
	CloseCampaign(ctx context.Context, campaignID uint64) (CloseResult, error)
}

// Client combines both surfaces over a single shared connection.
type Client interface {
	Reader
	Writer
	ContractAddress() string
	Close()
}
