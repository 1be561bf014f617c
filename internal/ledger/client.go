package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rxtech-lab/crowdfund-mcp/internal/constants"
	"github.com/rxtech-lab/crowdfund-mcp/internal/models"
)

// Config holds everything the client needs for one registry deployment.
// It is constructed once per process and passed explicitly into services,
// never held as ambient global state.
type Config struct {
	RPCURL          string
	ContractAddress string
	ChainID         *big.Int
	// AdminPrivateKey signs closeCampaign transactions. Optional when only
	// the read surface is used (indexer, diagnostics, reconcile CLI).
	AdminPrivateKey *ecdsa.PrivateKey

	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
	RetryInterval  time.Duration
	MaxRetries     uint64
}

// ConfigFromEnv builds a Config from LEDGER_RPC_URL, REGISTRY_ADDRESS,
// LEDGER_CHAIN_ID and ADMIN_PRIVATE_KEY, with defaults from constants.
func ConfigFromEnv(rpcURL, contractAddress, chainID, privateKeyHex string) (Config, error) {
	if rpcURL == "" {
		return Config{}, fmt.Errorf("ledger RPC URL is required")
	}
	if !common.IsHexAddress(contractAddress) {
		return Config{}, fmt.Errorf("invalid registry contract address: %s", contractAddress)
	}

	parsedChainID, ok := new(big.Int).SetString(chainID, 10)
	if !ok {
		return Config{}, fmt.Errorf("invalid chain id: %s", chainID)
	}

	cfg := Config{
		RPCURL:          rpcURL,
		ContractAddress: contractAddress,
		ChainID:         parsedChainID,
		CallTimeout:     constants.DefaultCallTimeout,
		ConfirmTimeout:  constants.DefaultConfirmTimeout,
		RetryInterval:   constants.DefaultRetryInterval,
		MaxRetries:      constants.DefaultMaxRetries,
	}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return Config{}, fmt.Errorf("invalid admin private key: %w", err)
		}
		cfg.AdminPrivateKey = key
	}

	return cfg, nil
}

// EthClient implements Client against an EVM campaign registry.
type EthClient struct {
	cfg      Config
	eth      *ethclient.Client
	contract *bind.BoundContract
}

// NewEthClient dials the RPC endpoint and binds the registry contract.
func NewEthClient(cfg Config) (*EthClient, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger RPC: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}

	contract := bind.NewBoundContract(common.HexToAddress(cfg.ContractAddress), parsedABI, eth, eth, eth)

	return &EthClient{cfg: cfg, eth: eth, contract: contract}, nil
}

func (c *EthClient) ContractAddress() string {
	return c.cfg.ContractAddress
}

// Close releases the underlying RPC connection.
func (c *EthClient) Close() {
	c.eth.Close()
}

// CampaignCount returns the number of registry slots ever assigned.
func (c *EthClient) CampaignCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var out []interface{}
		if err := c.contract.Call(&bind.CallOpts{Context: callCtx}, &out, "campaignCount"); err != nil {
			return err
		}
		raw, ok := out[0].(*big.Int)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected campaignCount output type %T", out[0]))
		}
		count = raw.Uint64()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read campaign count: %w", err)
	}
	return count, nil
}

// CampaignProjection reads one registry slot. Failures after the retry
// budget are wrapped as a LedgerReadError so callers can skip the slot.
func (c *EthClient) CampaignProjection(ctx context.Context, campaignID uint64) (CampaignProjection, error) {
	var projection CampaignProjection
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var out []interface{}
		err := c.contract.Call(&bind.CallOpts{Context: callCtx}, &out, "campaigns", new(big.Int).SetUint64(campaignID))
		if err != nil {
			return err
		}
		decoded, err := decodeProjection(campaignID, out)
		if err != nil {
			return backoff.Permanent(err)
		}
		projection = decoded
		return nil
	})
	if err != nil {
		return CampaignProjection{}, &models.LedgerReadError{CampaignID: campaignID, Err: err}
	}
	return projection, nil
}

// CloseCampaign signs and sends a closeCampaign transaction and waits for it
// to be mined. The wait is bounded by ConfirmTimeout; an unconfirmed or
// reverted transaction is returned as a LedgerWriteError and must not be
// auto-retried.
func (c *EthClient) CloseCampaign(ctx context.Context, campaignID uint64) (CloseResult, error) {
	if c.cfg.AdminPrivateKey == nil {
		return CloseResult{}, &models.LedgerWriteError{
			CampaignID: campaignID,
			Err:        fmt.Errorf("no admin private key configured"),
		}
	}

	auth, err := bind.NewKeyedTransactorWithChainID(c.cfg.AdminPrivateKey, c.cfg.ChainID)
	if err != nil {
		return CloseResult{}, &models.LedgerWriteError{CampaignID: campaignID, Err: err}
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	auth.Context = sendCtx

	tx, err := c.contract.Transact(auth, "closeCampaign", new(big.Int).SetUint64(campaignID))
	if err != nil {
		return CloseResult{}, &models.LedgerWriteError{CampaignID: campaignID, Err: err}
	}

	confirmCtx, cancelConfirm := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancelConfirm()

	receipt, err := bind.WaitMined(confirmCtx, c.eth, tx)
	if err != nil {
		return CloseResult{}, &models.LedgerWriteError{
			CampaignID: campaignID,
			TxHash:     tx.Hash().Hex(),
			Err:        fmt.Errorf("failed to wait for confirmation: %w", err),
		}
	}
	if receipt.Status != 1 {
		return CloseResult{}, &models.LedgerWriteError{
			CampaignID: campaignID,
			TxHash:     tx.Hash().Hex(),
			Err:        fmt.Errorf("transaction reverted with status %d", receipt.Status),
		}
	}

	return CloseResult{TxHash: tx.Hash().Hex(), Confirmed: true}, nil
}

// withRetry runs op with a per-attempt timeout under a constant backoff
// budget. A slot that stays unreadable past the budget is skipped and
// reported by the caller rather than holding up a scan.
func (c *EthClient) withRetry(ctx context.Context, op func(context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
		return op(callCtx)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryInterval), c.cfg.MaxRetries),
		ctx,
	)
	return backoff.Retry(attempt, policy)
}

func decodeProjection(campaignID uint64, out []interface{}) (CampaignProjection, error) {
	if len(out) != 5 {
		return CampaignProjection{}, fmt.Errorf("unexpected campaigns output arity %d", len(out))
	}

	baseURI, ok := out[0].(string)
	if !ok {
		return CampaignProjection{}, fmt.Errorf("unexpected baseURI type %T", out[0])
	}
	active, ok := out[1].(bool)
	if !ok {
		return CampaignProjection{}, fmt.Errorf("unexpected active type %T", out[1])
	}
	closed, ok := out[2].(bool)
	if !ok {
		return CampaignProjection{}, fmt.Errorf("unexpected closed type %T", out[2])
	}
	minted, ok := out[3].(*big.Int)
	if !ok {
		return CampaignProjection{}, fmt.Errorf("unexpected editionsMinted type %T", out[3])
	}
	maxEditions, ok := out[4].(*big.Int)
	if !ok {
		return CampaignProjection{}, fmt.Errorf("unexpected maxEditions type %T", out[4])
	}

	return CampaignProjection{
		CampaignID:     campaignID,
		BaseURI:        baseURI,
		Active:         active,
		Closed:         closed,
		EditionsMinted: minted.Uint64(),
		MaxEditions:    maxEditions.Uint64(),
	}, nil
}
