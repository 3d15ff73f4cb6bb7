// Package ethereum implements the ledger boundary for Ethereum-style chains.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/verichain-labs/verification-node/internal/log"
)

// transferGasLimit is the fixed gas limit for plain value transfers
const transferGasLimit = 21000

// ErrInvalidAddress when an account string is not a valid hex address
var ErrInvalidAddress = errors.New("invalid ethereum address")

// ErrSignerMismatch when the configured key does not control the paying account
var ErrSignerMismatch = errors.New("configured key does not match the from account")

// ClientConfig eth client config
type ClientConfig struct {
	ChainID            int64
	RPCResponseTimeout time.Duration
	// TreasuryPrivKey signs fee transfers out of the service account
	TreasuryPrivKey *ecdsa.PrivateKey
}

// Client is the Ethereum ledger client
type Client struct {
	client *ethclient.Client
	cfg    ClientConfig
}

// NewClient creates a Client instance
func NewClient(client *ethclient.Client, cfg ClientConfig) *Client {
	return &Client{client: client, cfg: cfg}
}

// Open dials an Ethereum RPC endpoint and parses the signing key
func Open(url, privKeyHex string, cfg ClientConfig) (*Client, error) {
	ec, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}
	if privKeyHex != "" {
		key, err := crypto.HexToECDSA(privKeyHex)
		if err != nil {
			return nil, err
		}
		cfg.TreasuryPrivKey = key
	}
	return NewClient(ec, cfg), nil
}

// BalanceAt retrieves the account balance
func (c *Client) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	addr, err := parseAddress(account)
	if err != nil {
		return nil, err
	}
	_ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCResponseTimeout)
	defer cancel()
	return c.client.BalanceAt(_ctx, addr, nil)
}

// TransferFee moves the submission fee from the paying account to the
// treasury as a plain value transfer signed with the configured key.
func (c *Client) TransferFee(ctx context.Context, from, to string, amount *big.Int) error {
	fromAddr, err := parseAddress(from)
	if err != nil {
		return err
	}
	toAddr, err := parseAddress(to)
	if err != nil {
		return err
	}
	if c.cfg.TreasuryPrivKey == nil {
		return errors.New("no signing key configured for fee transfers")
	}
	if crypto.PubkeyToAddress(c.cfg.TreasuryPrivKey.PublicKey) != fromAddr {
		return ErrSignerMismatch
	}

	_ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCResponseTimeout)
	defer cancel()

	nonce, err := c.client.PendingNonceAt(_ctx, fromAddr)
	if err != nil {
		return err
	}
	gasPrice, err := c.client.SuggestGasPrice(_ctx)
	if err != nil {
		return err
	}
	tx := types.NewTransaction(nonce, toAddr, amount, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(c.cfg.ChainID)), c.cfg.TreasuryPrivKey)
	if err != nil {
		return err
	}
	if err := c.client.SendTransaction(_ctx, signed); err != nil {
		return err
	}
	log.Info(ctx, "fee transfer sent", "tx", signed.Hash().Hex(), "from", from, "to", to)
	return nil
}

// AccountExists reports whether the address is well formed and known to the
// node. Externally owned accounts exist implicitly on Ethereum, so this is a
// syntactic check plus a balance probe.
func (c *Client) AccountExists(ctx context.Context, account string) (bool, error) {
	addr, err := parseAddress(account)
	if err != nil {
		return false, nil
	}
	_ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCResponseTimeout)
	defer cancel()
	if _, err := c.client.BalanceAt(_ctx, addr, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Sequence returns the latest block number, the chain's monotonic counter
func (c *Client) Sequence(ctx context.Context) (uint64, error) {
	_ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCResponseTimeout)
	defer cancel()
	return c.client.BlockNumber(_ctx)
}

// Ping probes the RPC endpoint
func (c *Client) Ping(ctx context.Context) error {
	_ctx, cancel := context.WithTimeout(ctx, c.cfg.RPCResponseTimeout)
	defer cancel()
	_, err := c.client.BlockNumber(_ctx)
	return err
}

func parseAddress(account string) (common.Address, error) {
	if !common.IsHexAddress(account) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(account), nil
}
