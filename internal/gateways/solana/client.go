// Package solana implements the ledger boundary for Solana-style chains over
// plain JSON-RPC. Fee transfers are delegated to the wallet sidecar that
// custodies the service account; this node never holds Solana keys itself.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// ErrInvalidAccount when an account string is not valid base58
var ErrInvalidAccount = errors.New("invalid solana account")

// Client is the Solana ledger client
type Client struct {
	rpcURL    string
	walletURL string
	http      *http.Client
}

// NewClient returns a Solana client. walletURL points at the signing sidecar
// used for fee transfers.
func NewClient(rpcURL, walletURL string, timeout time.Duration) *Client {
	return &Client{
		rpcURL:    rpcURL,
		walletURL: walletURL,
		http:      &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("solana rpc %s returned status %d", method, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return err
	}
	if rr.Error != nil {
		return errors.Errorf("solana rpc %s failed: %d %s", method, rr.Error.Code, rr.Error.Message)
	}
	if result != nil {
		return json.Unmarshal(rr.Result, result)
	}
	return nil
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

// BalanceAt returns the account balance in lamports
func (c *Client) BalanceAt(ctx context.Context, account string) (*big.Int, error) {
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	var res balanceResult
	if err := c.call(ctx, "getBalance", []interface{}{account}, &res); err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(res.Value), nil
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// TransferFee asks the wallet sidecar to sign and send a system transfer
func (c *Client) TransferFee(ctx context.Context, from, to string, amount *big.Int) error {
	if err := validateAccount(from); err != nil {
		return err
	}
	if err := validateAccount(to); err != nil {
		return err
	}
	body, err := json.Marshal(transferRequest{From: from, To: to, Amount: amount.String()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.walletURL+"/transfer", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("wallet transfer returned status %d", resp.StatusCode)
	}
	return nil
}

type accountInfoResult struct {
	Value *json.RawMessage `json:"value"`
}

// AccountExists reports whether the account is on chain
func (c *Client) AccountExists(ctx context.Context, account string) (bool, error) {
	if err := validateAccount(account); err != nil {
		return false, nil
	}
	var res accountInfoResult
	if err := c.call(ctx, "getAccountInfo", []interface{}{account}, &res); err != nil {
		return false, err
	}
	return res.Value != nil, nil
}

// Sequence returns the current slot, the chain's monotonic counter
func (c *Client) Sequence(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// Ping probes the RPC endpoint
func (c *Client) Ping(ctx context.Context) error {
	var health string
	if err := c.call(ctx, "getHealth", nil, &health); err != nil {
		return err
	}
	if health != "ok" {
		return fmt.Errorf("solana node unhealthy: %s", health)
	}
	return nil
}

func validateAccount(account string) error {
	raw, err := base58.Decode(account)
	if err != nil || len(raw) != 32 {
		return ErrInvalidAccount
	}
	return nil
}
