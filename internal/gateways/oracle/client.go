// Package oracle implements the HTTP client for the external attestation and
// price oracle.
package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

// Client talks to the external oracle service. It implements both
// ports.AttestationForwarder and ports.PriceFeed.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// NewClient returns a new oracle client
func NewClient(baseURL string, timeout time.Duration) *Client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = timeout
	c.Logger = nil
	return &Client{http: c, baseURL: baseURL}
}

type forwardRequest struct {
	RequestID string `json:"requestID"`
	Payload   string `json:"payload"`
}

// Forward hands an attestation payload to the oracle
func (c *Client) Forward(ctx context.Context, requestID string, payload []byte) error {
	body, err := json.Marshal(forwardRequest{
		RequestID: requestID,
		Payload:   base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attestations", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return errors.Errorf("oracle attestation request failed with status %d", resp.StatusCode)
	}
	return nil
}

type priceResponse struct {
	AssetID string    `json:"assetID"`
	Price   string    `json:"price"`
	AsOf    time.Time `json:"asOf"`
}

// GetPrice queries the oracle price feed for an asset
func (c *Client) GetPrice(ctx context.Context, assetID string) (*domain.PriceQuote, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/price/%s", c.baseURL, assetID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("oracle price request failed with status %d", resp.StatusCode)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, err
	}
	price, _, err := apd.NewFromString(pr.Price)
	if err != nil {
		return nil, errors.Wrapf(err, "oracle returned unparsable price %q", pr.Price)
	}
	return &domain.PriceQuote{AssetID: pr.AssetID, Price: price, AsOf: pr.AsOf}, nil
}

// Ping probes the oracle health endpoint
func (c *Client) Ping(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("oracle health returned status %d", resp.StatusCode)
	}
	return nil
}
