package config

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/verichain-labs/verification-node/internal/core/domain"
)

// ChainSettings is the per-chain configuration loaded from the settings file
type ChainSettings struct {
	// RPCURL is the ledger RPC endpoint
	RPCURL string `yaml:"rpcURL"`
	// WalletURL is the signing sidecar endpoint, for chains where the node
	// does not hold keys itself
	WalletURL string `yaml:"walletURL"`
	// ChainID of the ledger network, for chains that sign locally
	ChainID int64 `yaml:"chainID"`
	// TreasuryPrivKey is the hex-encoded key controlling the service account
	TreasuryPrivKey string `yaml:"treasuryPrivKey"`
	// ServiceAccount pays fees on behalf of submitters
	ServiceAccount string `yaml:"serviceAccount"`
	// Treasury receives collected fees
	Treasury string `yaml:"treasury"`
	// Owner is the protocol owner account for this chain
	Owner string `yaml:"owner"`
	// AssetID is the price feed identifier for the chain's native asset
	AssetID string `yaml:"assetID"`
	// NativeDecimals of the chain's native asset
	NativeDecimals int64 `yaml:"nativeDecimals"`
	// StaticMinFee and StaticMaxFee are the fallback fee bounds in native
	// units, used when the price feed is stale or unavailable
	StaticMinFee string `yaml:"staticMinFee"`
	StaticMaxFee string `yaml:"staticMaxFee"`
	// OracleAccounts may fulfill and fail verification requests
	OracleAccounts []string `yaml:"oracleAccounts"`
	// RelayAccounts may request attestations through the relayer
	RelayAccounts []string `yaml:"relayAccounts"`
	// FeeManagerAccounts may adjust fee policy at runtime
	FeeManagerAccounts []string `yaml:"feeManagerAccounts"`
}

// SettingsFromConfig returns the chain settings from wherever the
// configuration points at: an inline base64 blob wins over a file path.
func SettingsFromConfig(cfg ChainsConfig) (map[domain.Chain]ChainSettings, error) {
	if cfg.SettingsFile != nil && *cfg.SettingsFile != "" {
		raw, err := base64.StdEncoding.DecodeString(*cfg.SettingsFile)
		if err != nil {
			return nil, fmt.Errorf("decoding chain settings content: %w", err)
		}
		return SettingsFromReader(bytes.NewReader(raw))
	}
	if cfg.SettingsPath != "" {
		f, err := os.Open(cfg.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("opening chain settings file: %w", err)
		}
		defer func() { _ = f.Close() }()
		return SettingsFromReader(f)
	}
	return nil, fmt.Errorf("no chain settings configured")
}

// SettingsFromReader parses and validates chain settings from a yaml stream
func SettingsFromReader(r io.Reader) (map[domain.Chain]ChainSettings, error) {
	var settings map[domain.Chain]ChainSettings
	if err := yaml.NewDecoder(r).Decode(&settings); err != nil {
		return nil, fmt.Errorf("parsing chain settings: %w", err)
	}
	if len(settings) == 0 {
		return nil, fmt.Errorf("chain settings file is empty")
	}
	for chain, s := range settings {
		if !chain.Valid() {
			return nil, fmt.Errorf("unknown chain %q in settings", chain)
		}
		if s.RPCURL == "" {
			return nil, fmt.Errorf("chain %s: rpcURL is required", chain)
		}
		if s.ServiceAccount == "" || s.Treasury == "" {
			return nil, fmt.Errorf("chain %s: serviceAccount and treasury are required", chain)
		}
		if s.AssetID == "" {
			return nil, fmt.Errorf("chain %s: assetID is required", chain)
		}
		if s.NativeDecimals <= 0 {
			return nil, fmt.Errorf("chain %s: nativeDecimals must be positive", chain)
		}
		if s.StaticMinFee == "" || s.StaticMaxFee == "" {
			return nil, fmt.Errorf("chain %s: static fee bounds are required", chain)
		}
	}
	return settings, nil
}
