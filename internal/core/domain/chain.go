package domain

import "errors"

// Chain is a selectable backing ledger hosting one instance of the protocol.
type Chain string

// Supported chains
const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
)

// ErrUnsupportedChain is returned when a chain selector is unknown to the router
var ErrUnsupportedChain = errors.New("unsupported chain")

// AllChains is the fixed probe/merge order for router operations that span
// every chain. Order matters for stable pagination.
var AllChains = []Chain{ChainEthereum, ChainSolana}

// TokenIDPrefix returns the chain-specific prefix carried by token ids minted
// on this chain. The router relies on it for chain inference.
func (c Chain) TokenIDPrefix() string {
	switch c {
	case ChainEthereum:
		return "eth-"
	case ChainSolana:
		return "sol-"
	default:
		return ""
	}
}

// Valid returns true if the chain is one of the supported chains
func (c Chain) Valid() bool {
	switch c {
	case ChainEthereum, ChainSolana:
		return true
	default:
		return false
	}
}
