package ports

import "context"

// Capability names a privileged operation class. Each mutating service
// operation declares the capability it requires.
type Capability string

// Protocol capabilities. The owner account holds all of them implicitly.
const (
	CapabilityOracle     Capability = "oracle"
	CapabilityRelay      Capability = "relay"
	CapabilityFeeManager Capability = "fee-manager"
)

// Authorizer answers capability checks for accounts
type Authorizer interface {
	Has(ctx context.Context, capability Capability, account string) bool
}
