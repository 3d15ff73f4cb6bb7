package services

import (
	"context"

	"github.com/verichain-labs/verification-node/internal/core/ports"
)

// staticAuthorizer answers capability checks from fixed in-config role sets.
// The owner account holds every capability.
type staticAuthorizer struct {
	owner string
	roles map[ports.Capability]map[string]struct{}
}

// NewStaticAuthorizer returns an Authorizer backed by static role sets
func NewStaticAuthorizer(owner string, grants map[ports.Capability][]string) ports.Authorizer {
	roles := make(map[ports.Capability]map[string]struct{}, len(grants))
	for capability, accounts := range grants {
		set := make(map[string]struct{}, len(accounts))
		for _, account := range accounts {
			set[account] = struct{}{}
		}
		roles[capability] = set
	}
	return &staticAuthorizer{owner: owner, roles: roles}
}

// Has returns true if the account holds the capability
func (a *staticAuthorizer) Has(_ context.Context, capability ports.Capability, account string) bool {
	if account == "" {
		return false
	}
	if account == a.owner {
		return true
	}
	_, ok := a.roles[capability][account]
	return ok
}
