package auth

import (
	"github.com/ethereum/go-ethereum/common"
)

// Capability names an administrative permission carried by an
// authenticated actor.
type Capability string

const (
	// CapabilityManageChains allows registering chains, opening message
	// flow and tuning gas limits.
	CapabilityManageChains Capability = "chains:manage"
	// CapabilityHaltChains allows removing chains and shutting message
	// flow off. Kept separate so incident tooling can halt traffic
	// without holding full registry control.
	CapabilityHaltChains Capability = "chains:halt"
)

// Actor is an authenticated caller.
type Actor struct {
	// Subject identifies the actor in audit logs: the JWT sub claim or
	// the configured API key name.
	Subject string
	// EVMAddress is the actor's on-chain identity, when known. Bridge
	// operations burn shares from this address.
	EVMAddress common.Address
	// Capabilities lists the administrative operations the actor may
	// perform.
	Capabilities []Capability
}

// Can reports whether the actor holds the given capability.
func (a *Actor) Can(c Capability) bool {
	if a == nil {
		return false
	}
	for _, held := range a.Capabilities {
		if held == c {
			return true
		}
	}
	return false
}

// CapabilitiesFromStrings converts configured capability names.
func CapabilitiesFromStrings(names []string) []Capability {
	caps := make([]Capability, 0, len(names))
	for _, n := range names {
		caps = append(caps, Capability(n))
	}
	return caps
}
