// Package registry manages the set of remote chains this teller is
// willing to exchange vault shares with: which chains may send to us,
// which we may send to, the peer teller address trusted on each, and
// the gas window applied to outbound messages.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/vault-teller/internal/metrics"
	apperrors "github.com/chainsafe/vault-teller/pkg/app/errors"
	"github.com/chainsafe/vault-teller/pkg/auth"
	"github.com/chainsafe/vault-teller/pkg/db"
)

var (
	// ErrInvalidChain covers registry operations against a selector that
	// is absent, already registered, or configured with an unsatisfiable
	// gas window.
	ErrInvalidChain = errors.New("invalid chain")

	// ErrNotAuthorized is returned when the acting caller lacks the
	// capability an operation requires.
	ErrNotAuthorized = errors.New("not authorized")
)

// Store is the narrow data-access interface for the chain registry.
// Defined here to keep the registry decoupled from the store
// implementation details.
type Store interface {
	GetChain(ctx context.Context, selector uint64) (*db.Chain, error)
	ListChains(ctx context.Context) ([]*db.Chain, error)
	CreateChain(ctx context.Context, chain *db.Chain, evt *db.TellerEvent) error
	UpdateChain(ctx context.Context, chain *db.Chain, evt *db.TellerEvent) error
	DeleteChain(ctx context.Context, selector uint64, evt *db.TellerEvent) error
	GetChainStats(ctx context.Context, selector uint64) (*db.ChainStats, error)
}

// Registry is the admission authority for cross-chain traffic. Every
// mutation takes the acting caller explicitly so capability checks sit
// at the operation boundary rather than in HTTP middleware, and every
// mutation is persisted together with its event record.
type Registry struct {
	store  Store
	logger *zap.Logger
}

// NewRegistry creates a chain registry backed by the given store.
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
	}
}

// AddChainParams carries the full trust configuration for a new chain.
type AddChainParams struct {
	Selector   uint64
	AllowFrom  bool
	AllowTo    bool
	PeerTeller common.Address
	GasLimit   uint64
	MinGas     uint64
}

// AddChain registers a remote chain under its selector. A chain enabled
// for outbound traffic must have a satisfiable gas window up front:
// 0 < MinGas <= GasLimit.
func (r *Registry) AddChain(ctx context.Context, actor *auth.Actor, p AddChainParams) (*db.Chain, error) {
	if err := authorize(actor, auth.CapabilityManageChains); err != nil {
		return nil, err
	}
	if p.AllowTo && (p.MinGas == 0 || p.GasLimit < p.MinGas) {
		return nil, apperrors.BadRequestError(ErrInvalidChain, "allow_to requires 0 < min_gas <= gas_limit")
	}

	chain := &db.Chain{
		Selector:   p.Selector,
		AllowFrom:  p.AllowFrom,
		AllowTo:    p.AllowTo,
		PeerTeller: p.PeerTeller,
		GasLimit:   p.GasLimit,
		MinGas:     p.MinGas,
	}
	evt := &db.TellerEvent{
		Type:          db.EventChainAdded,
		ChainSelector: p.Selector,
		PeerTeller:    &p.PeerTeller,
		GasLimit:      &p.GasLimit,
	}

	if err := r.store.CreateChain(ctx, chain, evt); err != nil {
		if errors.Is(err, db.ErrChainExists) {
			return nil, apperrors.ConflictError(ErrInvalidChain, "chain already registered")
		}
		return nil, fmt.Errorf("failed to register chain: %w", err)
	}

	metrics.RegistryChains.Inc()
	r.logger.Info("Chain registered",
		zap.Uint64("selector", p.Selector),
		zap.String("peer_teller", p.PeerTeller.Hex()),
		zap.Bool("allow_from", p.AllowFrom),
		zap.Bool("allow_to", p.AllowTo),
		zap.Uint64("gas_limit", p.GasLimit),
		zap.String("actor", actor.Subject))
	return chain, nil
}

// RemoveChain deletes a registry entry outright. Prefer the stop
// operations when traffic may resume; removal also discards the gas
// window and peer address.
func (r *Registry) RemoveChain(ctx context.Context, actor *auth.Actor, selector uint64) error {
	if err := authorize(actor, auth.CapabilityHaltChains); err != nil {
		return err
	}

	evt := &db.TellerEvent{Type: db.EventChainRemoved, ChainSelector: selector}
	if err := r.store.DeleteChain(ctx, selector, evt); err != nil {
		if errors.Is(err, db.ErrChainNotFound) {
			return apperrors.ResourceNotFoundError(ErrInvalidChain, "chain not registered")
		}
		return fmt.Errorf("failed to remove chain: %w", err)
	}

	metrics.RegistryChains.Dec()
	r.logger.Info("Chain removed",
		zap.Uint64("selector", selector),
		zap.String("actor", actor.Subject))
	return nil
}

// AllowMessagesFrom opens inbound traffic from a chain. The peer teller
// is re-stated on every call so stale trust is never silently resumed.
func (r *Registry) AllowMessagesFrom(ctx context.Context, actor *auth.Actor, selector uint64, peerTeller common.Address) (*db.Chain, error) {
	if err := authorize(actor, auth.CapabilityManageChains); err != nil {
		return nil, err
	}

	evt := &db.TellerEvent{
		Type:          db.EventChainAllowMsgsFrom,
		ChainSelector: selector,
		PeerTeller:    &peerTeller,
	}
	chain, err := r.update(ctx, selector, evt, func(c *db.Chain) error {
		c.AllowFrom = true
		c.PeerTeller = peerTeller
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Inbound messages allowed",
		zap.Uint64("selector", selector),
		zap.String("peer_teller", peerTeller.Hex()),
		zap.String("actor", actor.Subject))
	return chain, nil
}

// StopMessagesFrom halts inbound traffic from a chain without touching
// the rest of its configuration.
func (r *Registry) StopMessagesFrom(ctx context.Context, actor *auth.Actor, selector uint64) (*db.Chain, error) {
	if err := authorize(actor, auth.CapabilityHaltChains); err != nil {
		return nil, err
	}

	evt := &db.TellerEvent{Type: db.EventChainStopMsgsFrom, ChainSelector: selector}
	chain, err := r.update(ctx, selector, evt, func(c *db.Chain) error {
		c.AllowFrom = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Inbound messages stopped",
		zap.Uint64("selector", selector),
		zap.String("actor", actor.Subject))
	return chain, nil
}

// AllowMessagesTo opens outbound traffic to a chain. The peer teller and
// gas limit are re-stated together; the gas limit must cover the chain's
// configured minimum.
func (r *Registry) AllowMessagesTo(ctx context.Context, actor *auth.Actor, selector uint64, peerTeller common.Address, gasLimit uint64) (*db.Chain, error) {
	if err := authorize(actor, auth.CapabilityManageChains); err != nil {
		return nil, err
	}

	evt := &db.TellerEvent{
		Type:          db.EventChainAllowMsgsTo,
		ChainSelector: selector,
		PeerTeller:    &peerTeller,
		GasLimit:      &gasLimit,
	}
	chain, err := r.update(ctx, selector, evt, func(c *db.Chain) error {
		if c.MinGas == 0 || gasLimit < c.MinGas {
			return apperrors.BadRequestError(ErrInvalidChain, "gas_limit must cover the chain min_gas")
		}
		c.AllowTo = true
		c.PeerTeller = peerTeller
		c.GasLimit = gasLimit
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Outbound messages allowed",
		zap.Uint64("selector", selector),
		zap.String("peer_teller", peerTeller.Hex()),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("actor", actor.Subject))
	return chain, nil
}

// StopMessagesTo halts outbound traffic to a chain without touching the
// rest of its configuration.
func (r *Registry) StopMessagesTo(ctx context.Context, actor *auth.Actor, selector uint64) (*db.Chain, error) {
	if err := authorize(actor, auth.CapabilityHaltChains); err != nil {
		return nil, err
	}

	evt := &db.TellerEvent{Type: db.EventChainStopMsgsTo, ChainSelector: selector}
	chain, err := r.update(ctx, selector, evt, func(c *db.Chain) error {
		c.AllowTo = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Outbound messages stopped",
		zap.Uint64("selector", selector),
		zap.String("actor", actor.Subject))
	return chain, nil
}

// SetGasLimit tightens or relaxes the outbound gas ceiling for a chain.
// The new limit must still cover the chain's configured minimum.
func (r *Registry) SetGasLimit(ctx context.Context, actor *auth.Actor, selector uint64, gasLimit uint64) (*db.Chain, error) {
	if err := authorize(actor, auth.CapabilityManageChains); err != nil {
		return nil, err
	}

	evt := &db.TellerEvent{
		Type:          db.EventChainGasLimitUpdated,
		ChainSelector: selector,
		GasLimit:      &gasLimit,
	}
	chain, err := r.update(ctx, selector, evt, func(c *db.Chain) error {
		if gasLimit < c.MinGas {
			return apperrors.BadRequestError(ErrInvalidChain, "gas_limit must cover the chain min_gas")
		}
		c.GasLimit = gasLimit
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Gas limit updated",
		zap.Uint64("selector", selector),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("actor", actor.Subject))
	return chain, nil
}

// Get returns the registry entry for a selector.
func (r *Registry) Get(ctx context.Context, selector uint64) (*db.Chain, error) {
	chain, err := r.store.GetChain(ctx, selector)
	if err != nil {
		if errors.Is(err, db.ErrChainNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrInvalidChain, "chain not registered")
		}
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	return chain, nil
}

// List returns every registry entry.
func (r *Registry) List(ctx context.Context) ([]*db.Chain, error) {
	chains, err := r.store.ListChains(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	return chains, nil
}

// Stats reports send and settlement aggregates for one registered chain.
func (r *Registry) Stats(ctx context.Context, selector uint64) (*db.ChainStats, error) {
	if _, err := r.Get(ctx, selector); err != nil {
		return nil, err
	}
	stats, err := r.store.GetChainStats(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain stats: %w", err)
	}
	return stats, nil
}

// update loads a chain, applies mutate and persists the result together
// with its event record.
func (r *Registry) update(ctx context.Context, selector uint64, evt *db.TellerEvent, mutate func(*db.Chain) error) (*db.Chain, error) {
	chain, err := r.store.GetChain(ctx, selector)
	if err != nil {
		if errors.Is(err, db.ErrChainNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrInvalidChain, "chain not registered")
		}
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	if err := mutate(chain); err != nil {
		return nil, err
	}
	if err := r.store.UpdateChain(ctx, chain, evt); err != nil {
		if errors.Is(err, db.ErrChainNotFound) {
			return nil, apperrors.ResourceNotFoundError(ErrInvalidChain, "chain not registered")
		}
		return nil, fmt.Errorf("failed to update chain: %w", err)
	}
	return chain, nil
}

// authorize distinguishes unauthenticated callers from authenticated
// callers missing the required capability.
func authorize(actor *auth.Actor, c auth.Capability) error {
	if actor == nil {
		return apperrors.UnAuthorizedError(ErrNotAuthorized, "authentication required")
	}
	if !actor.Can(c) {
		return apperrors.ForbiddenError(ErrNotAuthorized, fmt.Sprintf("missing capability %q", c))
	}
	return nil
}
