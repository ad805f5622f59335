package registry

import (
	"context"

	"github.com/chainsafe/vault-teller/pkg/db"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	GetChainFunc      func(ctx context.Context, selector uint64) (*db.Chain, error)
	ListChainsFunc    func(ctx context.Context) ([]*db.Chain, error)
	CreateChainFunc   func(ctx context.Context, chain *db.Chain, evt *db.TellerEvent) error
	UpdateChainFunc   func(ctx context.Context, chain *db.Chain, evt *db.TellerEvent) error
	DeleteChainFunc   func(ctx context.Context, selector uint64, evt *db.TellerEvent) error
	GetChainStatsFunc func(ctx context.Context, selector uint64) (*db.ChainStats, error)
}

func (m *MockStore) GetChain(ctx context.Context, selector uint64) (*db.Chain, error) {
	if m.GetChainFunc != nil {
		return m.GetChainFunc(ctx, selector)
	}
	return nil, db.ErrChainNotFound
}

func (m *MockStore) ListChains(ctx context.Context) ([]*db.Chain, error) {
	if m.ListChainsFunc != nil {
		return m.ListChainsFunc(ctx)
	}
	return nil, nil
}

func (m *MockStore) CreateChain(ctx context.Context, chain *db.Chain, evt *db.TellerEvent) error {
	if m.CreateChainFunc != nil {
		return m.CreateChainFunc(ctx, chain, evt)
	}
	return nil
}

func (m *MockStore) UpdateChain(ctx context.Context, chain *db.Chain, evt *db.TellerEvent) error {
	if m.UpdateChainFunc != nil {
		return m.UpdateChainFunc(ctx, chain, evt)
	}
	return nil
}

func (m *MockStore) DeleteChain(ctx context.Context, selector uint64, evt *db.TellerEvent) error {
	if m.DeleteChainFunc != nil {
		return m.DeleteChainFunc(ctx, selector, evt)
	}
	return nil
}

func (m *MockStore) GetChainStats(ctx context.Context, selector uint64) (*db.ChainStats, error) {
	if m.GetChainStatsFunc != nil {
		return m.GetChainStatsFunc(ctx, selector)
	}
	return nil, nil
}
