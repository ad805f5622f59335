package teller

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/chainsafe/vault-teller/pkg/app/errors"
	"github.com/chainsafe/vault-teller/pkg/db"
	"github.com/chainsafe/vault-teller/pkg/registry"
	"github.com/chainsafe/vault-teller/pkg/wire"
)

// MockRegistry is a mock implementation of ChainRegistry
type MockRegistry struct {
	GetFunc func(ctx context.Context, selector uint64) (*db.Chain, error)
}

func (m *MockRegistry) Get(ctx context.Context, selector uint64) (*db.Chain, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, selector)
	}
	return nil, apperrors.ResourceNotFoundError(registry.ErrInvalidChain, "chain not registered")
}

// MockVault is a mock implementation of Vault
type MockVault struct {
	DepositFunc func(ctx context.Context, asset common.Address, amount, minimumMint *big.Int, receiver common.Address) (*big.Int, error)
	BurnFunc    func(ctx context.Context, caller common.Address, shareAmount *big.Int) error
	CreditFunc  func(ctx context.Context, recipient common.Address, shareAmount *big.Int) error
}

func (m *MockVault) Deposit(ctx context.Context, asset common.Address, amount, minimumMint *big.Int, receiver common.Address) (*big.Int, error) {
	if m.DepositFunc != nil {
		return m.DepositFunc(ctx, asset, amount, minimumMint, receiver)
	}
	return amount, nil
}

func (m *MockVault) Burn(ctx context.Context, caller common.Address, shareAmount *big.Int) error {
	if m.BurnFunc != nil {
		return m.BurnFunc(ctx, caller, shareAmount)
	}
	return nil
}

func (m *MockVault) Credit(ctx context.Context, recipient common.Address, shareAmount *big.Int) error {
	if m.CreditFunc != nil {
		return m.CreditFunc(ctx, recipient, shareAmount)
	}
	return nil
}

// MockTransport is a mock implementation of Transport
type MockTransport struct {
	QuoteFeeFunc func(ctx context.Context, msg *OutboundMessage) (*big.Int, error)
	SendFunc     func(ctx context.Context, msg *OutboundMessage) (string, error)
}

func (m *MockTransport) QuoteFee(ctx context.Context, msg *OutboundMessage) (*big.Int, error) {
	if m.QuoteFeeFunc != nil {
		return m.QuoteFeeFunc(ctx, msg)
	}
	return big.NewInt(0), nil
}

func (m *MockTransport) Send(ctx context.Context, msg *OutboundMessage) (string, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	return "receipt-1", nil
}

// MockStore is a mock implementation of Store. ReserveSend defaults to
// assigning nonce 1 and SettleInbound defaults to running the credit
// callback and reporting a fresh settlement.
type MockStore struct {
	ReserveSendFunc        func(ctx context.Context, destination uint64, build func(nonce uint64) (*db.Send, error)) (*db.Send, error)
	MarkSendDispatchedFunc func(ctx context.Context, id wire.MessageID, receipt string, evt *db.TellerEvent) error
	MarkSendFailedFunc     func(ctx context.Context, id wire.MessageID, errMsg string) error
	SettleInboundFunc      func(ctx context.Context, st *db.Settlement, evt *db.TellerEvent, credit func(ctx context.Context) error) (bool, error)
	GetSendFunc            func(ctx context.Context, id wire.MessageID) (*db.Send, error)
	ListSendsFunc          func(ctx context.Context, limit int) ([]*db.Send, error)
	ListPendingSendsFunc   func(ctx context.Context, olderThan time.Duration) ([]*db.Send, error)
	GetSettlementFunc      func(ctx context.Context, id wire.MessageID) (*db.Settlement, error)
	ListEventsFunc         func(ctx context.Context, q db.EventQuery) ([]*db.TellerEvent, error)
}

func (m *MockStore) ReserveSend(ctx context.Context, destination uint64, build func(nonce uint64) (*db.Send, error)) (*db.Send, error) {
	if m.ReserveSendFunc != nil {
		return m.ReserveSendFunc(ctx, destination, build)
	}
	send, err := build(1)
	if err != nil {
		return nil, err
	}
	send.Status = db.SendStatusPending
	return send, nil
}

func (m *MockStore) MarkSendDispatched(ctx context.Context, id wire.MessageID, receipt string, evt *db.TellerEvent) error {
	if m.MarkSendDispatchedFunc != nil {
		return m.MarkSendDispatchedFunc(ctx, id, receipt, evt)
	}
	return nil
}

func (m *MockStore) MarkSendFailed(ctx context.Context, id wire.MessageID, errMsg string) error {
	if m.MarkSendFailedFunc != nil {
		return m.MarkSendFailedFunc(ctx, id, errMsg)
	}
	return nil
}

func (m *MockStore) SettleInbound(ctx context.Context, st *db.Settlement, evt *db.TellerEvent, credit func(ctx context.Context) error) (bool, error) {
	if m.SettleInboundFunc != nil {
		return m.SettleInboundFunc(ctx, st, evt, credit)
	}
	if err := credit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MockStore) GetSend(ctx context.Context, id wire.MessageID) (*db.Send, error) {
	if m.GetSendFunc != nil {
		return m.GetSendFunc(ctx, id)
	}
	return nil, db.ErrSendNotFound
}

func (m *MockStore) ListSends(ctx context.Context, limit int) ([]*db.Send, error) {
	if m.ListSendsFunc != nil {
		return m.ListSendsFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockStore) ListPendingSends(ctx context.Context, olderThan time.Duration) ([]*db.Send, error) {
	if m.ListPendingSendsFunc != nil {
		return m.ListPendingSendsFunc(ctx, olderThan)
	}
	return nil, nil
}

func (m *MockStore) GetSettlement(ctx context.Context, id wire.MessageID) (*db.Settlement, error) {
	if m.GetSettlementFunc != nil {
		return m.GetSettlementFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockStore) ListEvents(ctx context.Context, q db.EventQuery) ([]*db.TellerEvent, error) {
	if m.ListEventsFunc != nil {
		return m.ListEventsFunc(ctx, q)
	}
	return nil, nil
}

// MockService is a mock implementation of Service
type MockService struct {
	BridgeFunc           func(ctx context.Context, caller common.Address, shareAmount *big.Int, req BridgeRequest) (wire.MessageID, error)
	DepositAndBridgeFunc func(ctx context.Context, caller common.Address, dep DepositRequest, req BridgeRequest) (wire.MessageID, error)
}

func (m *MockService) Bridge(ctx context.Context, caller common.Address, shareAmount *big.Int, req BridgeRequest) (wire.MessageID, error) {
	if m.BridgeFunc != nil {
		return m.BridgeFunc(ctx, caller, shareAmount, req)
	}
	return wire.MessageID{}, nil
}

func (m *MockService) DepositAndBridge(ctx context.Context, caller common.Address, dep DepositRequest, req BridgeRequest) (wire.MessageID, error) {
	if m.DepositAndBridgeFunc != nil {
		return m.DepositAndBridgeFunc(ctx, caller, dep, req)
	}
	return wire.MessageID{}, nil
}
