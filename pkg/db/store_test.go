package db

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/chainsafe/vault-teller/pkg/db/dao"
	"github.com/chainsafe/vault-teller/pkg/pgutil"
	mghelper "github.com/chainsafe/vault-teller/pkg/pgutil/migrations"
	"github.com/chainsafe/vault-teller/pkg/wire"
)

func setupStore(t *testing.T) (context.Context, *Store) {
	t.Helper()

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	err := mghelper.CreateSchema(ctx, db,
		&dao.ChainDao{},
		&dao.NonceStateDao{},
		&dao.SendDao{},
		&dao.SettlementDao{},
		&dao.TellerEventDao{},
	)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewStore(db)
}

func testMsgID(b byte) wire.MessageID {
	var id wire.MessageID
	for i := range id {
		id[i] = b
	}
	return id
}

func newTestChain(selector uint64) *Chain {
	return &Chain{
		Selector:   selector,
		AllowFrom:  true,
		AllowTo:    true,
		PeerTeller: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		GasLimit:   500000,
		MinGas:     21000,
	}
}

func chainEvent(typ EventType, selector uint64) *TellerEvent {
	return &TellerEvent{Type: typ, ChainSelector: selector}
}

func newTestSend(id wire.MessageID, destination, nonce uint64) *Send {
	return &Send{
		ID:                  id,
		DestinationSelector: destination,
		Nonce:               nonce,
		Caller:              common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Recipient:           common.HexToAddress("0x3333333333333333333333333333333333333333"),
		PeerTeller:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		ShareAmount:         big.NewInt(1000),
		FeeToken:            common.Address{},
		MessageGas:          200000,
	}
}

func assertDecimalEqual(t *testing.T, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Fatalf("decimal mismatch: got %s want %d", got.String(), want)
	}
}

func TestStore_ChainLifecycle(t *testing.T) {
	ctx, s := setupStore(t)

	chain := newTestChain(7)
	if err := s.CreateChain(ctx, chain, chainEvent(EventChainAdded, chain.Selector)); err != nil {
		t.Fatalf("CreateChain() failed: %v", err)
	}

	err := s.CreateChain(ctx, newTestChain(7), chainEvent(EventChainAdded, 7))
	if !errors.Is(err, ErrChainExists) {
		t.Fatalf("expected ErrChainExists, got %v", err)
	}

	got, err := s.GetChain(ctx, 7)
	if err != nil {
		t.Fatalf("GetChain() failed: %v", err)
	}
	if got.Selector != 7 || !got.AllowFrom || !got.AllowTo {
		t.Fatalf("unexpected chain: %+v", got)
	}
	if got.PeerTeller != chain.PeerTeller {
		t.Fatalf("peer teller mismatch: got %s want %s", got.PeerTeller.Hex(), chain.PeerTeller.Hex())
	}

	got.AllowFrom = false
	got.GasLimit = 750000
	if err := s.UpdateChain(ctx, got, chainEvent(EventChainStopMsgsFrom, 7)); err != nil {
		t.Fatalf("UpdateChain() failed: %v", err)
	}

	updated, err := s.GetChain(ctx, 7)
	if err != nil {
		t.Fatalf("GetChain() after update failed: %v", err)
	}
	if updated.AllowFrom {
		t.Fatal("expected allow_from to be false after update")
	}
	if updated.GasLimit != 750000 {
		t.Fatalf("gas limit mismatch: got %d want 750000", updated.GasLimit)
	}

	missing := newTestChain(999)
	err = s.UpdateChain(ctx, missing, chainEvent(EventChainGasLimitUpdated, 999))
	if !errors.Is(err, ErrChainNotFound) {
		t.Fatalf("expected ErrChainNotFound on update, got %v", err)
	}

	if err := s.DeleteChain(ctx, 7, chainEvent(EventChainRemoved, 7)); err != nil {
		t.Fatalf("DeleteChain() failed: %v", err)
	}
	_, err = s.GetChain(ctx, 7)
	if !errors.Is(err, ErrChainNotFound) {
		t.Fatalf("expected ErrChainNotFound after delete, got %v", err)
	}
	err = s.DeleteChain(ctx, 7, chainEvent(EventChainRemoved, 7))
	if !errors.Is(err, ErrChainNotFound) {
		t.Fatalf("expected ErrChainNotFound on second delete, got %v", err)
	}

	events, err := s.ListEvents(ctx, EventQuery{})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	// add, stop-from, remove
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	// newest first
	if events[0].Type != EventChainRemoved {
		t.Fatalf("expected chain_removed first, got %s", events[0].Type)
	}
}

func TestStore_SelectorAboveInt64Range(t *testing.T) {
	ctx, s := setupStore(t)

	// Real selectors can exceed 2^63-1, e.g. Ethereum mainnet's
	// 5009297550715157269 fits but Base's 15971525489660198786 does not.
	const selector = uint64(15971525489660198786)

	if err := s.CreateChain(ctx, newTestChain(selector), chainEvent(EventChainAdded, selector)); err != nil {
		t.Fatalf("CreateChain() failed: %v", err)
	}

	got, err := s.GetChain(ctx, selector)
	if err != nil {
		t.Fatalf("GetChain() failed: %v", err)
	}
	if got.Selector != selector {
		t.Fatalf("selector did not round-trip: got %d want %d", got.Selector, selector)
	}

	chains, err := s.ListChains(ctx)
	if err != nil {
		t.Fatalf("ListChains() failed: %v", err)
	}
	if len(chains) != 1 || chains[0].Selector != selector {
		t.Fatalf("unexpected chains: %+v", chains)
	}
}

func TestStore_ReserveSend_NonceSequence(t *testing.T) {
	ctx, s := setupStore(t)

	build := func(id wire.MessageID, destination uint64) func(nonce uint64) (*Send, error) {
		return func(nonce uint64) (*Send, error) {
			return newTestSend(id, destination, nonce), nil
		}
	}

	first, err := s.ReserveSend(ctx, 10, build(testMsgID(0x01), 10))
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}
	if first.Nonce != 1 {
		t.Fatalf("expected first nonce 1, got %d", first.Nonce)
	}
	if first.Status != SendStatusPending {
		t.Fatalf("expected pending status, got %s", first.Status)
	}

	second, err := s.ReserveSend(ctx, 10, build(testMsgID(0x02), 10))
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}
	if second.Nonce != 2 {
		t.Fatalf("expected second nonce 2, got %d", second.Nonce)
	}

	other, err := s.ReserveSend(ctx, 11, build(testMsgID(0x03), 11))
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}
	if other.Nonce != 1 {
		t.Fatalf("expected independent nonce per destination, got %d", other.Nonce)
	}
}

func TestStore_ReserveSend_BuildErrorRollsBack(t *testing.T) {
	ctx, s := setupStore(t)

	buildErr := errors.New("build rejected")
	_, err := s.ReserveSend(ctx, 10, func(nonce uint64) (*Send, error) {
		return nil, buildErr
	})
	if !errors.Is(err, buildErr) {
		t.Fatalf("expected build error, got %v", err)
	}

	// The nonce increment must roll back with the transaction.
	send, err := s.ReserveSend(ctx, 10, func(nonce uint64) (*Send, error) {
		return newTestSend(testMsgID(0x04), 10, nonce), nil
	})
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}
	if send.Nonce != 1 {
		t.Fatalf("expected nonce 1 after rollback, got %d", send.Nonce)
	}
}

func TestStore_MarkSendDispatched(t *testing.T) {
	ctx, s := setupStore(t)

	send, err := s.ReserveSend(ctx, 10, func(nonce uint64) (*Send, error) {
		return newTestSend(testMsgID(0x05), 10, nonce), nil
	})
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}

	evt := &TellerEvent{
		Type:          EventMessageSent,
		ChainSelector: send.DestinationSelector,
		MessageID:     &send.ID,
		ShareAmount:   send.ShareAmount,
		Recipient:     &send.Recipient,
	}
	if err := s.MarkSendDispatched(ctx, send.ID, "receipt-1", evt); err != nil {
		t.Fatalf("MarkSendDispatched() failed: %v", err)
	}

	got, err := s.GetSend(ctx, send.ID)
	if err != nil {
		t.Fatalf("GetSend() failed: %v", err)
	}
	if got.Status != SendStatusDispatched {
		t.Fatalf("expected dispatched status, got %s", got.Status)
	}
	if got.TransportReceipt == nil || *got.TransportReceipt != "receipt-1" {
		t.Fatalf("unexpected receipt: %v", got.TransportReceipt)
	}
	if got.DispatchedAt == nil {
		t.Fatal("expected dispatched_at to be set")
	}
	if got.ShareAmount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("share amount mismatch: got %s", got.ShareAmount)
	}

	events, err := s.ListEvents(ctx, EventQuery{Type: string(EventMessageSent)})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 message_sent event, got %d", len(events))
	}
	if events[0].MessageID == nil || *events[0].MessageID != send.ID {
		t.Fatalf("event message id mismatch: %v", events[0].MessageID)
	}

	err = s.MarkSendDispatched(ctx, testMsgID(0xff), "receipt-x", evt)
	if !errors.Is(err, ErrSendNotFound) {
		t.Fatalf("expected ErrSendNotFound, got %v", err)
	}
}

func TestStore_MarkSendFailed(t *testing.T) {
	ctx, s := setupStore(t)

	send, err := s.ReserveSend(ctx, 10, func(nonce uint64) (*Send, error) {
		return newTestSend(testMsgID(0x06), 10, nonce), nil
	})
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}

	if err := s.MarkSendFailed(ctx, send.ID, "router unreachable"); err != nil {
		t.Fatalf("MarkSendFailed() failed: %v", err)
	}

	got, err := s.GetSend(ctx, send.ID)
	if err != nil {
		t.Fatalf("GetSend() failed: %v", err)
	}
	if got.Status != SendStatusFailed {
		t.Fatalf("expected failed status, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "router unreachable" {
		t.Fatalf("unexpected error message: %v", got.ErrorMessage)
	}

	// Failed dispatches must not emit message_sent events.
	events, err := s.ListEvents(ctx, EventQuery{Type: string(EventMessageSent)})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no message_sent events, got %d", len(events))
	}
}

func TestStore_ListPendingSends(t *testing.T) {
	ctx, s := setupStore(t)

	send, err := s.ReserveSend(ctx, 10, func(nonce uint64) (*Send, error) {
		return newTestSend(testMsgID(0x07), 10, nonce), nil
	})
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}

	pending, err := s.ListPendingSends(ctx, 0)
	if err != nil {
		t.Fatalf("ListPendingSends() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != send.ID {
		t.Fatalf("expected the pending send, got %+v", pending)
	}

	evt := &TellerEvent{Type: EventMessageSent, ChainSelector: 10, MessageID: &send.ID}
	if err := s.MarkSendDispatched(ctx, send.ID, "receipt-2", evt); err != nil {
		t.Fatalf("MarkSendDispatched() failed: %v", err)
	}

	pending, err = s.ListPendingSends(ctx, 0)
	if err != nil {
		t.Fatalf("ListPendingSends() failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending sends after dispatch, got %d", len(pending))
	}
}

func TestStore_SettleInbound_ExactlyOnce(t *testing.T) {
	ctx, s := setupStore(t)

	st := &Settlement{
		ID:             testMsgID(0x08),
		SourceSelector: 42,
		Sender:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Recipient:      common.HexToAddress("0x3333333333333333333333333333333333333333"),
		ShareAmount:    big.NewInt(500),
	}
	evt := &TellerEvent{
		Type:          EventMessageReceived,
		ChainSelector: st.SourceSelector,
		MessageID:     &st.ID,
		ShareAmount:   st.ShareAmount,
		Recipient:     &st.Recipient,
	}

	credits := 0
	credit := func(ctx context.Context) error {
		credits++
		return nil
	}

	settled, err := s.SettleInbound(ctx, st, evt, credit)
	if err != nil {
		t.Fatalf("SettleInbound() failed: %v", err)
	}
	if !settled {
		t.Fatal("expected first delivery to settle")
	}
	if credits != 1 {
		t.Fatalf("expected 1 credit, got %d", credits)
	}

	settled, err = s.SettleInbound(ctx, st, evt, credit)
	if err != nil {
		t.Fatalf("SettleInbound() on duplicate failed: %v", err)
	}
	if settled {
		t.Fatal("expected duplicate delivery to be a no-op")
	}
	if credits != 1 {
		t.Fatalf("duplicate delivery must not credit again, got %d credits", credits)
	}

	events, err := s.ListEvents(ctx, EventQuery{Type: string(EventMessageReceived)})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 message_received event, got %d", len(events))
	}

	got, err := s.GetSettlement(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetSettlement() failed: %v", err)
	}
	if got == nil || got.ID != st.ID {
		t.Fatalf("unexpected settlement: %+v", got)
	}
	if got.ShareAmount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("share amount mismatch: got %s", got.ShareAmount)
	}
}

func TestStore_SettleInbound_CreditFailureRollsBack(t *testing.T) {
	ctx, s := setupStore(t)

	st := &Settlement{
		ID:             testMsgID(0x09),
		SourceSelector: 42,
		Sender:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Recipient:      common.HexToAddress("0x3333333333333333333333333333333333333333"),
		ShareAmount:    big.NewInt(500),
	}
	evt := &TellerEvent{Type: EventMessageReceived, ChainSelector: 42, MessageID: &st.ID}

	creditErr := errors.New("vault unavailable")
	_, err := s.SettleInbound(ctx, st, evt, func(ctx context.Context) error {
		return creditErr
	})
	if !errors.Is(err, creditErr) {
		t.Fatalf("expected credit error, got %v", err)
	}

	// The settlement row must roll back so redelivery can succeed.
	got, err := s.GetSettlement(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetSettlement() failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no settlement after rollback, got %+v", got)
	}

	settled, err := s.SettleInbound(ctx, st, evt, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("SettleInbound() retry failed: %v", err)
	}
	if !settled {
		t.Fatal("expected retry to settle after rollback")
	}
}

func TestStore_ListEvents_Filters(t *testing.T) {
	ctx, s := setupStore(t)

	if err := s.CreateChain(ctx, newTestChain(1), chainEvent(EventChainAdded, 1)); err != nil {
		t.Fatalf("CreateChain() failed: %v", err)
	}
	if err := s.CreateChain(ctx, newTestChain(2), chainEvent(EventChainAdded, 2)); err != nil {
		t.Fatalf("CreateChain() failed: %v", err)
	}
	if err := s.DeleteChain(ctx, 2, chainEvent(EventChainRemoved, 2)); err != nil {
		t.Fatalf("DeleteChain() failed: %v", err)
	}

	byType, err := s.ListEvents(ctx, EventQuery{Type: string(EventChainAdded)})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(byType) != 2 {
		t.Fatalf("expected 2 chain_added events, got %d", len(byType))
	}

	sel := uint64(2)
	bySelector, err := s.ListEvents(ctx, EventQuery{Selector: &sel})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(bySelector) != 2 {
		t.Fatalf("expected 2 events for selector 2, got %d", len(bySelector))
	}

	limited, err := s.ListEvents(ctx, EventQuery{Limit: 1})
	if err != nil {
		t.Fatalf("ListEvents() failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 event with limit, got %d", len(limited))
	}
}

func TestStore_GetChainStats(t *testing.T) {
	ctx, s := setupStore(t)

	for i, amount := range []int64{100, 250} {
		send, err := s.ReserveSend(ctx, 10, func(nonce uint64) (*Send, error) {
			sd := newTestSend(testMsgID(byte(0x10+i)), 10, nonce)
			sd.ShareAmount = big.NewInt(amount)
			return sd, nil
		})
		if err != nil {
			t.Fatalf("ReserveSend() failed: %v", err)
		}
		evt := &TellerEvent{Type: EventMessageSent, ChainSelector: 10, MessageID: &send.ID}
		if err := s.MarkSendDispatched(ctx, send.ID, "r", evt); err != nil {
			t.Fatalf("MarkSendDispatched() failed: %v", err)
		}
	}

	// A pending send must not count toward dispatched totals.
	_, err := s.ReserveSend(ctx, 10, func(nonce uint64) (*Send, error) {
		sd := newTestSend(testMsgID(0x20), 10, nonce)
		sd.ShareAmount = big.NewInt(9999)
		return sd, nil
	})
	if err != nil {
		t.Fatalf("ReserveSend() failed: %v", err)
	}

	st := &Settlement{
		ID:             testMsgID(0x21),
		SourceSelector: 10,
		Sender:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Recipient:      common.HexToAddress("0x3333333333333333333333333333333333333333"),
		ShareAmount:    big.NewInt(75),
	}
	evt := &TellerEvent{Type: EventMessageReceived, ChainSelector: 10, MessageID: &st.ID}
	if _, err := s.SettleInbound(ctx, st, evt, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("SettleInbound() failed: %v", err)
	}

	stats, err := s.GetChainStats(ctx, 10)
	if err != nil {
		t.Fatalf("GetChainStats() failed: %v", err)
	}
	if stats.SendCount != 2 {
		t.Fatalf("expected 2 dispatched sends, got %d", stats.SendCount)
	}
	assertDecimalEqual(t, stats.SentShares, 350)
	if stats.SettlementCount != 1 {
		t.Fatalf("expected 1 settlement, got %d", stats.SettlementCount)
	}
	assertDecimalEqual(t, stats.ReceivedShares, 75)
}
