// Package teller moves vault shares between chains: it burns shares
// locally, dispatches a message describing them to a peer teller on the
// destination chain, and settles inbound messages from peers by
// crediting shares exactly once.
package teller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/vault-teller/internal/metrics"
	apperrors "github.com/chainsafe/vault-teller/pkg/app/errors"
	"github.com/chainsafe/vault-teller/pkg/config"
	"github.com/chainsafe/vault-teller/pkg/db"
	"github.com/chainsafe/vault-teller/pkg/registry"
	"github.com/chainsafe/vault-teller/pkg/wire"
)

var (
	ErrZeroShareAmount = errors.New("share amount must be positive")
	ErrPayloadTooLarge = errors.New("payload exceeds size limit")
)

// Vault is the share-accounting client the teller drives. Share balances
// live in the vault contract, not in the teller database.
type Vault interface {
	// Deposit pulls amount of asset from the receiver and mints vault
	// shares to them, returning the minted share count. The vault itself
	// rejects the deposit when fewer than minimumMint shares would mint.
	Deposit(ctx context.Context, asset common.Address, amount, minimumMint *big.Int, receiver common.Address) (*big.Int, error)
	// Burn destroys shareAmount shares held by caller.
	Burn(ctx context.Context, caller common.Address, shareAmount *big.Int) error
	// Credit mints shareAmount shares to recipient. Used for inbound
	// settlement and to restore a balance after a failed dispatch.
	Credit(ctx context.Context, recipient common.Address, shareAmount *big.Int) error
}

// OutboundMessage is a cross-chain message handed to the transport.
// ID and Nonce are assigned when the send is recorded.
type OutboundMessage struct {
	ID                  wire.MessageID
	Nonce               uint64
	DestinationSelector uint64
	// Receiver is the peer teller contract on the destination chain.
	Receiver   common.Address
	Payload    []byte
	FeeToken   common.Address
	FeeAmount  *big.Int
	MessageGas uint64
}

// Transport is the cross-chain message network client.
type Transport interface {
	// QuoteFee prices delivery of the message in FeeToken units. Called
	// before any state changes; the quote is recorded on the send.
	QuoteFee(ctx context.Context, msg *OutboundMessage) (*big.Int, error)
	// Send hands the message to the network and returns an opaque
	// transport receipt.
	Send(ctx context.Context, msg *OutboundMessage) (string, error)
}

// ChainRegistry resolves registry entries for admission decisions.
type ChainRegistry interface {
	Get(ctx context.Context, selector uint64) (*db.Chain, error)
}

// Store is the narrow persistence interface for the teller core, the
// receiver and the sweeper.
type Store interface {
	ReserveSend(ctx context.Context, destination uint64, build func(nonce uint64) (*db.Send, error)) (*db.Send, error)
	MarkSendDispatched(ctx context.Context, id wire.MessageID, receipt string, evt *db.TellerEvent) error
	MarkSendFailed(ctx context.Context, id wire.MessageID, errMsg string) error
	SettleInbound(ctx context.Context, st *db.Settlement, evt *db.TellerEvent, credit func(ctx context.Context) error) (bool, error)
	GetSend(ctx context.Context, id wire.MessageID) (*db.Send, error)
	ListSends(ctx context.Context, limit int) ([]*db.Send, error)
	ListPendingSends(ctx context.Context, olderThan time.Duration) ([]*db.Send, error)
	GetSettlement(ctx context.Context, id wire.MessageID) (*db.Settlement, error)
	ListEvents(ctx context.Context, q db.EventQuery) ([]*db.TellerEvent, error)
}

// BridgeRequest describes where and how to deliver burned shares.
type BridgeRequest struct {
	ChainSelector       uint64
	DestinationReceiver common.Address
	FeeToken            common.Address
	MessageGas          uint64
	Data                []byte
}

// DepositRequest funds a bridge from an underlying asset deposit.
type DepositRequest struct {
	Asset       common.Address
	Amount      *big.Int
	MinimumMint *big.Int
}

// Service is the bridge-facing surface of the teller.
type Service interface {
	Bridge(ctx context.Context, caller common.Address, shareAmount *big.Int, req BridgeRequest) (wire.MessageID, error)
	DepositAndBridge(ctx context.Context, caller common.Address, dep DepositRequest, req BridgeRequest) (wire.MessageID, error)
}

// Teller orchestrates outbound bridge dispatches.
type Teller struct {
	localSelector uint64
	localTeller   common.Address
	maxPayload    int

	store     Store
	registry  ChainRegistry
	vault     Vault
	transport Transport
	gas       registry.GasPolicy
	logger    *zap.Logger
}

// NewTeller creates the bridge orchestrator.
func NewTeller(
	cfg config.TellerConfig,
	store Store,
	reg ChainRegistry,
	vault Vault,
	transport Transport,
	logger *zap.Logger,
) *Teller {
	return &Teller{
		localSelector: cfg.LocalChainSelector,
		localTeller:   common.HexToAddress(cfg.LocalTellerAddress),
		maxPayload:    cfg.MaxPayloadBytes,
		store:         store,
		registry:      reg,
		vault:         vault,
		transport:     transport,
		logger:        logger,
	}
}

// Bridge burns shareAmount shares from caller and dispatches a message
// delivering them to req.DestinationReceiver on the destination chain.
//
// The send intent is committed before dispatch: the destination nonce is
// reserved and the pending send row inserted in one transaction, then
// the transport is invoked. On transport failure the burned shares are
// credited back and the row is marked failed. A crash between commit and
// dispatch leaves the row pending for the sweeper to surface; nothing
// retries automatically because the transport may have accepted the
// message.
func (t *Teller) Bridge(ctx context.Context, caller common.Address, shareAmount *big.Int, req BridgeRequest) (wire.MessageID, error) {
	chain, err := t.admitOutbound(ctx, req)
	if err != nil {
		return wire.MessageID{}, err
	}
	if shareAmount == nil || shareAmount.Sign() <= 0 {
		return wire.MessageID{}, apperrors.BadRequestError(ErrZeroShareAmount, "share amount must be positive")
	}

	payload, err := wire.EncodePayload(shareAmount, req.DestinationReceiver, req.Data)
	if err != nil {
		return wire.MessageID{}, apperrors.BadRequestError(err, "invalid payload")
	}
	if len(payload) > t.maxPayload {
		metrics.AdmissionRejections.WithLabelValues("bridge", "payload_too_large").Inc()
		return wire.MessageID{}, apperrors.BadRequestError(ErrPayloadTooLarge, "payload exceeds size limit")
	}

	msg := &OutboundMessage{
		DestinationSelector: chain.Selector,
		Receiver:            chain.PeerTeller,
		Payload:             payload,
		FeeToken:            req.FeeToken,
		MessageGas:          req.MessageGas,
	}
	fee, err := t.transport.QuoteFee(ctx, msg)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("transport", "quote_fee").Inc()
		return wire.MessageID{}, apperrors.DependencyFailureError(
			fmt.Errorf("failed to quote transport fee: %w", err), "transport fee quote failed")
	}
	msg.FeeAmount = fee

	// Shares leave the caller's balance before any dispatch attempt.
	if err := t.vault.Burn(ctx, caller, shareAmount); err != nil {
		metrics.ErrorsTotal.WithLabelValues("vault", "burn").Inc()
		return wire.MessageID{}, apperrors.DependencyFailureError(
			fmt.Errorf("failed to burn shares: %w", err), "share burn failed")
	}

	send, err := t.store.ReserveSend(ctx, chain.Selector, func(nonce uint64) (*db.Send, error) {
		id := wire.DeriveID(t.localSelector, t.localTeller, nonce, payload)
		msg.ID = id
		msg.Nonce = nonce
		return &db.Send{
			ID:                  id,
			DestinationSelector: chain.Selector,
			Nonce:               nonce,
			Caller:              caller,
			Recipient:           req.DestinationReceiver,
			PeerTeller:          chain.PeerTeller,
			ShareAmount:         shareAmount,
			FeeToken:            req.FeeToken,
			FeeAmount:           fee,
			MessageGas:          req.MessageGas,
		}, nil
	})
	if err != nil {
		// Burned but never recorded; restore the balance.
		t.creditBack(ctx, caller, shareAmount, wire.MessageID{})
		metrics.ErrorsTotal.WithLabelValues("store", "reserve_send").Inc()
		return wire.MessageID{}, fmt.Errorf("failed to record send: %w", err)
	}

	dest := strconv.FormatUint(chain.Selector, 10)
	start := time.Now()
	receipt, err := t.transport.Send(ctx, msg)
	if err != nil {
		t.creditBack(ctx, caller, shareAmount, send.ID)
		if markErr := t.store.MarkSendFailed(ctx, send.ID, err.Error()); markErr != nil {
			t.logger.Error("Failed to record dispatch failure",
				zap.String("message_id", send.ID.Hex()),
				zap.Error(markErr))
		}
		metrics.ErrorsTotal.WithLabelValues("transport", "send").Inc()
		return wire.MessageID{}, apperrors.DependencyFailureError(
			fmt.Errorf("failed to dispatch message %s: %w", send.ID.Hex(), err), "message dispatch failed")
	}
	metrics.DispatchDuration.WithLabelValues(dest).Observe(time.Since(start).Seconds())

	evt := &db.TellerEvent{
		Type:          db.EventMessageSent,
		ChainSelector: chain.Selector,
		MessageID:     &send.ID,
		ShareAmount:   shareAmount,
		Recipient:     &req.DestinationReceiver,
		PeerTeller:    &chain.PeerTeller,
	}
	if err := t.store.MarkSendDispatched(ctx, send.ID, receipt, evt); err != nil {
		// The message is on the wire. The row stays pending and the
		// sweeper surfaces it; failing the call here would invite a
		// second burn for the same intent.
		metrics.ErrorsTotal.WithLabelValues("store", "mark_dispatched").Inc()
		t.logger.Error("Failed to mark send dispatched",
			zap.String("message_id", send.ID.Hex()),
			zap.String("transport_receipt", receipt),
			zap.Error(err))
	}

	metrics.MessagesSent.WithLabelValues(dest).Inc()
	metrics.ShareAmount.WithLabelValues("sent").Observe(shareFloat(shareAmount))
	t.logger.Info("Message dispatched",
		zap.String("message_id", send.ID.Hex()),
		zap.Uint64("destination_selector", chain.Selector),
		zap.Uint64("nonce", send.Nonce),
		zap.String("share_amount", shareAmount.String()),
		zap.String("recipient", req.DestinationReceiver.Hex()),
		zap.String("transport_receipt", receipt))
	return send.ID, nil
}

// DepositAndBridge deposits an underlying asset into the vault and
// bridges the minted shares in one call. Admission and the gas window
// are checked before the deposit so an undeliverable request cannot
// consume the asset.
func (t *Teller) DepositAndBridge(ctx context.Context, caller common.Address, dep DepositRequest, req BridgeRequest) (wire.MessageID, error) {
	if _, err := t.admitOutbound(ctx, req); err != nil {
		return wire.MessageID{}, err
	}
	if dep.Amount == nil || dep.Amount.Sign() <= 0 {
		return wire.MessageID{}, apperrors.BadRequestError(ErrZeroShareAmount, "deposit amount must be positive")
	}

	minted, err := t.vault.Deposit(ctx, dep.Asset, dep.Amount, dep.MinimumMint, caller)
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("vault", "deposit").Inc()
		return wire.MessageID{}, apperrors.DependencyFailureError(
			fmt.Errorf("failed to deposit: %w", err), "vault deposit failed")
	}
	t.logger.Info("Deposit minted shares",
		zap.String("caller", caller.Hex()),
		zap.String("asset", dep.Asset.Hex()),
		zap.String("amount", dep.Amount.String()),
		zap.String("minted", minted.String()))

	return t.Bridge(ctx, caller, minted, req)
}

// admitOutbound resolves the destination chain and applies the outbound
// admission and gas-window checks shared by both bridge entry points.
func (t *Teller) admitOutbound(ctx context.Context, req BridgeRequest) (*db.Chain, error) {
	chain, err := t.registry.Get(ctx, req.ChainSelector)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidChain) {
			metrics.AdmissionRejections.WithLabelValues("bridge", "unknown_chain").Inc()
		}
		return nil, err
	}
	if err := registry.CheckOutbound(chain); err != nil {
		metrics.AdmissionRejections.WithLabelValues("bridge", "not_allowed_to").Inc()
		return nil, apperrors.ForbiddenError(err, "messages to chain not allowed")
	}
	if err := t.gas.Validate(chain, req.MessageGas); err != nil {
		metrics.AdmissionRejections.WithLabelValues("bridge", "gas_window").Inc()
		return nil, apperrors.BadRequestError(err, "message gas outside chain window")
	}
	return chain, nil
}

// creditBack restores a burned balance after dispatch could not
// complete. A credit failure here strands the shares until an operator
// intervenes, so it is logged at error level with everything needed to
// replay it.
func (t *Teller) creditBack(ctx context.Context, caller common.Address, shareAmount *big.Int, id wire.MessageID) {
	if err := t.vault.Credit(ctx, caller, shareAmount); err != nil {
		metrics.ErrorsTotal.WithLabelValues("vault", "credit_back").Inc()
		t.logger.Error("Failed to credit back burned shares",
			zap.String("caller", caller.Hex()),
			zap.String("share_amount", shareAmount.String()),
			zap.String("message_id", id.Hex()),
			zap.Error(err))
	}
}

func shareFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
