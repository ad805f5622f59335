package teller

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/vault-teller/internal/metrics"
	apperrors "github.com/chainsafe/vault-teller/pkg/app/errors"
	"github.com/chainsafe/vault-teller/pkg/db"
	"github.com/chainsafe/vault-teller/pkg/registry"
	"github.com/chainsafe/vault-teller/pkg/wire"
)

// InboundMessage is a delivery from the transport's relayer. It carries
// the metadata the sending teller derived its message id from; the
// receiver recomputes the id locally, so a relayer cannot claim one
// message's identity for another's content.
type InboundMessage struct {
	SourceSelector uint64
	Sender         common.Address
	Nonce          uint64
	Payload        []byte
}

// ID derives the message id from the delivery metadata.
func (m *InboundMessage) ID() wire.MessageID {
	return wire.DeriveID(m.SourceSelector, m.Sender, m.Nonce, m.Payload)
}

// Receiver settles inbound messages exactly once. Deliveries arrive
// at-least-once and unordered; replays are absorbed silently.
type Receiver struct {
	store    Store
	registry ChainRegistry
	vault    Vault
	logger   *zap.Logger
}

// NewReceiver creates the inbound settlement handler.
func NewReceiver(store Store, reg ChainRegistry, vault Vault, logger *zap.Logger) *Receiver {
	return &Receiver{
		store:    store,
		registry: reg,
		vault:    vault,
		logger:   logger,
	}
}

// OnMessage admits, decodes and settles one inbound delivery. The
// settlement insert, the share credit and the event row commit in one
// transaction: a failure anywhere rolls everything back and leaves the
// id unseen, so transport redelivery can retry. A duplicate id is a
// no-op, never an error.
func (rc *Receiver) OnMessage(ctx context.Context, msg *InboundMessage) error {
	id := msg.ID()

	chain, err := rc.registry.Get(ctx, msg.SourceSelector)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidChain) {
			metrics.AdmissionRejections.WithLabelValues("on_message", "unknown_chain").Inc()
			return apperrors.ForbiddenError(
				fmt.Errorf("chain %d: %w", msg.SourceSelector, registry.ErrMessagesNotAllowedFrom),
				"messages from chain not allowed")
		}
		return err
	}
	if err := registry.CheckInbound(chain, msg.Sender); err != nil {
		reason := "not_allowed_from"
		if errors.Is(err, registry.ErrMessagesNotAllowedFromSender) {
			reason = "untrusted_sender"
		}
		metrics.AdmissionRejections.WithLabelValues("on_message", reason).Inc()
		return apperrors.ForbiddenError(err, "message rejected")
	}

	// Decode before touching state; a malformed payload must leave no
	// trace of the id.
	payload, err := wire.DecodePayload(msg.Payload)
	if err != nil {
		metrics.AdmissionRejections.WithLabelValues("on_message", "bad_payload").Inc()
		return apperrors.BadRequestError(err, "invalid payload")
	}

	st := &db.Settlement{
		ID:             id,
		SourceSelector: msg.SourceSelector,
		Sender:         msg.Sender,
		Recipient:      payload.Recipient,
		ShareAmount:    payload.ShareAmount,
	}
	evt := &db.TellerEvent{
		Type:          db.EventMessageReceived,
		ChainSelector: msg.SourceSelector,
		MessageID:     &id,
		ShareAmount:   payload.ShareAmount,
		Recipient:     &payload.Recipient,
		PeerTeller:    &msg.Sender,
	}
	settled, err := rc.store.SettleInbound(ctx, st, evt, func(ctx context.Context) error {
		return rc.vault.Credit(ctx, payload.Recipient, payload.ShareAmount)
	})
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("receiver", "settle").Inc()
		return fmt.Errorf("failed to settle message %s: %w", id.Hex(), err)
	}

	source := strconv.FormatUint(msg.SourceSelector, 10)
	if !settled {
		metrics.DuplicateDeliveries.WithLabelValues(source).Inc()
		rc.logger.Info("Duplicate delivery absorbed",
			zap.String("message_id", id.Hex()),
			zap.Uint64("source_selector", msg.SourceSelector))
		return nil
	}

	metrics.MessagesReceived.WithLabelValues(source).Inc()
	metrics.ShareAmount.WithLabelValues("received").Observe(shareFloat(payload.ShareAmount))
	rc.logger.Info("Message settled",
		zap.String("message_id", id.Hex()),
		zap.Uint64("source_selector", msg.SourceSelector),
		zap.Uint64("nonce", msg.Nonce),
		zap.String("share_amount", payload.ShareAmount.String()),
		zap.String("recipient", payload.Recipient.Hex()))
	return nil
}
