package db

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/vault-teller/pkg/wire"
)

// Chain is a registry entry describing the trust relationship with one
// remote chain, keyed by its selector.
type Chain struct {
	Selector   uint64
	AllowFrom  bool
	AllowTo    bool
	PeerTeller common.Address
	GasLimit   uint64
	MinGas     uint64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SendStatus represents the state of an outbound send record
type SendStatus string

const (
	// SendStatusPending means the send intent is recorded but dispatch has
	// not completed. Stuck pending rows indicate a crash between burn and
	// dispatch and are surfaced by the sweeper.
	SendStatusPending SendStatus = "pending"
	// SendStatusDispatched means the transport accepted the message.
	SendStatusDispatched SendStatus = "dispatched"
	// SendStatusFailed means dispatch failed and the burned shares were
	// credited back to the caller.
	SendStatusFailed SendStatus = "failed"
)

// Send is an outbound message record
type Send struct {
	ID                  wire.MessageID
	DestinationSelector uint64
	Nonce               uint64
	Caller              common.Address
	Recipient           common.Address
	PeerTeller          common.Address
	ShareAmount         *big.Int
	FeeToken            common.Address
	FeeAmount           *big.Int
	MessageGas          uint64
	Status              SendStatus
	TransportReceipt    *string
	ErrorMessage        *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DispatchedAt        *time.Time
}

// Settlement marks an inbound message id as settled. The primary key on
// the id is the durable check-and-set used for replay absorption.
type Settlement struct {
	ID             wire.MessageID
	SourceSelector uint64
	Sender         common.Address
	Recipient      common.Address
	ShareAmount    *big.Int
	SettledAt      time.Time
}

// EventType identifies a teller event record
type EventType string

const (
	EventMessageSent          EventType = "message_sent"
	EventMessageReceived      EventType = "message_received"
	EventChainAdded           EventType = "chain_added"
	EventChainRemoved         EventType = "chain_removed"
	EventChainAllowMsgsFrom   EventType = "chain_allow_messages_from"
	EventChainAllowMsgsTo     EventType = "chain_allow_messages_to"
	EventChainStopMsgsFrom    EventType = "chain_stop_messages_from"
	EventChainStopMsgsTo      EventType = "chain_stop_messages_to"
	EventChainGasLimitUpdated EventType = "chain_set_gas_limit"
)

// TellerEvent is one row of the append-only observer log. Indexers and
// relayers consume these via the events API; field naming is a
// compatibility surface and must not change once released.
type TellerEvent struct {
	ID            int64
	Type          EventType
	ChainSelector uint64
	MessageID     *wire.MessageID
	ShareAmount   *big.Int
	Recipient     *common.Address
	PeerTeller    *common.Address
	GasLimit      *uint64
	CreatedAt     time.Time
}

// EventQuery filters the event log.
type EventQuery struct {
	Type     string
	Selector *uint64
	Limit    int
}

// Postgres has no unsigned 64-bit integer type. Selectors round-trip
// through BIGINT via two's-complement cast, so selectors above 2^63-1
// show as negative in raw SQL but survive unchanged.
func selectorToDB(s uint64) int64   { return int64(s) }
func selectorFromDB(v int64) uint64 { return uint64(v) }

func amountToDB(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func amountFromDB(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
