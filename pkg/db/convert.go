package db

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/vault-teller/pkg/db/dao"
	"github.com/chainsafe/vault-teller/pkg/wire"
)

func toChainDao(c *Chain) *dao.ChainDao {
	return &dao.ChainDao{
		Selector:   selectorToDB(c.Selector),
		AllowFrom:  c.AllowFrom,
		AllowTo:    c.AllowTo,
		PeerTeller: c.PeerTeller.Hex(),
		GasLimit:   int64(c.GasLimit),
		MinGas:     int64(c.MinGas),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func toChain(d *dao.ChainDao) *Chain {
	return &Chain{
		Selector:   selectorFromDB(d.Selector),
		AllowFrom:  d.AllowFrom,
		AllowTo:    d.AllowTo,
		PeerTeller: common.HexToAddress(d.PeerTeller),
		GasLimit:   uint64(d.GasLimit),
		MinGas:     uint64(d.MinGas),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func toSendDao(s *Send) *dao.SendDao {
	d := &dao.SendDao{
		ID:                  s.ID.Hex(),
		DestinationSelector: selectorToDB(s.DestinationSelector),
		Nonce:               int64(s.Nonce),
		Caller:              s.Caller.Hex(),
		Recipient:           s.Recipient.Hex(),
		PeerTeller:          s.PeerTeller.Hex(),
		ShareAmount:         amountToDB(s.ShareAmount),
		FeeToken:            s.FeeToken.Hex(),
		MessageGas:          int64(s.MessageGas),
		Status:              string(s.Status),
		TransportReceipt:    s.TransportReceipt,
		ErrorMessage:        s.ErrorMessage,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
		DispatchedAt:        s.DispatchedAt,
	}
	if s.FeeAmount != nil {
		fee := s.FeeAmount.String()
		d.FeeAmount = &fee
	}
	return d
}

func toSend(d *dao.SendDao) (*Send, error) {
	id, err := wire.ParseMessageID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid send id %q: %w", d.ID, err)
	}
	s := &Send{
		ID:                  id,
		DestinationSelector: selectorFromDB(d.DestinationSelector),
		Nonce:               uint64(d.Nonce),
		Caller:              common.HexToAddress(d.Caller),
		Recipient:           common.HexToAddress(d.Recipient),
		PeerTeller:          common.HexToAddress(d.PeerTeller),
		ShareAmount:         amountFromDB(d.ShareAmount),
		FeeToken:            common.HexToAddress(d.FeeToken),
		MessageGas:          uint64(d.MessageGas),
		Status:              SendStatus(d.Status),
		TransportReceipt:    d.TransportReceipt,
		ErrorMessage:        d.ErrorMessage,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
		DispatchedAt:        d.DispatchedAt,
	}
	if d.FeeAmount != nil {
		s.FeeAmount = amountFromDB(*d.FeeAmount)
	}
	return s, nil
}

func toSettlementDao(st *Settlement) *dao.SettlementDao {
	return &dao.SettlementDao{
		ID:             st.ID.Hex(),
		SourceSelector: selectorToDB(st.SourceSelector),
		Sender:         st.Sender.Hex(),
		Recipient:      st.Recipient.Hex(),
		ShareAmount:    amountToDB(st.ShareAmount),
		SettledAt:      st.SettledAt,
	}
}

func toSettlement(d *dao.SettlementDao) (*Settlement, error) {
	id, err := wire.ParseMessageID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid settlement id %q: %w", d.ID, err)
	}
	return &Settlement{
		ID:             id,
		SourceSelector: selectorFromDB(d.SourceSelector),
		Sender:         common.HexToAddress(d.Sender),
		Recipient:      common.HexToAddress(d.Recipient),
		ShareAmount:    amountFromDB(d.ShareAmount),
		SettledAt:      d.SettledAt,
	}, nil
}

func toEventDao(e *TellerEvent) *dao.TellerEventDao {
	d := &dao.TellerEventDao{
		EventType:     string(e.Type),
		ChainSelector: selectorToDB(e.ChainSelector),
		CreatedAt:     e.CreatedAt,
	}
	if e.MessageID != nil {
		id := e.MessageID.Hex()
		d.MessageID = &id
	}
	if e.ShareAmount != nil {
		amt := e.ShareAmount.String()
		d.ShareAmount = &amt
	}
	if e.Recipient != nil {
		r := e.Recipient.Hex()
		d.Recipient = &r
	}
	if e.PeerTeller != nil {
		p := e.PeerTeller.Hex()
		d.PeerTeller = &p
	}
	if e.GasLimit != nil {
		g := int64(*e.GasLimit)
		d.GasLimit = &g
	}
	return d
}

func toEvent(d *dao.TellerEventDao) (*TellerEvent, error) {
	e := &TellerEvent{
		ID:            d.ID,
		Type:          EventType(d.EventType),
		ChainSelector: selectorFromDB(d.ChainSelector),
		CreatedAt:     d.CreatedAt,
	}
	if d.MessageID != nil {
		id, err := wire.ParseMessageID(*d.MessageID)
		if err != nil {
			return nil, fmt.Errorf("invalid event message id %q: %w", *d.MessageID, err)
		}
		e.MessageID = &id
	}
	if d.ShareAmount != nil {
		e.ShareAmount = amountFromDB(*d.ShareAmount)
	}
	if d.Recipient != nil {
		r := common.HexToAddress(*d.Recipient)
		e.Recipient = &r
	}
	if d.PeerTeller != nil {
		p := common.HexToAddress(*d.PeerTeller)
		e.PeerTeller = &p
	}
	if d.GasLimit != nil {
		g := uint64(*d.GasLimit)
		e.GasLimit = &g
	}
	return e, nil
}
