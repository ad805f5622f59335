package registry

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/vault-teller/pkg/db"
)

var (
	ErrMessagesNotAllowedFrom       = errors.New("messages from chain not allowed")
	ErrMessagesNotAllowedFromSender = errors.New("messages from sender not allowed")
	ErrMessagesNotAllowedTo         = errors.New("messages to chain not allowed")
)

// CheckOutbound reports whether the chain currently accepts outbound
// sends.
func CheckOutbound(chain *db.Chain) error {
	if !chain.AllowTo {
		return fmt.Errorf("chain %d: %w", chain.Selector, ErrMessagesNotAllowedTo)
	}
	return nil
}

// CheckInbound reports whether a message from sender on the given chain
// may be settled. Only the registered peer teller is a trusted sender;
// any other contract on an allowed chain is rejected.
func CheckInbound(chain *db.Chain, sender common.Address) error {
	if !chain.AllowFrom {
		return fmt.Errorf("chain %d: %w", chain.Selector, ErrMessagesNotAllowedFrom)
	}
	if sender != chain.PeerTeller {
		return fmt.Errorf("chain %d sender %s: %w", chain.Selector, sender.Hex(), ErrMessagesNotAllowedFromSender)
	}
	return nil
}
