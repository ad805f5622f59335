// Package wire defines the byte-level message format exchanged between
// teller instances across chains.
//
// Both ends of a bridge must agree on this layout bit for bit, so it is
// frozen here rather than derived from Go struct encoding:
//
// Payload:
//
//	byte  0       version (currently 0x01)
//	bytes 1..32   share amount, uint256 big-endian
//	bytes 33..52  recipient, 20-byte address
//	bytes 53..    opaque application data (may be empty)
//
// Message id:
//
//	keccak256(sourceSelector_u64be || sender_20b || nonce_u64be || keccak256(payload))
//
// The id is deterministic, collision-resistant across chains and senders,
// and recomputable by the receiving teller from delivery metadata alone.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// PayloadVersion is the current payload format version byte.
const PayloadVersion = 0x01

// payloadHeaderLen is version + amount + recipient.
const payloadHeaderLen = 1 + 32 + 20

var (
	// ErrShortPayload is returned when a payload is too short to contain
	// the fixed header.
	ErrShortPayload = errors.New("payload shorter than fixed header")
	// ErrPayloadVersion is returned for an unrecognized version byte.
	ErrPayloadVersion = errors.New("unsupported payload version")
	// ErrAmountOverflow is returned when a share amount does not fit in
	// an unsigned 256-bit integer.
	ErrAmountOverflow = errors.New("share amount exceeds 256 bits")
)

// MessageID is the 32-byte identity of a cross-chain message.
type MessageID [32]byte

// Hex renders the id as a 0x-prefixed hex string, the canonical form used
// in APIs, logs, and the database.
func (id MessageID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id MessageID) String() string { return id.Hex() }

// IsZero reports whether the id is the zero value.
func (id MessageID) IsZero() bool { return id == MessageID{} }

// ParseMessageID parses the canonical 0x-hex form back into a MessageID.
func ParseMessageID(s string) (MessageID, error) {
	var id MessageID
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid message id hex: %w", err)
	}
	if len(raw) != 32 {
		return MessageID{}, fmt.Errorf("invalid message id length: expected 32 bytes, got %d", len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// Payload is the decoded form of a teller message payload.
type Payload struct {
	ShareAmount *big.Int
	Recipient   common.Address
	Data        []byte
}

// EncodePayload serializes a share transfer into the fixed wire layout.
func EncodePayload(shareAmount *big.Int, recipient common.Address, data []byte) ([]byte, error) {
	if shareAmount == nil || shareAmount.Sign() < 0 {
		return nil, fmt.Errorf("invalid share amount: %v", shareAmount)
	}
	if shareAmount.BitLen() > 256 {
		return nil, ErrAmountOverflow
	}

	buf := make([]byte, payloadHeaderLen+len(data))
	buf[0] = PayloadVersion
	shareAmount.FillBytes(buf[1:33])
	copy(buf[33:53], recipient.Bytes())
	copy(buf[53:], data)
	return buf, nil
}

// DecodePayload parses the fixed wire layout, the exact inverse of
// EncodePayload.
func DecodePayload(raw []byte) (*Payload, error) {
	if len(raw) < payloadHeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(raw))
	}
	if raw[0] != PayloadVersion {
		return nil, fmt.Errorf("%w: 0x%02x", ErrPayloadVersion, raw[0])
	}

	p := &Payload{
		ShareAmount: new(big.Int).SetBytes(raw[1:33]),
		Recipient:   common.BytesToAddress(raw[33:53]),
	}
	if len(raw) > payloadHeaderLen {
		p.Data = make([]byte, len(raw)-payloadHeaderLen)
		copy(p.Data, raw[payloadHeaderLen:])
	}
	return p, nil
}

// DeriveID computes the message id for an outbound send. The nonce is the
// per-destination monotonic counter assigned when the send is recorded,
// which makes ids unique even for byte-identical payloads.
func DeriveID(sourceSelector uint64, sender common.Address, nonce uint64, payload []byte) MessageID {
	payloadHash := keccak256(payload)

	preimage := make([]byte, 0, 8+20+8+32)
	preimage = binary.BigEndian.AppendUint64(preimage, sourceSelector)
	preimage = append(preimage, sender.Bytes()...)
	preimage = binary.BigEndian.AppendUint64(preimage, nonce)
	preimage = append(preimage, payloadHash...)

	var id MessageID
	copy(id[:], keccak256(preimage))
	return id
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
