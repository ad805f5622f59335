package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// SendDao is a data access object that maps directly to the 'sends' table in PostgreSQL.
// Share amounts are stored as numeric(78,0) so a full uint256 fits without loss.
type SendDao struct {
	bun.BaseModel       `bun:"table:sends,alias:s"`
	ID                  string     `bun:"id,pk,type:varchar(66)"`
	DestinationSelector int64      `bun:"destination_selector,notnull"`
	Nonce               int64      `bun:"nonce,notnull"`
	Caller              string     `bun:"caller,notnull,type:varchar(42)"`
	Recipient           string     `bun:"recipient,notnull,type:varchar(42)"`
	PeerTeller          string     `bun:"peer_teller,notnull,type:varchar(42)"`
	ShareAmount         string     `bun:"share_amount,notnull,type:numeric(78,0)"`
	FeeToken            string     `bun:"fee_token,notnull,type:varchar(42)"`
	FeeAmount           *string    `bun:"fee_amount,type:numeric(78,0)"`
	MessageGas          int64      `bun:"message_gas,notnull"`
	Status              string     `bun:"status,notnull,type:varchar(20)"`
	TransportReceipt    *string    `bun:"transport_receipt,type:text"`
	ErrorMessage        *string    `bun:"error_message,type:text"`
	CreatedAt           time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt           time.Time  `bun:"updated_at,nullzero,default:current_timestamp"`
	DispatchedAt        *time.Time `bun:"dispatched_at"`
}
