package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// TellerEventDao is a data access object that maps directly to the 'teller_events' table in PostgreSQL.
// Optional columns are pointers so events only carry the fields that apply to their type.
type TellerEventDao struct {
	bun.BaseModel `bun:"table:teller_events,alias:te"`
	ID            int64     `bun:"id,pk,autoincrement"`
	EventType     string    `bun:"event_type,notnull,type:varchar(40)"`
	ChainSelector int64     `bun:"chain_selector,notnull"`
	MessageID     *string   `bun:"message_id,type:varchar(66)"`
	ShareAmount   *string   `bun:"share_amount,type:numeric(78,0)"`
	Recipient     *string   `bun:"recipient,type:varchar(42)"`
	PeerTeller    *string   `bun:"peer_teller,type:varchar(42)"`
	GasLimit      *int64    `bun:"gas_limit"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}
