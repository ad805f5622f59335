package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// SettlementDao is a data access object that maps directly to the 'settlements' table in PostgreSQL.
// The primary key on the message id is what enforces exactly-once crediting.
type SettlementDao struct {
	bun.BaseModel  `bun:"table:settlements,alias:st"`
	ID             string    `bun:"id,pk,type:varchar(66)"`
	SourceSelector int64     `bun:"source_selector,notnull"`
	Sender         string    `bun:"sender,notnull,type:varchar(42)"`
	Recipient      string    `bun:"recipient,notnull,type:varchar(42)"`
	ShareAmount    string    `bun:"share_amount,notnull,type:numeric(78,0)"`
	SettledAt      time.Time `bun:"settled_at,nullzero,default:current_timestamp"`
}
