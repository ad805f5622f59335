package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// NonceStateDao is a data access object that maps directly to the 'nonce_state' table in PostgreSQL.
// One row per destination chain; the nonce is the count of sends reserved so far.
type NonceStateDao struct {
	bun.BaseModel `bun:"table:nonce_state,alias:ns"`
	ChainSelector int64     `bun:"chain_selector,pk"`
	Nonce         int64     `bun:"nonce,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}
