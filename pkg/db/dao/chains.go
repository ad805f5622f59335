package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// ChainDao is a data access object that maps directly to the 'chains' table in PostgreSQL.
type ChainDao struct {
	bun.BaseModel `bun:"table:chains,alias:c"`
	Selector      int64     `bun:"selector,pk"`
	AllowFrom     bool      `bun:"allow_from,notnull"`
	AllowTo       bool      `bun:"allow_to,notnull"`
	PeerTeller    string    `bun:"peer_teller,notnull,type:varchar(42)"`
	GasLimit      int64     `bun:"gas_limit,notnull"`
	MinGas        int64     `bun:"min_gas,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}
