package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/chainsafe/vault-teller/pkg/db/dao"
	"github.com/chainsafe/vault-teller/pkg/wire"
)

var (
	ErrChainNotFound = errors.New("chain not found")
	ErrChainExists   = errors.New("chain already registered")
	ErrSendNotFound  = errors.New("send not found")
)

// reserveNonceSQL atomically increments and returns the per-destination
// send counter. The first send to a chain creates the row with nonce 1.
const reserveNonceSQL = `
INSERT INTO nonce_state (chain_selector, nonce, updated_at)
VALUES (?, 1, NOW())
ON CONFLICT (chain_selector)
DO UPDATE SET nonce = nonce_state.nonce + 1, updated_at = NOW()
RETURNING nonce
`

// Store persists teller state in PostgreSQL.
type Store struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the teller store
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetChain retrieves a registry entry by selector.
func (s *Store) GetChain(ctx context.Context, selector uint64) (*Chain, error) {
	d := new(dao.ChainDao)
	err := s.db.NewSelect().
		Model(d).
		Where("selector = ?", selectorToDB(selector)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChainNotFound
		}
		return nil, fmt.Errorf("failed to get chain: %w", err)
	}
	return toChain(d), nil
}

// ListChains retrieves all registry entries ordered by selector.
func (s *Store) ListChains(ctx context.Context) ([]*Chain, error) {
	var daos []dao.ChainDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("selector ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	chains := make([]*Chain, len(daos))
	for i := range daos {
		chains[i] = toChain(&daos[i])
	}
	return chains, nil
}

// CreateChain inserts a new registry entry and its audit event in one
// transaction. Returns ErrChainExists if the selector is already
// registered.
func (s *Store) CreateChain(ctx context.Context, chain *Chain, evt *TellerEvent) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(toChainDao(chain)).
			On("CONFLICT (selector) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create chain: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result: %w", err)
		}
		if rows == 0 {
			return ErrChainExists
		}
		return insertEvent(ctx, tx, evt)
	})
}

// UpdateChain rewrites the mutable columns of a registry entry and
// records the audit event in the same transaction.
func (s *Store) UpdateChain(ctx context.Context, chain *Chain, evt *TellerEvent) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*dao.ChainDao)(nil)).
			Set("allow_from = ?", chain.AllowFrom).
			Set("allow_to = ?", chain.AllowTo).
			Set("peer_teller = ?", chain.PeerTeller.Hex()).
			Set("gas_limit = ?", int64(chain.GasLimit)).
			Set("min_gas = ?", int64(chain.MinGas)).
			Set("updated_at = NOW()").
			Where("selector = ?", selectorToDB(chain.Selector)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update chain: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}
		if rows == 0 {
			return ErrChainNotFound
		}
		return insertEvent(ctx, tx, evt)
	})
}

// DeleteChain removes a registry entry and records the audit event in
// the same transaction.
func (s *Store) DeleteChain(ctx context.Context, selector uint64, evt *TellerEvent) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*dao.ChainDao)(nil)).
			Where("selector = ?", selectorToDB(selector)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete chain: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read delete result: %w", err)
		}
		if rows == 0 {
			return ErrChainNotFound
		}
		return insertEvent(ctx, tx, evt)
	})
}

// ReserveSend increments the destination nonce and records the pending
// send in one transaction. The build callback receives the reserved
// nonce and returns the send row to persist; its status is forced to
// pending.
func (s *Store) ReserveSend(ctx context.Context, destination uint64, build func(nonce uint64) (*Send, error)) (*Send, error) {
	var send *Send
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var nonce int64
		if err := tx.NewRaw(reserveNonceSQL, selectorToDB(destination)).Scan(ctx, &nonce); err != nil {
			return fmt.Errorf("failed to reserve nonce: %w", err)
		}

		built, err := build(uint64(nonce))
		if err != nil {
			return err
		}
		built.Status = SendStatusPending

		if _, err := tx.NewInsert().Model(toSendDao(built)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to record send: %w", err)
		}
		send = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return send, nil
}

// MarkSendDispatched transitions a send to dispatched, stores the
// transport receipt and appends the message_sent event atomically.
func (s *Store) MarkSendDispatched(ctx context.Context, id wire.MessageID, receipt string, evt *TellerEvent) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*dao.SendDao)(nil)).
			Set("status = ?", string(SendStatusDispatched)).
			Set("transport_receipt = ?", receipt).
			Set("dispatched_at = NOW()").
			Set("updated_at = NOW()").
			Where("id = ?", id.Hex()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark send dispatched: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}
		if rows == 0 {
			return ErrSendNotFound
		}
		return insertEvent(ctx, tx, evt)
	})
}

// MarkSendFailed transitions a send to failed and stores the dispatch
// error for operators. No event is emitted; failed sends never left
// the teller.
func (s *Store) MarkSendFailed(ctx context.Context, id wire.MessageID, errMsg string) error {
	res, err := s.db.NewUpdate().
		Model((*dao.SendDao)(nil)).
		Set("status = ?", string(SendStatusFailed)).
		Set("error_message = ?", errMsg).
		Set("updated_at = NOW()").
		Where("id = ?", id.Hex()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark send failed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return ErrSendNotFound
	}
	return nil
}

// GetSend retrieves a send by message id.
func (s *Store) GetSend(ctx context.Context, id wire.MessageID) (*Send, error) {
	d := new(dao.SendDao)
	err := s.db.NewSelect().
		Model(d).
		Where("id = ?", id.Hex()).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSendNotFound
		}
		return nil, fmt.Errorf("failed to get send: %w", err)
	}
	return toSend(d)
}

// ListSends retrieves the most recent sends.
func (s *Store) ListSends(ctx context.Context, limit int) ([]*Send, error) {
	if limit <= 0 {
		limit = 100
	}
	var daos []dao.SendDao
	err := s.db.NewSelect().
		Model(&daos).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sends: %w", err)
	}
	sends := make([]*Send, len(daos))
	for i := range daos {
		sends[i], err = toSend(&daos[i])
		if err != nil {
			return nil, err
		}
	}
	return sends, nil
}

// ListPendingSends retrieves sends still pending after the given age,
// oldest first. These indicate a crash between burn and dispatch and
// need operator attention.
func (s *Store) ListPendingSends(ctx context.Context, olderThan time.Duration) ([]*Send, error) {
	cutoff := time.Now().Add(-olderThan)
	var daos []dao.SendDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("status = ?", string(SendStatusPending)).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sends: %w", err)
	}
	sends := make([]*Send, len(daos))
	for i := range daos {
		sends[i], err = toSend(&daos[i])
		if err != nil {
			return nil, err
		}
	}
	return sends, nil
}

// SettleInbound durably marks an inbound message as settled, credits
// the recipient through the callback and appends the message_received
// event, all in one transaction. Returns false without invoking the
// callback when the message id was already settled.
func (s *Store) SettleInbound(ctx context.Context, st *Settlement, evt *TellerEvent, credit func(ctx context.Context) error) (bool, error) {
	settled := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(toSettlementDao(st)).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to record settlement: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result: %w", err)
		}
		if rows == 0 {
			return nil
		}

		if err := credit(ctx); err != nil {
			return err
		}
		if err := insertEvent(ctx, tx, evt); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}

// GetSettlement retrieves a settlement by message id. Returns nil when
// the id has not been settled.
func (s *Store) GetSettlement(ctx context.Context, id wire.MessageID) (*Settlement, error) {
	d := new(dao.SettlementDao)
	err := s.db.NewSelect().
		Model(d).
		Where("id = ?", id.Hex()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return toSettlement(d)
}

// ListEvents retrieves event log rows, newest first.
func (s *Store) ListEvents(ctx context.Context, q EventQuery) ([]*TellerEvent, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	var daos []dao.TellerEventDao
	query := s.db.NewSelect().Model(&daos)
	if q.Type != "" {
		query = query.Where("event_type = ?", q.Type)
	}
	if q.Selector != nil {
		query = query.Where("chain_selector = ?", selectorToDB(*q.Selector))
	}
	err := query.Order("id DESC").Limit(q.Limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]*TellerEvent, len(daos))
	for i := range daos {
		events[i], err = toEvent(&daos[i])
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}

// ChainStats aggregates dispatched and settled share totals for one
// chain.
type ChainStats struct {
	Selector        uint64          `json:"selector,string"`
	SendCount       int64           `json:"send_count"`
	SentShares      decimal.Decimal `json:"sent_shares"`
	SettlementCount int64           `json:"settlement_count"`
	ReceivedShares  decimal.Decimal `json:"received_shares"`
}

// GetChainStats aggregates send and settlement totals for one chain.
// Only dispatched sends count toward the outbound totals.
func (s *Store) GetChainStats(ctx context.Context, selector uint64) (*ChainStats, error) {
	stats := &ChainStats{Selector: selector}
	sel := selectorToDB(selector)

	err := s.db.NewRaw(
		"SELECT COUNT(*), COALESCE(SUM(share_amount), 0) FROM sends WHERE destination_selector = ? AND status = ?",
		sel, string(SendStatusDispatched),
	).Scan(ctx, &stats.SendCount, &stats.SentShares)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sends: %w", err)
	}

	err = s.db.NewRaw(
		"SELECT COUNT(*), COALESCE(SUM(share_amount), 0) FROM settlements WHERE source_selector = ?",
		sel,
	).Scan(ctx, &stats.SettlementCount, &stats.ReceivedShares)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate settlements: %w", err)
	}

	return stats, nil
}

func insertEvent(ctx context.Context, idb bun.IDB, evt *TellerEvent) error {
	if _, err := idb.NewInsert().Model(toEventDao(evt)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}
