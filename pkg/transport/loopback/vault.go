package loopback

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	// ErrInsufficientShares is returned when a burn exceeds the holder's
	// balance.
	ErrInsufficientShares = errors.New("insufficient share balance")

	// ErrBelowMinimumMint is returned when a deposit would mint fewer
	// shares than the caller's stated minimum.
	ErrBelowMinimumMint = errors.New("minted shares below minimum")
)

// Vault is an in-memory share ledger backing loopback mode. Deposits
// mint shares one-to-one with the asset amount, so a teller can run
// end to end on a laptop with no vault contract behind it.
type Vault struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	logger   *zap.Logger
}

// NewVault creates an empty in-memory vault.
func NewVault(logger *zap.Logger) *Vault {
	return &Vault{
		balances: make(map[common.Address]*big.Int),
		logger:   logger,
	}
}

// Deposit mints amount shares to receiver. The asset address is
// accepted for interface parity and ignored.
func (v *Vault) Deposit(ctx context.Context, asset common.Address, amount, minimumMint *big.Int, receiver common.Address) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive")
	}
	minted := new(big.Int).Set(amount)
	if minimumMint != nil && minted.Cmp(minimumMint) < 0 {
		return nil, ErrBelowMinimumMint
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.add(receiver, minted)

	v.logger.Debug("Loopback vault deposit",
		zap.String("receiver", receiver.Hex()),
		zap.String("minted", minted.String()))
	return minted, nil
}

// Burn destroys shareAmount shares held by caller.
func (v *Vault) Burn(ctx context.Context, caller common.Address, shareAmount *big.Int) error {
	if shareAmount == nil || shareAmount.Sign() <= 0 {
		return fmt.Errorf("burn amount must be positive")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	balance, ok := v.balances[caller]
	if !ok || balance.Cmp(shareAmount) < 0 {
		return fmt.Errorf("burn %s from %s: %w", shareAmount, caller.Hex(), ErrInsufficientShares)
	}
	balance.Sub(balance, shareAmount)
	return nil
}

// Credit mints shareAmount shares to recipient.
func (v *Vault) Credit(ctx context.Context, recipient common.Address, shareAmount *big.Int) error {
	if shareAmount == nil || shareAmount.Sign() <= 0 {
		return fmt.Errorf("credit amount must be positive")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.add(recipient, shareAmount)
	return nil
}

// BalanceOf reports the current share balance of account.
func (v *Vault) BalanceOf(account common.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()

	balance, ok := v.balances[account]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// add must be called with the lock held.
func (v *Vault) add(account common.Address, amount *big.Int) {
	balance, ok := v.balances[account]
	if !ok {
		balance = big.NewInt(0)
		v.balances[account] = balance
	}
	balance.Add(balance, amount)
}
