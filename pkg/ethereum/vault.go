package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// vaultABI covers the vault surface the teller drives. The teller holds
// the vault's operator role on-chain, which authorizes burn and mint.
const vaultABI = `[
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"minimumMint","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}]},
	{"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"shareAmount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"shareAmount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

// VaultClient drives the share vault contract. It implements
// teller.Vault.
type VaultClient struct {
	client   *Client
	address  common.Address
	contract *bind.BoundContract
	logger   *zap.Logger
}

// NewVaultClient binds the vault contract at the configured address.
func NewVaultClient(client *Client, logger *zap.Logger) (*VaultClient, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse vault ABI: %w", err)
	}

	address := common.HexToAddress(client.cfg.VaultContract)
	return &VaultClient{
		client:   client,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, client.client, client.client, client.client),
		logger:   logger,
	}, nil
}

// Deposit pulls amount of asset from receiver and mints shares to them.
// The minted share count is read as the receiver's balance delta around
// the transaction; the vault reverts when it would be below minimumMint.
func (v *VaultClient) Deposit(ctx context.Context, asset common.Address, amount, minimumMint *big.Int, receiver common.Address) (*big.Int, error) {
	before, err := v.BalanceOf(ctx, receiver)
	if err != nil {
		return nil, err
	}

	opts, err := v.client.transactor(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := v.contract.Transact(opts, "deposit", asset, amount, minimumMint, receiver)
	if err != nil {
		return nil, fmt.Errorf("failed to submit deposit: %w", err)
	}
	if _, err := v.client.waitMined(ctx, tx, "deposit"); err != nil {
		return nil, err
	}

	after, err := v.BalanceOf(ctx, receiver)
	if err != nil {
		return nil, err
	}
	minted := new(big.Int).Sub(after, before)

	v.logger.Info("Vault deposit mined",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("asset", asset.Hex()),
		zap.String("amount", amount.String()),
		zap.String("minted", minted.String()),
		zap.String("receiver", receiver.Hex()))
	return minted, nil
}

// Burn destroys shareAmount shares held by caller.
func (v *VaultClient) Burn(ctx context.Context, caller common.Address, shareAmount *big.Int) error {
	opts, err := v.client.transactor(ctx)
	if err != nil {
		return err
	}
	tx, err := v.contract.Transact(opts, "burn", caller, shareAmount)
	if err != nil {
		return fmt.Errorf("failed to submit burn: %w", err)
	}
	if _, err := v.client.waitMined(ctx, tx, "burn"); err != nil {
		return err
	}

	v.logger.Info("Vault burn mined",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("from", caller.Hex()),
		zap.String("share_amount", shareAmount.String()))
	return nil
}

// Credit mints shareAmount shares to recipient.
func (v *VaultClient) Credit(ctx context.Context, recipient common.Address, shareAmount *big.Int) error {
	opts, err := v.client.transactor(ctx)
	if err != nil {
		return err
	}
	tx, err := v.contract.Transact(opts, "mint", recipient, shareAmount)
	if err != nil {
		return fmt.Errorf("failed to submit mint: %w", err)
	}
	if _, err := v.client.waitMined(ctx, tx, "credit"); err != nil {
		return err
	}

	v.logger.Info("Vault mint mined",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("to", recipient.Hex()),
		zap.String("share_amount", shareAmount.String()))
	return nil
}

// BalanceOf reads the share balance of account.
func (v *VaultClient) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []interface{}
	err := v.contract.Call(v.client.callOpts(ctx), &out, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to read share balance: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
