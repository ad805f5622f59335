// Package ethereum provides the EVM clients behind the teller: the
// vault contract holding share balances and the router contract that
// accepts cross-chain messages.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/vault-teller/internal/metrics"
	"github.com/chainsafe/vault-teller/pkg/config"
)

// Client wraps an Ethereum RPC connection with the teller's signing key.
type Client struct {
	cfg        config.EthereumConfig
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient connects to the Ethereum RPC and loads the teller key.
func NewClient(cfg config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(cfg.TellerPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	logger.Info("Connected to Ethereum",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("vault_contract", cfg.VaultContract),
		zap.String("router_contract", cfg.RouterContract),
		zap.String("teller_address", address.Hex()))

	return &Client{
		cfg:        cfg,
		client:     client,
		privateKey: privateKey,
		address:    address,
		timeout:    cfg.RequestTimeout.Std(),
		logger:     logger,
	}, nil
}

// Close closes the RPC connection.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Address returns the teller's signing address.
func (c *Client) Address() common.Address {
	return c.address
}

// transactor builds signing options for one transaction: keyed signer
// with the configured chain id, the pending account nonce, and the gas
// price capped at the configured maximum.
func (c *Client) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.privateKey, big.NewInt(c.cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	opts.Nonce = big.NewInt(int64(nonce))
	opts.GasLimit = c.cfg.GasLimit
	opts.Context = ctx

	if c.cfg.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(c.cfg.MaxGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max_gas_price %q", c.cfg.MaxGasPrice)
		}

		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			gasPrice = maxGasPrice
		}
		opts.GasPrice = gasPrice
	}

	return opts, nil
}

// waitMined blocks until the transaction is mined, bounded by the
// configured request timeout, and rejects reverted transactions.
func (c *Client) waitMined(ctx context.Context, tx *types.Transaction, operation string) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s transaction %s: %w", operation, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s transaction %s reverted", operation, tx.Hash().Hex())
	}

	metrics.GasUsed.WithLabelValues(operation).Observe(float64(receipt.GasUsed))
	return receipt, nil
}

func (c *Client) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}
