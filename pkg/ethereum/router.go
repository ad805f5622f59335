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

	"github.com/chainsafe/vault-teller/pkg/teller"
)

// routerABI is the message-network entry point. quoteFee and
// sendMessage take the same arguments so a quote is always for the
// exact message that follows it.
const routerABI = `[
	{"type":"function","name":"quoteFee","stateMutability":"view","inputs":[{"name":"destinationSelector","type":"uint64"},{"name":"receiver","type":"address"},{"name":"payload","type":"bytes"},{"name":"feeToken","type":"address"},{"name":"gasLimit","type":"uint64"}],"outputs":[{"name":"fee","type":"uint256"}]},
	{"type":"function","name":"sendMessage","stateMutability":"payable","inputs":[{"name":"destinationSelector","type":"uint64"},{"name":"receiver","type":"address"},{"name":"payload","type":"bytes"},{"name":"feeToken","type":"address"},{"name":"gasLimit","type":"uint64"}],"outputs":[{"name":"messageId","type":"bytes32"}]}
]`

// RouterTransport dispatches outbound messages through the router
// contract. It implements teller.Transport; the returned receipt is the
// submission transaction hash.
type RouterTransport struct {
	client   *Client
	address  common.Address
	contract *bind.BoundContract
	logger   *zap.Logger
}

// NewRouterTransport binds the router contract at the configured
// address.
func NewRouterTransport(client *Client, logger *zap.Logger) (*RouterTransport, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	address := common.HexToAddress(client.cfg.RouterContract)
	return &RouterTransport{
		client:   client,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, client.client, client.client, client.client),
		logger:   logger,
	}, nil
}

// QuoteFee prices delivery of the message in its fee token.
func (r *RouterTransport) QuoteFee(ctx context.Context, msg *teller.OutboundMessage) (*big.Int, error) {
	var out []interface{}
	err := r.contract.Call(r.client.callOpts(ctx), &out, "quoteFee",
		msg.DestinationSelector, msg.Receiver, msg.Payload, msg.FeeToken, msg.MessageGas)
	if err != nil {
		return nil, fmt.Errorf("failed to quote fee: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Send submits the message to the router and waits for the transaction
// to mine. Fees are paid in the message's fee token, which the teller
// account has approved to the router ahead of time.
func (r *RouterTransport) Send(ctx context.Context, msg *teller.OutboundMessage) (string, error) {
	opts, err := r.client.transactor(ctx)
	if err != nil {
		return "", err
	}
	tx, err := r.contract.Transact(opts, "sendMessage",
		msg.DestinationSelector, msg.Receiver, msg.Payload, msg.FeeToken, msg.MessageGas)
	if err != nil {
		return "", fmt.Errorf("failed to submit message: %w", err)
	}
	if _, err := r.client.waitMined(ctx, tx, "send_message"); err != nil {
		return "", err
	}

	r.logger.Info("Router message mined",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("message_id", msg.ID.Hex()),
		zap.Uint64("destination_selector", msg.DestinationSelector))
	return tx.Hash().Hex(), nil
}
