package teller

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/chainsafe/vault-teller/pkg/wire"
)

const serviceName = "Teller"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the teller Service. It logs
// method entry/exit, duration and errors.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// Bridge wraps the service method with logging
func (ls *logService) Bridge(
	ctx context.Context,
	caller common.Address,
	shareAmount *big.Int,
	req BridgeRequest,
) (id wire.MessageID, err error) {
	start := time.Now()

	ls.logger.Info("Bridge started",
		zap.String("service", serviceName),
		zap.String("method", "Bridge"),
		zap.String("caller", caller.Hex()),
		zap.Uint64("chain_selector", req.ChainSelector),
		zap.String("share_amount", shareAmount.String()),
		zap.Uint64("message_gas", req.MessageGas),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("Bridge failed",
				zap.String("service", serviceName),
				zap.String("method", "Bridge"),
				zap.String("caller", caller.Hex()),
				zap.Uint64("chain_selector", req.ChainSelector),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("Bridge completed",
				zap.String("service", serviceName),
				zap.String("method", "Bridge"),
				zap.String("message_id", id.Hex()),
				zap.Uint64("chain_selector", req.ChainSelector),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.Bridge(ctx, caller, shareAmount, req)
}

// DepositAndBridge wraps the service method with logging
func (ls *logService) DepositAndBridge(
	ctx context.Context,
	caller common.Address,
	dep DepositRequest,
	req BridgeRequest,
) (id wire.MessageID, err error) {
	start := time.Now()

	ls.logger.Info("DepositAndBridge started",
		zap.String("service", serviceName),
		zap.String("method", "DepositAndBridge"),
		zap.String("caller", caller.Hex()),
		zap.String("asset", dep.Asset.Hex()),
		zap.String("amount", dep.Amount.String()),
		zap.String("minimum_mint", dep.MinimumMint.String()),
		zap.Uint64("chain_selector", req.ChainSelector),
	)

	defer func() {
		duration := time.Since(start)

		if err != nil {
			ls.logger.Error("DepositAndBridge failed",
				zap.String("service", serviceName),
				zap.String("method", "DepositAndBridge"),
				zap.String("caller", caller.Hex()),
				zap.Uint64("chain_selector", req.ChainSelector),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		} else {
			ls.logger.Info("DepositAndBridge completed",
				zap.String("service", serviceName),
				zap.String("method", "DepositAndBridge"),
				zap.String("message_id", id.Hex()),
				zap.Uint64("chain_selector", req.ChainSelector),
				zap.Duration("duration", duration),
			)
		}
	}()

	return ls.svc.DepositAndBridge(ctx, caller, dep, req)
}
