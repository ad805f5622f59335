package registry

import (
	"errors"
	"fmt"

	"github.com/chainsafe/vault-teller/pkg/db"
)

var (
	ErrZeroMessageGas   = errors.New("message gas must be non-zero")
	ErrGasTooLow        = errors.New("message gas below chain minimum")
	ErrGasLimitExceeded = errors.New("message gas exceeds chain limit")
)

// GasPolicy validates the execution gas a caller requests for the
// destination chain against that chain's configured window.
type GasPolicy struct{}

// Validate checks requestedGas against the chain's [MinGas, GasLimit]
// window. It is a pure function of the resolved registry entry.
func (GasPolicy) Validate(chain *db.Chain, requestedGas uint64) error {
	switch {
	case requestedGas == 0:
		return ErrZeroMessageGas
	case requestedGas < chain.MinGas:
		return fmt.Errorf("requested %d but chain %d requires at least %d: %w",
			requestedGas, chain.Selector, chain.MinGas, ErrGasTooLow)
	case requestedGas > chain.GasLimit:
		return fmt.Errorf("requested %d but chain %d allows at most %d: %w",
			requestedGas, chain.Selector, chain.GasLimit, ErrGasLimitExceeded)
	}
	return nil
}
