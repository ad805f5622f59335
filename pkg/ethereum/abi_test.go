package ethereum

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

// mockCaller satisfies bind.ContractCaller for read-only contract calls.
type mockCaller struct {
	mock.Mock
}

func (m *mockCaller) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, contract, blockNumber)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockCaller) CallContract(ctx context.Context, call geth.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, call, blockNumber)
	return args.Get(0).([]byte), args.Error(1)
}

// The signatures pin the on-chain interface; changing one here would
// call a selector the deployed contracts do not implement.
func TestABI_MethodSignatures(t *testing.T) {
	vault, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		t.Fatalf("vault ABI does not parse: %v", err)
	}
	router, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		t.Fatalf("router ABI does not parse: %v", err)
	}

	checks := []struct {
		abi    abi.ABI
		method string
		sig    string
	}{
		{vault, "deposit", "deposit(address,uint256,uint256,address)"},
		{vault, "burn", "burn(address,uint256)"},
		{vault, "mint", "mint(address,uint256)"},
		{vault, "balanceOf", "balanceOf(address)"},
		{router, "quoteFee", "quoteFee(uint64,address,bytes,address,uint64)"},
		{router, "sendMessage", "sendMessage(uint64,address,bytes,address,uint64)"},
	}
	for _, c := range checks {
		m, ok := c.abi.Methods[c.method]
		if !ok {
			t.Fatalf("method %s missing from ABI", c.method)
		}
		if m.Sig != c.sig {
			t.Errorf("method %s: expected signature %q, got %q", c.method, c.sig, m.Sig)
		}
	}
}

func TestRouterABI_QuoteFeeCall(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		t.Fatalf("router ABI does not parse: %v", err)
	}

	want := big.NewInt(42)
	ret, err := parsed.Methods["quoteFee"].Outputs.Pack(want)
	if err != nil {
		t.Fatalf("pack quoteFee output: %v", err)
	}

	router := common.HexToAddress("0x3333333333333333333333333333333333333333")
	caller := &mockCaller{}
	var sent geth.CallMsg
	caller.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(geth.CallMsg) }).
		Return(ret, nil)

	contract := bind.NewBoundContract(router, parsed, caller, nil, nil)

	var out []interface{}
	err = contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "quoteFee",
		uint64(5009297550715157269),
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		[]byte{0x01, 0x02},
		common.Address{},
		uint64(200000))
	if err != nil {
		t.Fatalf("Call(quoteFee) failed: %v", err)
	}

	fee := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if fee.Cmp(want) != 0 {
		t.Fatalf("expected fee %s, got %s", want, fee)
	}

	if sent.To == nil || *sent.To != router {
		t.Fatalf("expected the call to target the router contract, got %v", sent.To)
	}
	selector := parsed.Methods["quoteFee"].ID
	if len(sent.Data) < 4 || !bytes.Equal(sent.Data[:4], selector) {
		t.Fatalf("expected quoteFee selector %x, got %x", selector, sent.Data[:4])
	}
	caller.AssertExpectations(t)
}

func TestVaultABI_BalanceOfCall(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(vaultABI))
	if err != nil {
		t.Fatalf("vault ABI does not parse: %v", err)
	}

	want := big.NewInt(98765)
	ret, err := parsed.Methods["balanceOf"].Outputs.Pack(want)
	if err != nil {
		t.Fatalf("pack balanceOf output: %v", err)
	}

	vault := common.HexToAddress("0x2222222222222222222222222222222222222222")
	caller := &mockCaller{}
	caller.On("CallContract", mock.Anything, mock.Anything, mock.Anything).Return(ret, nil)

	contract := bind.NewBoundContract(vault, parsed, caller, nil, nil)

	var out []interface{}
	err = contract.Call(&bind.CallOpts{Context: context.Background()}, &out, "balanceOf",
		common.HexToAddress("0x00000000000000000000000000000000000000c1"))
	if err != nil {
		t.Fatalf("Call(balanceOf) failed: %v", err)
	}

	balance := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if balance.Cmp(want) != 0 {
		t.Fatalf("expected balance %s, got %s", want, balance)
	}
	caller.AssertExpectations(t)
}
