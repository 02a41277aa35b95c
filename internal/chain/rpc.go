// Package chain verifies streak freeze token transactions on an Ethereum
// node.
//
// The freeze token is an ERC-1155 id on a single contract. A burn is a
// TransferSingle from the wallet to the zero address, a mint is a
// TransferSingle from the zero address to the wallet, and a purchase is any
// TransferSingle to the wallet.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
)

const erc1155JSON = `[
  {"type":"event","name":"TransferSingle","anonymous":false,"inputs":[
    {"name":"operator","type":"address","indexed":true},
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"id","type":"uint256","indexed":false},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
    {"name":"account","type":"address"},
    {"name":"id","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// erc1155 is the slice of the ERC-1155 ABI the verifier needs.
var erc1155 = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc1155JSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Backend is the node API the verifier uses. *ethclient.Client satisfies it.
type Backend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RPCVerifier implements the freeze ledger's chain checks.
type RPCVerifier struct {
	url      string
	contract common.Address
	tokenID  *big.Int
	timeout  time.Duration

	mu      sync.Mutex
	backend Backend
}

// NewRPCVerifier returns a verifier that dials url on first use.
func NewRPCVerifier(url, contract string, tokenID int64, timeout time.Duration) *RPCVerifier {
	return &RPCVerifier{
		url:      url,
		contract: common.HexToAddress(contract),
		tokenID:  big.NewInt(tokenID),
		timeout:  timeout,
	}
}

// NewVerifier returns a verifier over an existing backend.
func NewVerifier(backend Backend, contract string, tokenID int64, timeout time.Duration) *RPCVerifier {
	v := NewRPCVerifier("", contract, tokenID, timeout)
	v.backend = backend
	return v
}

func (v *RPCVerifier) conn(ctx context.Context) (Backend, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.backend != nil {
		return v.backend, nil
	}
	c, err := ethclient.DialContext(ctx, v.url)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	v.backend = c
	return c, nil
}

// VerifyBurnTx reports whether txHash burned at least one freeze token held
// by wallet.
func (v *RPCVerifier) VerifyBurnTx(ctx context.Context, txHash, wallet string) (bool, error) {
	from := common.HexToAddress(wallet)
	return v.verifyTransfer(ctx, txHash, &from, common.Address{})
}

// VerifyMintTx reports whether txHash minted at least one freeze token to
// wallet.
func (v *RPCVerifier) VerifyMintTx(ctx context.Context, txHash, wallet string) (bool, error) {
	return v.verifyTransfer(ctx, txHash, &common.Address{}, common.HexToAddress(wallet))
}

// VerifyPurchaseTx reports whether txHash delivered at least one freeze token
// to wallet.
func (v *RPCVerifier) VerifyPurchaseTx(ctx context.Context, txHash, wallet string) (bool, error) {
	return v.verifyTransfer(ctx, txHash, nil, common.HexToAddress(wallet))
}

// verifyTransfer looks for a successful TransferSingle of the freeze token.
// A nil from matches any sender.
func (v *RPCVerifier) verifyTransfer(ctx context.Context, txHash string, from *common.Address, to common.Address) (bool, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return false, nil
	}
	backend, err := v.conn(ctx)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	rc, err := backend.TransactionReceipt(ctx, common.BytesToHash(raw))
	if errors.Is(err, ethereum.NotFound) {
		log.Debug().Str("tx", txHash).Msg("transaction not found")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("receipt %s: %w", txHash, err)
	}
	if rc.Status != types.ReceiptStatusSuccessful {
		log.Debug().Str("tx", txHash).Msg("transaction reverted")
		return false, nil
	}
	transfer := erc1155.Events["TransferSingle"]
	for _, l := range rc.Logs {
		if l.Address != v.contract || len(l.Topics) != 4 || l.Topics[0] != transfer.ID {
			continue
		}
		if from != nil && common.BytesToAddress(l.Topics[2].Bytes()) != *from {
			continue
		}
		if common.BytesToAddress(l.Topics[3].Bytes()) != to {
			continue
		}
		vals, err := transfer.Inputs.NonIndexed().Unpack(l.Data)
		if err != nil || len(vals) != 2 {
			continue
		}
		id, _ := vals[0].(*big.Int)
		value, _ := vals[1].(*big.Int)
		if id != nil && value != nil && id.Cmp(v.tokenID) == 0 && value.Sign() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// GetBalance returns the wallet's freeze token balance.
func (v *RPCVerifier) GetBalance(ctx context.Context, wallet string) (int64, error) {
	if !common.IsHexAddress(wallet) {
		return 0, fmt.Errorf("invalid address %q", wallet)
	}
	data, err := erc1155.Pack("balanceOf", common.HexToAddress(wallet), v.tokenID)
	if err != nil {
		return 0, err
	}
	backend, err := v.conn(ctx)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	out, err := backend.CallContract(ctx, ethereum.CallMsg{To: &v.contract, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("balanceOf: %w", err)
	}
	vals, err := erc1155.Unpack("balanceOf", out)
	if err != nil {
		return 0, fmt.Errorf("balanceOf: %w", err)
	}
	n, ok := vals[0].(*big.Int)
	if !ok || !n.IsInt64() {
		return 0, fmt.Errorf("balanceOf: unexpected result %v", vals[0])
	}
	return n.Int64(), nil
}

// NormalizeAddress returns the EIP-55 form of s, or false when s is not a
// hex address.
func NormalizeAddress(s string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(s), "0x") || !common.IsHexAddress(s) {
		return "", false
	}
	return common.HexToAddress(s).Hex(), true
}
