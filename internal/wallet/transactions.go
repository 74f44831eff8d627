package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractCall describes a single ABI method invocation.
type ContractCall struct {
	ABI    abi.ABI
	To     common.Address
	Method string
	Args   []interface{}
	Value  *big.Int // Native value to attach, nil for none
}

func (c ContractCall) pack() ([]byte, error) {
	if c.Method == "" {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("method cannot be empty"))
	}
	data, err := c.ABI.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("pack %s: %w", c.Method, err))
	}
	return data, nil
}

// Query packs and performs a read-only call, returning the unpacked outputs.
func (s *SigningClient) Query(ctx context.Context, call ContractCall) ([]interface{}, error) {
	data, err := call.pack()
	if err != nil {
		return nil, err
	}
	out, err := s.Call(ctx, call.To, data)
	if err != nil {
		return nil, err
	}
	vals, err := call.ABI.Unpack(call.Method, out)
	if err != nil {
		return nil, errors.Join(ErrCallFailed, fmt.Errorf("unpack %s: %w", call.Method, err))
	}
	return vals, nil
}

// Execute packs and sends a state-changing call, waiting for its receipt.
func (s *SigningClient) Execute(ctx context.Context, call ContractCall) (*types.Receipt, error) {
	data, err := call.pack()
	if err != nil {
		return nil, err
	}
	walletLogger.Debug().
		Str("method", call.Method).
		Str("to", call.To.Hex()).
		Msg("Executing contract call")
	return s.SendTx(ctx, call.To, call.Value, data)
}

// TransferNative sends value to a plain address.
func (s *SigningClient) TransferNative(ctx context.Context, to common.Address, value *big.Int) (*types.Receipt, error) {
	if value == nil || value.Sign() <= 0 {
		return nil, errors.Join(ErrTxBuildFailed, errors.New("native transfer value must be positive"))
	}
	return s.SendTx(ctx, to, value, nil)
}

// EventsByName decodes every log in the receipt emitted by emitter that matches the named event.
// Indexed topics are not decoded; callers read them from Log.Topics.
func EventsByName(receipt *types.Receipt, contractABI abi.ABI, emitter common.Address, name string) ([]map[string]interface{}, []*types.Log, error) {
	event, ok := contractABI.Events[name]
	if !ok {
		return nil, nil, fmt.Errorf("event %s not in ABI", name)
	}
	if receipt == nil {
		return nil, nil, errors.New("receipt is nil")
	}
	var decoded []map[string]interface{}
	var logs []*types.Log
	for _, l := range receipt.Logs {
		if l == nil || l.Address != emitter || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		fields := make(map[string]interface{})
		if err := contractABI.UnpackIntoMap(fields, name, l.Data); err != nil {
			return nil, nil, fmt.Errorf("decode %s log: %w", name, err)
		}
		decoded = append(decoded, fields)
		logs = append(logs, l)
	}
	return decoded, logs, nil
}
