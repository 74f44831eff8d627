package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/elys-network/clpm/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrKeyInvalid          = errors.New("signing key is invalid")
	ErrRPCConnectionFailed = errors.New("RPC connection failed")
	ErrTxBuildFailed       = errors.New("transaction build failed")
	ErrTxSignFailed        = errors.New("transaction signing failed")
	ErrTxBroadcastFailed   = errors.New("transaction broadcast failed")
	ErrTxReverted          = errors.New("transaction reverted on-chain")
	ErrReceiptTimeout      = errors.New("transaction receipt not found before timeout")
	ErrCallFailed          = errors.New("contract call failed")
)

var walletLogger = logger.GetForComponent("wallet_client")

// Backend is the subset of an Ethereum JSON-RPC client the signing client needs.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Config holds the signing parameters.
type Config struct {
	PrivateKeyHex   string
	ChainID         int64
	DefaultGasLimit uint64        // Used when gas estimation fails
	GasPriceBuffer  float64       // e.g. 0.10 adds 10% on top of the suggested price
	GasLimitBuffer  float64       // e.g. 0.20 adds 20% on top of the estimate
	ReceiptTimeout  time.Duration // How long to wait for a receipt
	PollInterval    time.Duration // Receipt polling interval
}

// SigningClient signs and sends transactions from a single hot key, one at a time.
type SigningClient struct {
	backend Backend
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	cfg     Config

	// Nonces are taken from the pending state, so sends must not overlap.
	sendMu sync.Mutex
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("RPC URL cannot be empty"))
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Join(ErrRPCConnectionFailed, fmt.Errorf("dial %s: %w", rpcURL, err))
	}
	return client, nil
}

// NewSigningClient creates a new signing client with comprehensive validation
func NewSigningClient(backend Backend, cfg Config) (*SigningClient, error) {
	if backend == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("backend cannot be nil"))
	}
	if err := validateWalletConfig(cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	key, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, errors.Join(ErrKeyInvalid, err)
	}

	client := &SigningClient{
		backend: backend,
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(cfg.ChainID),
		cfg:     cfg,
	}

	walletLogger.Info().
		Str("address", client.address.Hex()).
		Int64("chainID", cfg.ChainID).
		Msg("Signing client initialized")

	return client, nil
}

func validateWalletConfig(cfg Config) error {
	if cfg.PrivateKeyHex == "" {
		return errors.New("private key cannot be empty")
	}
	if cfg.ChainID <= 0 {
		return fmt.Errorf("chain ID must be positive, got %d", cfg.ChainID)
	}
	if cfg.DefaultGasLimit == 0 {
		return errors.New("default gas limit cannot be zero")
	}
	if cfg.GasPriceBuffer < 0 || cfg.GasLimitBuffer < 0 {
		return errors.New("gas buffers cannot be negative")
	}
	if cfg.ReceiptTimeout <= 0 || cfg.PollInterval <= 0 {
		return errors.New("receipt timeout and poll interval must be positive")
	}
	return nil
}

func parsePrivateKey(keyHex string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return crypto.ToECDSA(raw)
}

// Address returns the signing address.
func (s *SigningClient) Address() common.Address {
	return s.address
}

// NativeBalance returns the native balance of account at the latest block.
func (s *SigningClient) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := s.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, errors.Join(ErrCallFailed, fmt.Errorf("balance of %s: %w", account.Hex(), err))
	}
	return bal, nil
}

// Call performs a read-only call against the latest block.
func (s *SigningClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := s.backend.CallContract(ctx, ethereum.CallMsg{From: s.address, To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Join(ErrCallFailed, fmt.Errorf("call %s: %w", to.Hex(), err))
	}
	return out, nil
}

// SendTx signs and sends a legacy transaction and waits for a successful receipt.
// A reverted receipt is returned together with ErrTxReverted.
func (s *SigningClient) SendTx(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Receipt, error) {
	if value == nil {
		value = new(big.Int)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("nonce: %w", err))
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Join(ErrTxBuildFailed, fmt.Errorf("gas price: %w", err))
	}
	gasPrice = applyBuffer(gasPrice, s.cfg.GasPriceBuffer)

	gasLimit, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     s.address,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		walletLogger.Warn().Err(err).Uint64("fallbackGasLimit", s.cfg.DefaultGasLimit).Msg("Gas estimation failed, using default gas limit")
		gasLimit = s.cfg.DefaultGasLimit
	} else {
		gasLimit = applyBuffer(new(big.Int).SetUint64(gasLimit), s.cfg.GasLimitBuffer).Uint64()
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return nil, errors.Join(ErrTxSignFailed, err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Join(ErrTxBroadcastFailed, err)
	}

	walletLogger.Info().
		Str("txHash", signed.Hash().Hex()).
		Str("to", to.Hex()).
		Uint64("nonce", nonce).
		Uint64("gasLimit", gasLimit).
		Msg("Transaction sent")

	receiptCtx, cancel := context.WithTimeout(ctx, s.cfg.ReceiptTimeout)
	defer cancel()

	receipt, err := s.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		walletLogger.Error().Str("txHash", signed.Hash().Hex()).Msg("Transaction reverted")
		return receipt, fmt.Errorf("%w: %s", ErrTxReverted, signed.Hash().Hex())
	}

	walletLogger.Debug().
		Str("txHash", signed.Hash().Hex()).
		Uint64("gasUsed", receipt.GasUsed).
		Int("logs", len(receipt.Logs)).
		Msg("Transaction confirmed")

	return receipt, nil
}

// waitForReceipt polls for a transaction receipt until confirmed or timeout.
func (s *SigningClient) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrReceiptTimeout, fmt.Errorf("%s: %w", txHash.Hex(), ctx.Err()))
		case <-ticker.C:
			receipt, err := s.backend.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

func applyBuffer(v *big.Int, buffer float64) *big.Int {
	if buffer <= 0 {
		return new(big.Int).Set(v)
	}
	// basis points keep the multiplication in integers
	bps := big.NewInt(10_000 + int64(buffer*10_000))
	out := new(big.Int).Mul(v, bps)
	return out.Div(out, big.NewInt(10_000))
}
