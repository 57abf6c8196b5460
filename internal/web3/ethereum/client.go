package ethereum

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "ZKAttest-Chain/internal/errors"
	"ZKAttest-Chain/internal/web3"
)

// verifierABI is the gateway interface: the call reverts when the proof is invalid.
const verifierABI = `[{"type":"function","name":"verifyProof","stateMutability":"view","inputs":[` +
	`{"name":"programVKey","type":"bytes32"},` +
	`{"name":"publicValues","type":"bytes"},` +
	`{"name":"proofBytes","type":"bytes"}],"outputs":[]}]`

var parsedVerifierABI = mustParseABI(verifierABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse verifier abi: %v", err))
	}
	return parsed
}

// Config describes how to reach a verifier gateway.
type Config struct {
	Name            string
	RPCURL          string
	VerifierAddress string
	Timeout         time.Duration
}

// Verifier performs eth_call against a deployed verifier gateway.
type Verifier struct {
	name    string
	address common.Address
	caller  web3.ContractCaller
	timeout time.Duration

	mu     sync.Mutex
	client *ethclient.Client
}

// NewVerifier dials the configured RPC endpoint and returns a ready-to-use verifier.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, stdErrors.New("未配置以太坊 RPC 地址")
	}
	if !common.IsHexAddress(cfg.VerifierAddress) {
		return nil, fmt.Errorf("验证合约地址无效: %q", cfg.VerifierAddress)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	v := NewVerifierWithCaller(cfg.Name, client, common.HexToAddress(cfg.VerifierAddress), cfg.Timeout)
	v.client = client
	return v, nil
}

// NewVerifierWithCaller wraps an existing contract caller, such as a simulated backend.
func NewVerifierWithCaller(name string, caller web3.ContractCaller, address common.Address, timeout time.Duration) *Verifier {
	return &Verifier{name: name, address: address, caller: caller, timeout: timeout}
}

// Address returns the gateway contract address.
func (v *Verifier) Address() common.Address {
	return v.address
}

// VerifyProof returns true when the gateway accepts the proof and false when it reverts.
// Transport failures are reported as retryable upstream errors.
func (v *Verifier) VerifyProof(ctx context.Context, vkey common.Hash, publicValues, proof []byte) (bool, error) {
	if v == nil || v.caller == nil {
		return false, xerrors.New(xerrors.CodeInitializationFailure, "验证合约客户端未初始化")
	}
	input, err := PackVerifyProof(vkey, publicValues, proof)
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码 verifyProof 调用失败")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	to := v.address
	_, err = v.caller.CallContract(ctx, gethcore.CallMsg{To: &to, Data: input}, nil)
	if err == nil {
		return true, nil
	}
	if isRevert(err) {
		return false, nil
	}
	return false, xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "调用验证合约失败",
		xerrors.WithMetadata("chain", v.name),
		xerrors.WithMetadata("verifier", v.address.Hex()))
}

// Close releases the RPC connection when the verifier owns it.
func (v *Verifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.client != nil {
		v.client.Close()
		v.client = nil
	}
}

// PackVerifyProof encodes the verifyProof(bytes32,bytes,bytes) calldata.
func PackVerifyProof(vkey common.Hash, publicValues, proof []byte) ([]byte, error) {
	return parsedVerifierABI.Pack("verifyProof", [32]byte(vkey), publicValues, proof)
}

func isRevert(err error) bool {
	var dataErr gethrpc.DataError
	if stdErrors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

var _ web3.ProofVerifier = (*Verifier)(nil)
