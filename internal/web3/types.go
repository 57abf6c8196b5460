package web3

import (
	"context"
	"math/big"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller is the read-only subset of an EVM client needed for eth_call.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ProofVerifier checks a proof against an on-chain verifier gateway.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, vkey common.Hash, publicValues, proof []byte) (bool, error)
	Close()
}
