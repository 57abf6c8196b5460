package prover

import (
	"bytes"
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	xerrors "ZKAttest-Chain/internal/errors"
)

const mockSystem = "mock"

// MockProver 以 keccak256(vkey || public_values) 充当证明，结果确定且可在本地验证。
type MockProver struct {
	system string
}

// NewMockProver 创建模拟证明器，system 为空时标记为 mock。
func NewMockProver(system string) *MockProver {
	if strings.TrimSpace(system) == "" {
		system = mockSystem
	}
	return &MockProver{system: system}
}

// Setup 由程序标识派生密钥。
func (m *MockProver) Setup(ctx context.Context, program Program) (Keys, error) {
	if err := ctx.Err(); err != nil {
		return Keys{}, err
	}
	if strings.TrimSpace(program.ID) == "" {
		return Keys{}, xerrors.New(xerrors.CodeInvalidArgument, "program id is required")
	}
	handle := crypto.Keccak256([]byte("attest-pk:" + program.ID))
	return Keys{
		Proving:   ProvingKey{Program: program.ID, Handle: handle},
		Verifying: VerifyingKey{Program: program.ID, Hash: crypto.Keccak256Hash(handle)},
	}, nil
}

// Prove 生成模拟证明。
func (m *MockProver) Prove(ctx context.Context, key ProvingKey, publicValues []byte) (*Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(CodeGenerationFailed, err, "proving cancelled")
	}
	if len(key.Handle) == 0 {
		return nil, xerrors.New(CodeGenerationFailed, "proving key has no handle", xerrors.WithRetryable(false))
	}
	vk := crypto.Keccak256Hash(key.Handle)
	return &Proof{
		Program:      key.Program,
		System:       m.system,
		PublicValues: bytes.Clone(publicValues),
		Bytes:        crypto.Keccak256(vk.Bytes(), publicValues),
	}, nil
}

// Verify 重新计算摘要并比较。
func (m *MockProver) Verify(ctx context.Context, proof *Proof, key VerifyingKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if proof == nil {
		return false, xerrors.New(CodeVerificationFailed, "proof is nil")
	}
	if proof.Program != key.Program {
		return false, nil
	}
	expected := crypto.Keccak256(key.Hash.Bytes(), proof.PublicValues)
	return bytes.Equal(expected, proof.Bytes), nil
}
