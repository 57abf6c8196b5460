package prover

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"ZKAttest-Chain/internal/attestation"
	xerrors "ZKAttest-Chain/internal/errors"
)

const (
	CodeGenerationFailed     xerrors.Code = "PROOF_GENERATION_FAILED"
	CodeVerificationFailed   xerrors.Code = "PROOF_VERIFICATION_FAILED"
	CodePublicValuesMismatch xerrors.Code = "PROOF_PUBLIC_VALUES_MISMATCH"
)

var (
	ErrGenerationFailed     = xerrors.New(CodeGenerationFailed, "")
	ErrVerificationFailed   = xerrors.New(CodeVerificationFailed, "")
	ErrPublicValuesMismatch = xerrors.New(CodePublicValuesMismatch, "")
)

func init() {
	xerrors.Register(CodeGenerationFailed, xerrors.Attributes{
		Message:    "proof generation failed",
		Severity:   xerrors.SeverityWarning,
		Retryable:  true,
		HTTPStatus: http.StatusBadGateway,
	})
	xerrors.Register(CodeVerificationFailed, xerrors.Attributes{
		Message:    "proof verification failed",
		Severity:   xerrors.SeverityCritical,
		Alert:      true,
		HTTPStatus: http.StatusUnprocessableEntity,
	})
	xerrors.Register(CodePublicValuesMismatch, xerrors.Attributes{
		Message:    "proof public values do not match the attestation",
		Severity:   xerrors.SeverityCritical,
		Alert:      true,
		HTTPStatus: http.StatusUnprocessableEntity,
	})
}

// Program 标识一个证明程序，每种证明类型对应一个程序。
type Program struct {
	ID   string
	Kind attestation.Kind
}

// ProvingKey 是生成证明所需的密钥句柄。
type ProvingKey struct {
	Program string
	Handle  []byte
}

// VerifyingKey 用 32 字节摘要标识程序，链上验证合约也使用同一摘要。
type VerifyingKey struct {
	Program string
	Hash    common.Hash
}

// Keys 是 Setup 的产物。
type Keys struct {
	Proving   ProvingKey
	Verifying VerifyingKey
}

// Proof 是证明协作方返回的不透明证明。
type Proof struct {
	Program      string
	System       string
	PublicValues []byte
	Bytes        []byte
}

// Prover 是零知识执行环境的边界，本仓库不建模证明系统本身。
type Prover interface {
	Setup(ctx context.Context, program Program) (Keys, error)
	Prove(ctx context.Context, key ProvingKey, publicValues []byte) (*Proof, error)
	Verify(ctx context.Context, proof *Proof, key VerifyingKey) (bool, error)
}
