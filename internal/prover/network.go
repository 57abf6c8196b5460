package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	xerrors "ZKAttest-Chain/internal/errors"
)

const defaultNetworkTimeout = 5 * time.Minute

// NetworkConfig 描述远程证明服务的连接信息。
type NetworkConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NetworkProver 通过 HTTP 调用远程证明服务。
type NetworkProver struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewNetworkProver 根据配置创建远程证明器。
func NewNetworkProver(cfg NetworkConfig) (*NetworkProver, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "prover endpoint is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultNetworkTimeout
	}
	return &NetworkProver{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type setupResponse struct {
	ProvingKey   hexutil.Bytes `json:"proving_key"`
	VerifyingKey common.Hash   `json:"vkey_hash"`
}

type proveResponse struct {
	PublicValues hexutil.Bytes `json:"public_values"`
	Proof        hexutil.Bytes `json:"proof"`
	System       string        `json:"system"`
}

type verifyResponse struct {
	Valid bool `json:"valid"`
}

// Setup 请求服务为程序生成密钥。
func (n *NetworkProver) Setup(ctx context.Context, program Program) (Keys, error) {
	var resp setupResponse
	err := n.call(ctx, "/v1/setup", map[string]any{"program": program.ID, "kind": program.Kind}, &resp)
	if err != nil {
		return Keys{}, err
	}
	if len(resp.ProvingKey) == 0 {
		return Keys{}, xerrors.New(CodeGenerationFailed, "prover returned an empty proving key")
	}
	return Keys{
		Proving:   ProvingKey{Program: program.ID, Handle: resp.ProvingKey},
		Verifying: VerifyingKey{Program: program.ID, Hash: resp.VerifyingKey},
	}, nil
}

// Prove 提交公开值并等待证明返回。
func (n *NetworkProver) Prove(ctx context.Context, key ProvingKey, publicValues []byte) (*Proof, error) {
	var resp proveResponse
	err := n.call(ctx, "/v1/prove", map[string]any{
		"program":       key.Program,
		"proving_key":   hexutil.Bytes(key.Handle),
		"public_values": hexutil.Bytes(publicValues),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Proof) == 0 {
		return nil, xerrors.New(CodeGenerationFailed, "prover returned an empty proof")
	}
	return &Proof{
		Program:      key.Program,
		System:       resp.System,
		PublicValues: resp.PublicValues,
		Bytes:        resp.Proof,
	}, nil
}

// Verify 请求服务校验证明。
func (n *NetworkProver) Verify(ctx context.Context, proof *Proof, key VerifyingKey) (bool, error) {
	if proof == nil {
		return false, xerrors.New(CodeVerificationFailed, "proof is nil")
	}
	var resp verifyResponse
	err := n.call(ctx, "/v1/verify", map[string]any{
		"program":       key.Program,
		"vkey_hash":     key.Hash,
		"public_values": hexutil.Bytes(proof.PublicValues),
		"proof":         hexutil.Bytes(proof.Bytes),
		"system":        proof.System,
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (n *NetworkProver) call(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化证明请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构建证明请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return xerrors.Wrap(CodeGenerationFailed, err, "请求证明服务失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		message := fmt.Sprintf("证明服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		// 除限流外的 4xx 不重试。
		return xerrors.New(CodeGenerationFailed, message, xerrors.WithRetryable(resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xerrors.Wrap(CodeGenerationFailed, err, "解析证明服务响应失败")
	}
	return nil
}
