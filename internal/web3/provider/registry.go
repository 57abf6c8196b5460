package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ZKAttest-Chain/internal/config"
	"ZKAttest-Chain/internal/web3"
	"ZKAttest-Chain/internal/web3/ethereum"
)

// Registry manages verifier gateways keyed by human readable chain names.
type Registry struct {
	defaultChain string
	defs         web3.ChainDefinitions
	timeout      time.Duration

	mu        sync.Mutex
	verifiers map[string]web3.ProofVerifier
	dial      func(ctx context.Context, cfg ethereum.Config) (web3.ProofVerifier, error)
}

// NewRegistry loads chain definitions and checks that the default chain is usable.
func NewRegistry(cfg config.VerifierConfig) (*Registry, error) {
	defs, err := web3.LoadChainDefinitions(cfg.ChainsFile)
	if err != nil {
		return nil, err
	}
	if len(defs.Chains) == 0 {
		return nil, fmt.Errorf("未配置任何链的验证合约")
	}

	defaultChain := strings.TrimSpace(cfg.Chain)
	if defaultChain == "" {
		names := make([]string, 0, len(defs.Chains))
		for name := range defs.Chains {
			names = append(names, name)
		}
		sort.Strings(names)
		defaultChain = names[0]
	}
	if _, err := defs.Lookup(defaultChain); err != nil {
		return nil, err
	}

	return &Registry{
		defaultChain: defaultChain,
		defs:         defs,
		timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		verifiers:    make(map[string]web3.ProofVerifier),
		dial: func(ctx context.Context, cfg ethereum.Config) (web3.ProofVerifier, error) {
			return ethereum.NewVerifier(ctx, cfg)
		},
	}, nil
}

// DefaultChain returns the chain used when callers do not specify one.
func (r *Registry) DefaultChain() string {
	return r.defaultChain
}

// Chains lists the configured chain names in sorted order.
func (r *Registry) Chains() []string {
	names := make([]string, 0, len(r.defs.Chains))
	for name := range r.defs.Chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Verifier returns the gateway for the named chain, dialing it on first use.
func (r *Registry) Verifier(ctx context.Context, name string) (web3.ProofVerifier, error) {
	if name == "" {
		name = r.defaultChain
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.verifiers[name]; ok {
		return v, nil
	}
	chain, err := r.defs.Lookup(name)
	if err != nil {
		return nil, err
	}
	v, err := r.dial(ctx, ethereum.Config{
		Name:            name,
		RPCURL:          chain.RPCURL,
		VerifierAddress: chain.VerifierAddress,
		Timeout:         r.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化链 %s 的验证合约失败: %w", name, err)
	}
	r.verifiers[name] = v
	return v, nil
}

// Close shuts down every dialed verifier.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, v := range r.verifiers {
		v.Close()
		delete(r.verifiers, name)
	}
}
