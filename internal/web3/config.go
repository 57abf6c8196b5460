package web3

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ChainDefinitions models the structure of configs/chains.yaml.
type ChainDefinitions struct {
	Chains map[string]ChainDefinition `yaml:"chains"`
}

// ChainDefinition describes a chain endpoint and the verifier gateway deployed on it.
type ChainDefinition struct {
	Type            string `yaml:"type"`
	RPCURL          string `yaml:"rpc_url"`
	VerifierAddress string `yaml:"verifier_address"`
	Description     string `yaml:"description"`
}

// LoadChainDefinitions parses the YAML file containing chain metadata.
func LoadChainDefinitions(path string) (ChainDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return ChainDefinitions{Chains: map[string]ChainDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ChainDefinitions{}, fmt.Errorf("读取链配置失败: %w", err)
	}

	var defs ChainDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return ChainDefinitions{}, fmt.Errorf("解析链配置失败: %w", err)
	}
	if defs.Chains == nil {
		defs.Chains = map[string]ChainDefinition{}
	}
	return defs, nil
}

// Lookup returns the named chain after checking it can host a verifier call.
func (d ChainDefinitions) Lookup(name string) (ChainDefinition, error) {
	chain, ok := d.Chains[name]
	if !ok {
		return ChainDefinition{}, fmt.Errorf("链 %s 未在配置中找到", name)
	}
	switch strings.ToLower(strings.TrimSpace(chain.Type)) {
	case "", "evm", "ethereum":
	default:
		return ChainDefinition{}, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, chain.Type)
	}
	if strings.TrimSpace(chain.RPCURL) == "" {
		return ChainDefinition{}, fmt.Errorf("链 %s 缺少 rpc_url", name)
	}
	if !common.IsHexAddress(chain.VerifierAddress) {
		return ChainDefinition{}, fmt.Errorf("链 %s 的 verifier_address 无效: %q", name, chain.VerifierAddress)
	}
	return chain, nil
}
