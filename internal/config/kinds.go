package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ZKAttest-Chain/internal/attestation"
)

// KindDefinitions 对应 configs/kinds.yaml 的结构。
type KindDefinitions struct {
	Kinds map[string]KindDefinition `yaml:"kinds"`
}

// KindDefinition 描述单个证明类型的信任边界与证明程序。
type KindDefinition struct {
	Program              string `yaml:"program"`
	ExpectedRecipient    string `yaml:"expected_recipient"`
	ExpectedOrganization string `yaml:"expected_organization"`
	Description          string `yaml:"description"`
}

// LoadKindDefinitions 解析证明类型配置，未知类型与非法地址在这里直接报错。
func LoadKindDefinitions(path string) (KindDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return KindDefinitions{Kinds: map[string]KindDefinition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return KindDefinitions{}, fmt.Errorf("读取证明类型配置失败: %w", err)
	}

	var defs KindDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return KindDefinitions{}, fmt.Errorf("解析证明类型配置失败: %w", err)
	}
	if defs.Kinds == nil {
		defs.Kinds = map[string]KindDefinition{}
	}
	if err := defs.validate(); err != nil {
		return KindDefinitions{}, err
	}
	return defs, nil
}

func (d KindDefinitions) validate() error {
	for name, def := range d.Kinds {
		kind := attestation.Kind(name)
		if !kind.Valid() {
			return fmt.Errorf("未知的证明类型: %s", name)
		}
		if kind == attestation.KindXRPTx && def.ExpectedRecipient != "" && !attestation.ValidLedgerAddress(def.ExpectedRecipient) {
			return fmt.Errorf("%s 的收款地址不是合法的账本地址: %s", name, def.ExpectedRecipient)
		}
	}
	return nil
}

// Policies 把配置转换为校验器使用的策略表。
func (d KindDefinitions) Policies() map[attestation.Kind]attestation.KindPolicy {
	policies := make(map[attestation.Kind]attestation.KindPolicy, len(d.Kinds))
	for name, def := range d.Kinds {
		policies[attestation.Kind(name)] = attestation.KindPolicy{
			ExpectedRecipient:    strings.TrimSpace(def.ExpectedRecipient),
			ExpectedOrganization: strings.TrimSpace(def.ExpectedOrganization),
		}
	}
	return policies
}

// Program 返回某个类型对应的证明程序标识，未配置时使用类型名加版本后缀。
func (d KindDefinitions) Program(kind attestation.Kind) string {
	if def, ok := d.Kinds[string(kind)]; ok && strings.TrimSpace(def.Program) != "" {
		return strings.TrimSpace(def.Program)
	}
	return string(kind) + "-v1"
}

// MissingRecipients 列出缺少收款地址、因而无法受理的交易类证明类型。
func (d KindDefinitions) MissingRecipients() []attestation.Kind {
	var missing []attestation.Kind
	for _, kind := range attestation.Kinds() {
		if !kind.IsTransaction() {
			continue
		}
		if def, ok := d.Kinds[string(kind)]; !ok || strings.TrimSpace(def.ExpectedRecipient) == "" {
			missing = append(missing, kind)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}
