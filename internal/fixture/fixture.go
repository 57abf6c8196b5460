// Package fixture stores proof fixtures consumed by the Solidity verifier
// test suite.
package fixture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Fixture 是一次证明的完整样例。
type Fixture struct {
	Kind         string         `json:"kind"`
	Program      string         `json:"program"`
	Record       map[string]any `json:"record"`
	VKey         common.Hash    `json:"vkey"`
	PublicValues hexutil.Bytes  `json:"public_values"`
	Proof        hexutil.Bytes  `json:"proof"`
	System       string         `json:"system"`
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Writer 把样例写入目录。
type Writer struct {
	dir string
}

// NewWriter 创建样例写入器。
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Path 返回样例文件路径，格式为 <program>-<system>-fixture.json。
func (w *Writer) Path(program, system string) string {
	name := fmt.Sprintf("%s-%s-fixture.json", sanitize(program), sanitize(system))
	return filepath.Join(w.dir, name)
}

// Write 覆盖写入样例并返回文件路径。
func (w *Writer) Write(f Fixture) (string, error) {
	if strings.TrimSpace(w.dir) == "" {
		return "", fmt.Errorf("样例目录未配置")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建样例目录失败: %w", err)
	}
	content, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化样例失败: %w", err)
	}
	path := w.Path(f.Program, f.System)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return "", fmt.Errorf("写入样例失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("写入样例失败: %w", err)
	}
	return path, nil
}

// Read 读取样例文件。
func Read(path string) (Fixture, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("读取样例失败: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(content, &f); err != nil {
		return Fixture{}, fmt.Errorf("解析样例失败: %w", err)
	}
	return f, nil
}

func sanitize(value string) string {
	value = unsafeName.ReplaceAllString(strings.TrimSpace(value), "_")
	if value == "" {
		return "unknown"
	}
	return value
}
