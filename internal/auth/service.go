package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	xerrors "ZKAttest-Chain/internal/errors"
	"ZKAttest-Chain/pkg/logger"
)

// APIKeyHeader 是除 Authorization 之外可携带 key 的请求头。
const APIKeyHeader = "X-API-Key"

var knownPermissions = map[string]struct{}{
	"*":                {},
	PermissionExecute:  {},
	PermissionProve:    {},
	PermissionJobsRead: {},
}

type keyEntry struct {
	digest    []byte
	principal *Principal
	disabled  bool
}

// Service 负责校验调用方的 API Key。
type Service struct {
	mode  Mode
	keys  []keyEntry
	audit *slog.Logger
}

// NewService 根据配置构造认证服务，未配置 mode 时视为关闭。
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if mode == "" {
		mode = ModeDisabled
	}
	svc := &Service{mode: mode, audit: logger.Audit()}

	switch mode {
	case ModeDisabled:
		return svc, nil
	case ModeAPIKey:
	default:
		return nil, fmt.Errorf("不支持的认证模式: %s", cfg.Mode)
	}

	if len(cfg.Keys) == 0 {
		return nil, fmt.Errorf("api_key 模式至少需要配置一个 key")
	}
	seen := make(map[string]struct{}, len(cfg.Keys))
	for i, key := range cfg.Keys {
		name := strings.TrimSpace(key.Name)
		if name == "" {
			return nil, fmt.Errorf("第 %d 个 key 缺少 name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("key 名称重复: %s", name)
		}
		seen[name] = struct{}{}

		digest, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(key.SHA256), "0x"))
		if err != nil || len(digest) != sha256.Size {
			return nil, fmt.Errorf("key %s 的 sha256 摘要无效", name)
		}
		for _, perm := range key.Permissions {
			if _, ok := knownPermissions[strings.ToLower(strings.TrimSpace(perm))]; !ok {
				return nil, fmt.Errorf("key %s 包含未知权限: %s", name, perm)
			}
		}
		svc.keys = append(svc.keys, keyEntry{
			digest:    digest,
			principal: &Principal{Name: name, Permissions: append([]string(nil), key.Permissions...)},
			disabled:  key.Disabled,
		})
	}
	return svc, nil
}

// Enabled 报告是否需要认证。
func (s *Service) Enabled() bool {
	return s != nil && s.mode != ModeDisabled
}

// HashKey 返回 key 的 SHA-256 十六进制摘要，用于生成配置。
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Authenticate 校验明文 key 并返回对应调用方。
func (s *Service) Authenticate(_ context.Context, key string) (*Principal, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, xerrors.New(CodeUnauthenticated, "缺少 API Key")
	}
	sum := sha256.Sum256([]byte(key))

	var matched *keyEntry
	for i := range s.keys {
		if subtle.ConstantTimeCompare(sum[:], s.keys[i].digest) == 1 {
			matched = &s.keys[i]
		}
	}
	if matched == nil {
		return nil, xerrors.New(CodeUnauthenticated, "API Key 无效")
	}
	if matched.disabled {
		return nil, xerrors.New(CodePermissionDenied, "API Key 已停用", xerrors.WithMetadata("principal", matched.principal.Name))
	}
	return matched.principal, nil
}

// Authorize 检查上下文中的调用方是否拥有全部权限，认证关闭时直接放行。
func (s *Service) Authorize(ctx context.Context, permissions ...string) error {
	if !s.Enabled() {
		return nil
	}
	principal := PrincipalFromContext(ctx)
	if principal == nil {
		return xerrors.New(CodeUnauthenticated, "请求未经过认证")
	}
	for _, perm := range permissions {
		if !principal.HasPermission(perm) {
			return xerrors.New(CodePermissionDenied, "缺少权限 "+perm,
				xerrors.WithMetadata("principal", principal.Name),
				xerrors.WithMetadata("permission", perm),
			)
		}
	}
	return nil
}
