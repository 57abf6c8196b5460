package auth

import (
	"net/http"
	"strings"

	xerrors "ZKAttest-Chain/internal/errors"
)

// Mode 决定认证方式。
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeAPIKey   Mode = "api_key"
)

// 权限标识。
const (
	PermissionExecute  = "attest:execute"
	PermissionProve    = "attest:prove"
	PermissionJobsRead = "jobs:read"
)

const (
	CodeUnauthenticated  xerrors.Code = "UNAUTHENTICATED"
	CodePermissionDenied xerrors.Code = "PERMISSION_DENIED"
)

func init() {
	xerrors.Register(CodeUnauthenticated, xerrors.Attributes{
		Message:    "缺少或无效的 API Key",
		Severity:   xerrors.SeverityWarning,
		HTTPStatus: http.StatusUnauthorized,
	})
	xerrors.Register(CodePermissionDenied, xerrors.Attributes{
		Message:    "权限不足",
		Severity:   xerrors.SeverityWarning,
		HTTPStatus: http.StatusForbidden,
	})
}

// Config 描述 API Key 认证配置。
type Config struct {
	Mode Mode           `json:"mode"`
	Keys []APIKeyConfig `json:"keys"`
}

// APIKeyConfig 描述一个调用方，只保存 key 的 SHA-256 十六进制摘要。
type APIKeyConfig struct {
	Name        string   `json:"name"`
	SHA256      string   `json:"sha256"`
	Permissions []string `json:"permissions"`
	Disabled    bool     `json:"disabled"`
}

// Principal 是通过认证的调用方。
type Principal struct {
	Name        string
	Permissions []string
}

// HasPermission 判断调用方是否拥有指定权限，"*" 代表全部权限。
func (p *Principal) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(permission))
	for _, perm := range p.Permissions {
		perm = strings.ToLower(strings.TrimSpace(perm))
		if perm == "*" || perm == want {
			return true
		}
	}
	return false
}
