// Package auth 为 attestd 的 REST 接口提供基于 API Key 的认证与权限校验。
package auth
