package auth

import (
	"net/http"
	"strings"
)

// ErrorWriter 负责把认证错误写回客户端。
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware 对请求进行认证并校验固定权限。
func (s *Service) Middleware(onError ErrorWriter, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := s.Authenticate(r.Context(), keyFromRequest(r))
			if err != nil {
				s.audit.Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"error", err.Error(),
				)
				onError(w, r, err)
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			if err := s.Authorize(ctx, permissions...); err != nil {
				s.audit.Warn("permission_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"principal", principal.Name,
					"error", err.Error(),
				)
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func keyFromRequest(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get(APIKeyHeader)
}
