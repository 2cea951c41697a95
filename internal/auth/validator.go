package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"taskhub/internal/apperr"
)

// Scope 常量
const (
	ScopeTasksRead      = "tasks:read"
	ScopeTasksWrite     = "tasks:write"
	ScopeProjectsRead   = "projects:read"
	ScopeProjectsWrite  = "projects:write"
	ScopeUsersRead      = "users:read"
	ScopeUsersWrite     = "users:write"
	ScopeWebhooksManage = "webhooks:manage"
)

// Principal 已认证的调用方：token 主体 + 授予的 scope 集合
type Principal struct {
	Subject string
	Scopes  []string
}

func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Validator 校验外部 issuer 签发的 bearer token（HS256，共享密钥）
type Validator struct {
	secret string
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: secret}
}

// Validate parses the token and extracts subject and scopes.
// Any parse/expiry/signature failure maps to Unauthenticated.
func (v *Validator) Validate(tokenStr string) (*Principal, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(v.secret), nil
	})
	if err != nil {
		return nil, apperr.Unauthenticated("invalid or expired token")
	}
	if !token.Valid {
		return nil, apperr.Unauthenticated("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperr.Unauthenticated("malformed token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, apperr.Unauthenticated("token has no subject")
	}

	return &Principal{
		Subject: sub,
		Scopes:  extractScopes(claims),
	}, nil
}

// extractScopes 兼容两种形态：scopes 数组 claim 或 OAuth 风格的
// 空格分隔 scope 字符串
func extractScopes(claims jwt.MapClaims) []string {
	var scopes []string

	if raw, ok := claims["scopes"].([]interface{}); ok {
		for _, s := range raw {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	}

	if raw, ok := claims["scope"].(string); ok && raw != "" {
		return strings.Fields(raw)
	}

	return scopes
}

// ExtractToken pulls the bearer token out of the Authorization header.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
