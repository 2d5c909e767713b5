package authz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenInvalid = errors.New("admin token invalid")

// AdminClaims 商户后台签发的管理员令牌
type AdminClaims struct {
	MerchantID string   `json:"merchant_id"`
	AdminID    string   `json:"admin_id"`
	Roles      []string `json:"roles"`
	jwt.RegisteredClaims
}

// SignAdminToken 签发 HS256 令牌（运维工具与测试使用）
func SignAdminToken(secret, issuer string, claims AdminClaims, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("%w: secret is empty", ErrTokenInvalid)
	}
	now := time.Now()
	if ttl <= 0 {
		ttl = time.Hour
	}
	claims.Issuer = issuer
	claims.Subject = claims.AdminID
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAdminToken 校验签名、签发方与有效期，并要求商户与管理员 ID 非空
func ParseAdminToken(secret, issuer, tokenString string) (*AdminClaims, error) {
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if strings.TrimSpace(issuer) != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(options...)
	claims := &AdminClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid || strings.TrimSpace(claims.MerchantID) == "" || strings.TrimSpace(claims.AdminID) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
