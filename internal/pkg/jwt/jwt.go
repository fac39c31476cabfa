package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrEmptySecret  = errors.New("jwt secret is empty")
)

// 令牌类型
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims JWT 载荷
type Claims struct {
	UserID int64  `json:"user_id"`
	Type   string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken 生成访问令牌
func GenerateToken(userID int64, secret string, expireHours int) (string, error) {
	token, _, err := sign(userID, TypeAccess, secret, expireHours)
	return token, err
}

// GenerateRefreshToken 生成刷新令牌，返回令牌及其 jti
func GenerateRefreshToken(userID int64, secret string, expireHours int) (string, string, error) {
	return sign(userID, TypeRefresh, secret, expireHours)
}

func sign(userID int64, typ, secret string, expireHours int) (string, string, error) {
	if secret == "" {
		return "", "", ErrEmptySecret
	}

	now := time.Now()
	jti := uuid.NewString()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ParseToken 解析访问令牌，刷新令牌不能用于访问接口
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims, err := parse(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Type == TypeRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefreshToken 解析刷新令牌
func ParseRefreshToken(tokenString, secret string) (*Claims, error) {
	claims, err := parse(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func parse(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
