package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/freechat/session-go/internal/errors"
)

// Claims 会话服务的JWT声明
// 用户ID是字符串，和会话存储的键保持一致。
type Claims struct {
	UserID  string   `json:"user_id"`
	TeamIDs []string `json:"team_ids,omitempty"`
	jwt.RegisteredClaims
}

// JWTService JWT签发与验证
type JWTService struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
}

// NewJWTService 创建JWT服务
func NewJWTService(secretKey, issuer string, expiresIn time.Duration) *JWTService {
	if secretKey == "" {
		panic("JWT secret key cannot be empty")
	}
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expiresIn: expiresIn,
	}
}

// GenerateToken 为用户签发token
func (j *JWTService) GenerateToken(userID string, teamIDs []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  userID,
		TeamIDs: teamIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

// ValidateToken 验证token并返回声明
// 任何验证失败都映射为授权错误，中间件据此返回401。
func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, apperrors.NewAuthorizationError("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.NewAuthorizationError("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, apperrors.NewAuthorizationError("token missing user id")
	}
	return claims, nil
}

// ExtractTokenFromHeader 从Authorization头提取Bearer token
func ExtractTokenFromHeader(authHeader string) (string, error) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", apperrors.NewAuthorizationError("authorization header must be a bearer token")
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", apperrors.NewAuthorizationError("token is empty")
	}
	return token, nil
}
