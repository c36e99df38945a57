package auth

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/anoixa/grammable/config"
	"github.com/anoixa/grammable/utils"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken 令牌无效或已过期
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenPair 包含访问令牌和刷新令牌
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// TokenClaims JWT 令牌声明
type TokenClaims struct {
	Username string
	UserID   uint
	Role     string
	Type     string
	Exp      int64
	Iat      int64
}

// TokenConfig 保存 JWT 配置
type TokenConfig struct {
	Secret           []byte
	ExpiresIn        time.Duration
	RefreshExpiresIn time.Duration
}

// JWTService JWT Token 服务
type JWTService struct {
	config TokenConfig
	mutex  sync.RWMutex
}

// TokenConfigFromApp 从应用配置解析 JWT 配置
// 开发环境未配置密钥时生成随机密钥，重启后旧令牌失效
func TokenConfigFromApp(cfg *config.Config) (TokenConfig, error) {
	expiresIn, err := time.ParseDuration(cfg.JWTExpiresIn)
	if err != nil {
		return TokenConfig{}, fmt.Errorf("invalid JWT access token TTL: %s", cfg.JWTExpiresIn)
	}
	refreshExpiresIn, err := time.ParseDuration(cfg.JWTRefreshExpiresIn)
	if err != nil {
		return TokenConfig{}, fmt.Errorf("invalid JWT refresh token TTL: %s", cfg.JWTRefreshExpiresIn)
	}

	secret := cfg.JWTSecret
	if secret == "" && config.IsDevelopment() {
		if secret, err = utils.GenerateRandomToken(48); err != nil {
			return TokenConfig{}, err
		}
		log.Println("[JWT] jwt_secret not set, using a random secret for this process")
	}

	return TokenConfig{
		Secret:           []byte(secret),
		ExpiresIn:        expiresIn,
		RefreshExpiresIn: refreshExpiresIn,
	}, nil
}

// NewJWTService 创建新的 JWT 服务
func NewJWTService(cfg TokenConfig) (*JWTService, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters long, got %d", len(cfg.Secret))
	}
	if cfg.ExpiresIn <= 0 || cfg.RefreshExpiresIn <= 0 {
		return nil, errors.New("JWT token TTLs must be positive")
	}

	log.Printf("[JWT] Access TTL: %v, Refresh TTL: %v", cfg.ExpiresIn, cfg.RefreshExpiresIn)
	return &JWTService{config: cfg}, nil
}

// GetConfig 获取当前 JWT 配置（只读）
func (s *JWTService) GetConfig() TokenConfig {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return TokenConfig{
		Secret:           append([]byte{}, s.config.Secret...),
		ExpiresIn:        s.config.ExpiresIn,
		RefreshExpiresIn: s.config.RefreshExpiresIn,
	}
}

// GenerateTokens 生成访问令牌和刷新令牌
func (s *JWTService) GenerateTokens(username string, userID uint, role string) (*TokenPair, error) {
	accessToken, accessTokenExpiry, err := s.GenerateAccessToken(username, userID, role)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshTokenExpiry, err := s.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:        accessToken,
		AccessTokenExpiry:  accessTokenExpiry,
		RefreshToken:       refreshToken,
		RefreshTokenExpiry: refreshTokenExpiry,
	}, nil
}

// GenerateAccessToken 仅生成访问令牌
func (s *JWTService) GenerateAccessToken(username string, userID uint, role string) (string, time.Time, error) {
	config := s.GetConfig()

	now := time.Now()
	accessTokenExpiry := now.Add(config.ExpiresIn)
	accessClaims := jwt.MapClaims{
		"username": username,
		"user_id":  userID,
		"role":     role,
		"type":     "access",
		"exp":      accessTokenExpiry.Unix(),
		"iat":      now.Unix(),
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(config.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, accessTokenExpiry, nil
}

// GenerateRefreshToken 生成刷新令牌
func (s *JWTService) GenerateRefreshToken() (string, time.Time, error) {
	config := s.GetConfig()

	refreshToken, err := utils.GenerateRandomToken(64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return refreshToken, time.Now().Add(config.RefreshExpiresIn), nil
}

// ParseToken 解析和验证 JWT 令牌
func (s *JWTService) ParseToken(tokenString string) (jwt.MapClaims, error) {
	config := s.GetConfig()

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return config.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExtractClaims 从访问令牌中提取声明，非访问令牌视为无效
func (s *JWTService) ExtractClaims(tokenString string) (*TokenClaims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	tokenType, _ := claims["type"].(string)
	userIDFloat, _ := claims["user_id"].(float64)
	expFloat, _ := claims["exp"].(float64)
	iatFloat, _ := claims["iat"].(float64)

	if tokenType != "access" || userIDFloat <= 0 {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		Username: username,
		UserID:   uint(userIDFloat),
		Role:     role,
		Type:     tokenType,
		Exp:      int64(expFloat),
		Iat:      int64(iatFloat),
	}, nil
}
