package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/model"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/jwt"
	"github.com/qs3c/subscription_server/internal/pkg/oauth"
	"github.com/qs3c/subscription_server/internal/pkg/tokenstore"
	"github.com/qs3c/subscription_server/internal/repository"
)

var (
	ErrEmailExists         = errors.New("邮箱已被注册")
	ErrUsernameExists      = errors.New("用户名已被使用")
	ErrPasswordMismatch    = errors.New("两次输入的密码不一致")
	ErrInvalidCredentials  = errors.New("邮箱或密码错误")
	ErrInvalidRefreshToken = errors.New("刷新令牌无效或已过期")
	ErrGithubNotConfigured = errors.New("未配置 GitHub 登录")
	ErrUserNotFound        = errors.New("用户不存在")
)

// GithubProvider GitHub OAuth 能力
type GithubProvider interface {
	Enabled() bool
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	GetUser(ctx context.Context, token *oauth2.Token) (*oauth.GithubUser, error)
}

type AuthService struct {
	userRepo    *repository.UserRepository
	tokens      *tokenstore.Store
	cfg         *config.Config
	githubOAuth GithubProvider
}

func NewAuthService(userRepo *repository.UserRepository, tokens *tokenstore.Store, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		cfg:      cfg,
		githubOAuth: oauth.NewGithubOAuth(
			cfg.OAuth.Github.ClientID,
			cfg.OAuth.Github.ClientSecret,
			cfg.OAuth.Github.RedirectURI,
		),
	}
}

// Register 用户注册，成功后直接签发令牌
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if req.Password != req.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	// 检查邮箱是否存在
	exists, err := s.userRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	// 检查用户名是否存在
	exists, err = s.userRepo.ExistsByUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	email := req.Email
	passwordStr := string(hashedPassword)
	user := &model.User{
		Username:     req.Username,
		Email:        &email,
		PasswordHash: &passwordStr,
		IsActive:     true,
		IsAdmin:      s.cfg.Admin.IsAdminEmail(email),
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	return s.issue(ctx, user)
}

// Login 邮箱密码登录。用户不存在、已停用或密码错误统一返回 ErrInvalidCredentials
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// Refresh 用刷新令牌换取新的令牌对，旧刷新令牌同时作废
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenPair, error) {
	claims, err := jwt.ParseRefreshToken(refreshToken, s.cfg.JWT.Secret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	userID, err := s.tokens.Consume(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if userID != claims.UserID {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidRefreshToken
	}

	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &dto.TokenPair{Refresh: resp.Refresh, Access: resp.Access}, nil
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GithubEnabled 是否启用 GitHub 登录
func (s *AuthService) GithubEnabled() bool {
	return s.githubOAuth.Enabled()
}

// GetGithubAuthURL 获取 GitHub 授权 URL
func (s *AuthService) GetGithubAuthURL(state string) string {
	return s.githubOAuth.GetAuthURL(state)
}

// GithubCallback 处理 GitHub OAuth 回调
func (s *AuthService) GithubCallback(ctx context.Context, code string) (*dto.AuthResponse, error) {
	if !s.githubOAuth.Enabled() {
		return nil, ErrGithubNotConfigured
	}

	// 用 code 换取 token
	token, err := s.githubOAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	githubUser, err := s.githubOAuth.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get github user: %w", err)
	}

	githubIDStr := fmt.Sprintf("%d", githubUser.ID)

	user, err := s.userRepo.GetByGithubID(githubIDStr)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if user == nil {
		user, err = s.createGithubUser(githubUser, githubIDStr)
		if err != nil {
			return nil, err
		}
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *AuthService) createGithubUser(githubUser *oauth.GithubUser, githubID string) (*model.User, error) {
	// 邮箱已被本地账号使用时绑定到该账号
	if githubUser.Email != "" {
		existing, err := s.userRepo.GetByEmail(githubUser.Email)
		if err == nil {
			if err := s.userRepo.UpdateFields(existing.ID, map[string]interface{}{"github_id": githubID}); err != nil {
				return nil, err
			}
			existing.GithubID = &githubID
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user := &model.User{
		Username:  githubUser.Login,
		GithubID:  &githubID,
		AvatarURL: githubUser.AvatarURL,
		IsActive:  true,
	}
	if githubUser.Email != "" {
		user.Email = &githubUser.Email
		user.IsAdmin = s.cfg.Admin.IsAdminEmail(githubUser.Email)
	}

	// 确保用户名唯一
	exists, err := s.userRepo.ExistsByUsername(user.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		user.Username = fmt.Sprintf("%s_%d", githubUser.Login, githubUser.ID)
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// issue 签发访问令牌和刷新令牌，刷新令牌 jti 记录到 Redis
func (s *AuthService) issue(ctx context.Context, user *model.User) (*dto.AuthResponse, error) {
	access, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	refresh, jti, err := jwt.GenerateRefreshToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.RefreshExpireHours)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(s.cfg.JWT.RefreshExpireHours) * time.Hour
	if err := s.tokens.Save(ctx, jti, user.ID, ttl); err != nil {
		return nil, err
	}

	resp := &dto.AuthResponse{
		UserID:   user.ID,
		Username: user.Username,
		Refresh:  refresh,
		Access:   access,
	}
	if user.Email != nil {
		resp.Email = *user.Email
	}
	return resp, nil
}
