package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/subscription_server/config"
	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/jwt"
	"github.com/qs3c/subscription_server/internal/pkg/oauth"
	"github.com/qs3c/subscription_server/internal/pkg/tokenstore"
	"github.com/qs3c/subscription_server/internal/repository"
	"github.com/qs3c/subscription_server/internal/testutil"
)

const testSecret = "test-secret-key-for-testing"

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             testSecret,
			ExpireHours:        1,
			RefreshExpireHours: 24,
		},
		Admin: config.AdminConfig{
			Emails: []string{"admin@example.com"},
		},
		OAuth: config.OAuthConfig{
			Github: config.GithubOAuthConfig{
				ClientID:     "test-client-id",
				ClientSecret: "test-client-secret",
				RedirectURI:  "http://localhost:8080/callback",
			},
		},
	}
}

func setupAuthService(t *testing.T) (*AuthService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	rdb, _ := testutil.SetupTestRedis(t)

	service := NewAuthService(repository.NewUserRepository(db), tokenstore.New(rdb), testConfig())

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func registerRequest(email, username string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Email:           email,
		Username:        username,
		Password:        "password123",
		PasswordConfirm: "password123",
	}
}

type fakeGithub struct {
	user        *oauth.GithubUser
	exchangeErr error
}

func (f *fakeGithub) Enabled() bool { return true }

func (f *fakeGithub) GetAuthURL(state string) string {
	return "https://github.com/login?state=" + state
}

func (f *fakeGithub) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "gh-" + code}, nil
}

func (f *fakeGithub) GetUser(ctx context.Context, token *oauth2.Token) (*oauth.GithubUser, error) {
	return f.user, nil
}

func TestAuthService_Register_Success(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	resp, err := service.Register(context.Background(), registerRequest("newuser@example.com", "newuser"))
	require.NoError(t, err)
	assert.NotZero(t, resp.UserID)
	assert.Equal(t, "newuser@example.com", resp.Email)
	assert.Equal(t, "newuser", resp.Username)

	claims, err := jwt.ParseToken(resp.Access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, claims.UserID)

	refreshClaims, err := jwt.ParseRefreshToken(resp.Refresh, testSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, refreshClaims.UserID)
}

func TestAuthService_Register_PasswordMismatch(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	req := registerRequest("mismatch@example.com", "mismatch")
	req.PasswordConfirm = "password456"

	_, err := service.Register(context.Background(), req)
	assert.Equal(t, ErrPasswordMismatch, err)

	var count int64
	require.NoError(t, db.Table("users").Count(&count).Error)
	assert.Zero(t, count)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	_, err := service.Register(context.Background(), registerRequest("duplicate@example.com", "user1"))
	require.NoError(t, err)

	_, err = service.Register(context.Background(), registerRequest("duplicate@example.com", "user2"))
	assert.Equal(t, ErrEmailExists, err)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	_, err := service.Register(context.Background(), registerRequest("user1@example.com", "sameusername"))
	require.NoError(t, err)

	_, err = service.Register(context.Background(), registerRequest("user2@example.com", "sameusername"))
	assert.Equal(t, ErrUsernameExists, err)
}

func TestAuthService_Register_AdminEmail(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	resp, err := service.Register(context.Background(), registerRequest("admin@example.com", "admin"))
	require.NoError(t, err)

	user, err := service.GetUserByID(resp.UserID)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	resp, err = service.Register(context.Background(), registerRequest("plain@example.com", "plain"))
	require.NoError(t, err)

	user, err = service.GetUserByID(resp.UserID)
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)
}

func TestAuthService_Login_Success(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	registered, err := service.Register(context.Background(), registerRequest("login@example.com", "login"))
	require.NoError(t, err)

	resp, err := service.Login(context.Background(), &dto.LoginRequest{
		Email:    "login@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, resp.UserID)
	assert.NotEmpty(t, resp.Access)
	assert.NotEmpty(t, resp.Refresh)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	testutil.TestUser(t, db, testutil.WithEmail("known@example.com"))
	inactive := testutil.TestUser(t, db, testutil.WithEmail("inactive@example.com"))
	require.NoError(t, db.Table("users").Where("id = ?", inactive.ID).Update("is_active", false).Error)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nonexistent@example.com", testutil.TestPassword},
		{"wrong password", "known@example.com", "wrong-password"},
		{"inactive user", "inactive@example.com", testutil.TestPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(context.Background(), &dto.LoginRequest{Email: tt.email, Password: tt.password})
			assert.Equal(t, ErrInvalidCredentials, err)
		})
	}
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	ctx := context.Background()
	registered, err := service.Register(ctx, registerRequest("refresh@example.com", "refresh"))
	require.NoError(t, err)

	pair, err := service.Refresh(ctx, registered.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.NotEqual(t, registered.Refresh, pair.Refresh)

	claims, err := jwt.ParseToken(pair.Access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, claims.UserID)

	// 旧刷新令牌不能重复使用
	_, err = service.Refresh(ctx, registered.Refresh)
	assert.Equal(t, ErrInvalidRefreshToken, err)

	// 新刷新令牌可以继续使用
	_, err = service.Refresh(ctx, pair.Refresh)
	assert.NoError(t, err)
}

func TestAuthService_Refresh_Invalid(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	ctx := context.Background()
	registered, err := service.Register(ctx, registerRequest("r@example.com", "rrrr"))
	require.NoError(t, err)

	// 访问令牌不能当刷新令牌用
	_, err = service.Refresh(ctx, registered.Access)
	assert.Equal(t, ErrInvalidRefreshToken, err)

	_, err = service.Refresh(ctx, "garbage")
	assert.Equal(t, ErrInvalidRefreshToken, err)

	// 签名有效但未登记的刷新令牌
	unknown, _, err := jwt.GenerateRefreshToken(registered.UserID, testSecret, 1)
	require.NoError(t, err)
	_, err = service.Refresh(ctx, unknown)
	assert.Equal(t, ErrInvalidRefreshToken, err)
}

func TestAuthService_GetUserByID(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUsername("testuser"))

	found, err := service.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "testuser", found.Username)
}

func TestAuthService_GetUserByID_NotFound(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	_, err := service.GetUserByID(99999)
	assert.Equal(t, ErrUserNotFound, err)
}

func TestAuthService_GetGithubAuthURL(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	assert.True(t, service.GithubEnabled())

	url := service.GetGithubAuthURL("test-state")
	assert.Contains(t, url, "github.com")
	assert.Contains(t, url, "test-state")
}

func TestAuthService_GithubCallback_CreatesUser(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	service.githubOAuth = &fakeGithub{user: &oauth.GithubUser{
		ID:        42,
		Login:     "octocat",
		Email:     "octocat@example.com",
		AvatarURL: "https://avatars.example.com/42",
	}}

	resp, err := service.GithubCallback(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "octocat", resp.Username)
	assert.NotEmpty(t, resp.Access)

	// 再次登录复用同一账号
	again, err := service.GithubCallback(context.Background(), "code2")
	require.NoError(t, err)
	assert.Equal(t, resp.UserID, again.UserID)
}

func TestAuthService_GithubCallback_LinksExistingEmail(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	existing := testutil.TestUser(t, db, testutil.WithEmail("linked@example.com"))
	service.githubOAuth = &fakeGithub{user: &oauth.GithubUser{ID: 7, Login: "linked", Email: "linked@example.com"}}

	resp, err := service.GithubCallback(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, resp.UserID)
}

func TestAuthService_GithubCallback_UsernameTaken(t *testing.T) {
	service, db, cleanup := setupAuthService(t)
	defer cleanup()

	testutil.TestUser(t, db, testutil.WithUsername("octocat"))
	service.githubOAuth = &fakeGithub{user: &oauth.GithubUser{ID: 99, Login: "octocat"}}

	resp, err := service.GithubCallback(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "octocat_99", resp.Username)
}

func TestAuthService_GithubCallback_ExchangeFails(t *testing.T) {
	service, _, cleanup := setupAuthService(t)
	defer cleanup()

	exchangeErr := errors.New("bad code")
	service.githubOAuth = &fakeGithub{exchangeErr: exchangeErr}

	_, err := service.GithubCallback(context.Background(), "code")
	assert.ErrorIs(t, err, exchangeErr)
}

func TestAuthService_GithubCallback_NotConfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	rdb, _ := testutil.SetupTestRedis(t)

	cfg := testConfig()
	cfg.OAuth.Github = config.GithubOAuthConfig{}
	service := NewAuthService(repository.NewUserRepository(db), tokenstore.New(rdb), cfg)

	assert.False(t, service.GithubEnabled())
	_, err := service.GithubCallback(context.Background(), "code")
	assert.Equal(t, ErrGithubNotConfigured, err)
}
