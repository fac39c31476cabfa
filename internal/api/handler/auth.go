package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subscription_server/internal/model/dto"
	"github.com/qs3c/subscription_server/internal/pkg/oauth"
	"github.com/qs3c/subscription_server/internal/pkg/response"
	"github.com/qs3c/subscription_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	states      *oauth.StateStore
	// OAuth 登录完成后允许跳转的前端地址前缀
	allowedRedirects []string
}

func NewAuthHandler(authService *service.AuthService, states *oauth.StateStore, allowedRedirects []string) *AuthHandler {
	return &AuthHandler{
		authService:      authService,
		states:           states,
		allowedRedirects: allowedRedirects,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch),
			errors.Is(err, service.ErrEmailExists),
			errors.Is(err, service.ErrUsernameExists):
			response.ParamError(c, err.Error())
		default:
			_ = c.Error(err)
			response.ServerError(c, "")
		}
		return
	}

	response.Created(c, resp)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.AuthError(c, err.Error())
		default:
			_ = c.Error(err)
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}

// Refresh 刷新令牌
// POST /api/v1/auth/token/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefreshToken):
			response.AuthError(c, err.Error())
		default:
			_ = c.Error(err)
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, pair)
}

// GithubAuth 跳转到 GitHub 授权页
// GET /api/v1/auth/github?redirect=
func (h *AuthHandler) GithubAuth(c *gin.Context) {
	if !h.authService.GithubEnabled() {
		response.NotFoundError(c, service.ErrGithubNotConfigured.Error())
		return
	}

	redirect := c.Query("redirect")
	if redirect != "" && !h.redirectAllowed(redirect) {
		response.ParamError(c, "不允许的跳转地址")
		return
	}

	state, err := h.states.GenerateState(c.Request.Context(), redirect)
	if err != nil {
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.authService.GetGithubAuthURL(state))
}

// GithubCallback GitHub 授权回调
// GET /api/v1/auth/github/callback?code=&state=
func (h *AuthHandler) GithubCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		response.ParamError(c, "缺少 code 或 state 参数")
		return
	}

	redirect, err := h.states.ValidateState(c.Request.Context(), state)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidState) {
			response.ParamError(c, "state 无效或已过期")
			return
		}
		_ = c.Error(err)
		response.ServerError(c, "")
		return
	}

	resp, err := h.authService.GithubCallback(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGithubNotConfigured):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrInvalidCredentials):
			response.AuthError(c, err.Error())
		default:
			_ = c.Error(err)
			response.AuthError(c, "GitHub 登录失败")
		}
		return
	}

	if redirect == "" {
		response.SuccessWithMessage(c, "登录成功", resp)
		return
	}

	// 令牌放在 fragment 中，不会出现在服务端日志里
	fragment := url.Values{}
	fragment.Set("access", resp.Access)
	fragment.Set("refresh", resp.Refresh)
	c.Redirect(http.StatusFound, redirect+"#"+fragment.Encode())
}

func (h *AuthHandler) redirectAllowed(redirect string) bool {
	u, err := url.Parse(redirect)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	origin := u.Scheme + "://" + u.Host
	for _, allowed := range h.allowedRedirects {
		if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
			return true
		}
	}
	return false
}
