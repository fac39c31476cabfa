package dto

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=50"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8,max=64"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// AuthResponse 注册 / 登录 / OAuth 回调的统一响应
type AuthResponse struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Refresh  string `json:"refresh"`
	Access   string `json:"access"`
}

// TokenPair 刷新令牌响应
type TokenPair struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// UserInfo 用户信息（返回给前端）
type UserInfo struct {
	ID                 int64             `json:"id"`
	Username           string            `json:"username"`
	Email              string            `json:"email,omitempty"`
	AvatarURL          string            `json:"avatar_url"`
	IsAdmin            bool              `json:"is_admin"`
	ActiveSubscription *SubscriptionItem `json:"active_subscription"`
	CreatedAt          string            `json:"created_at,omitempty"`
}
