package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"craftResume/internal/api/middleware"
	"craftResume/internal/audit"
	"craftResume/internal/auth"
	"craftResume/internal/config"
	"craftResume/internal/database"
	"craftResume/internal/ratelimit"
)

const minPasswordLength = 12

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthHandler serves signup and login.
type AuthHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	limiter     *ratelimit.Limiter
	audit       *audit.Recorder
	signupCfg   config.SignupRateConfig
}

// NewAuthHandler builds the handler.
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, limiter *ratelimit.Limiter, recorder *audit.Recorder, signupCfg config.SignupRateConfig) *AuthHandler {
	return &AuthHandler{
		db:          db,
		authService: authService,
		limiter:     limiter,
		audit:       recorder,
		signupCfg:   signupCfg,
	}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
}

// Signup creates a new account. Attempts are rate limited per client IP
// before any validation runs, so probing costs attempts too.
func (h *AuthHandler) Signup(c *gin.Context) {
	ip := c.ClientIP()
	logger := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	if !h.limiter.Allow("signup:"+ip, h.signupCfg.MaxAttempts, h.signupCfg.Window) {
		h.audit.Warning(ctx, "auth", "signup rate limit exceeded", map[string]any{"ip": ip}, nil)
		TooManyRequests(c, "too many signup attempts, try again later")
		return
	}

	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		BadRequest(c, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		BadRequest(c, "password must be at least 12 characters")
		return
	}

	var existing database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		Conflict(c, "email already registered")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("signup lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	user := database.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         database.RoleUser,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		CompanyName:  strings.TrimSpace(req.CompanyName),
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		logger.Error("create user failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.audit.Info(ctx, "auth", "user signed up", map[string]any{"email": email}, &user.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "account created",
		"user": gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
		},
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Login verifies credentials and issues a token pair. Unknown email and
// wrong password return the same reply.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user database.User
	if err := h.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			Unauthorized(c)
			return
		}
		logger.Error("login lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		h.audit.Warning(ctx, "auth", "login failed", map[string]any{"email": email}, &user.ID)
		Unauthorized(c)
		return
	}

	pair, err := h.authService.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.audit.Info(ctx, "auth", "user logged in", nil, &user.ID)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.authService.AccessTokenTTL().Seconds()),
	})
}
