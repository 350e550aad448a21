package auth

import (
	"net/http"
	"time"

	"github.com/AntonTsoy/auth-service/internal/apperr"
	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/gin-gonic/gin"
)

// CookieConfig controls the refresh-token cookie.
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

type AuthHandler struct {
	service *Service
	guard   *Guard
	cookie  CookieConfig
}

func NewAuthHandler(service *Service, guard *Guard, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "refreshToken"
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = service.RefreshTTL()
	}
	return &AuthHandler{service: service, guard: guard, cookie: cookie}
}

// Register mounts the auth routes on rg.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/signup", h.Signup)
	rg.POST("/login", h.Login)
	rg.POST("/refresh", h.Refresh)
	rg.POST("/logout", h.Logout)
	rg.POST("/logout-all", h.guard.Required(), h.LogoutAll)
	rg.GET("/me", h.guard.Required(), h.Me)
}

type signupRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name" binding:"required,max=20"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	sess, err := h.service.Signup(c.Request.Context(), SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	}, metadataFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"data": gin.H{
			"user":        sess.User,
			"accessToken": sess.AccessToken,
		},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	sess, err := h.service.Login(c.Request.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, metadataFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setRefreshCookie(c, sess.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"data": gin.H{
			"user":        sess.User,
			"accessToken": sess.AccessToken,
		},
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(h.cookie.Name)
	if err != nil || refreshToken == "" {
		_ = c.Error(apperr.Unauthorized("Refresh token not found"))
		return
	}

	accessToken, err := h.service.Refresh(c.Request.Context(), refreshToken, metadataFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Access token refreshed successfully",
		"data": gin.H{
			"accessToken": accessToken,
		},
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.cookie.Name)
	if err := h.service.Logout(c.Request.Context(), refreshToken); err != nil {
		_ = c.Error(err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

func (h *AuthHandler) LogoutAll(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		_ = c.Error(apperr.Unauthorized(msgNoToken))
		return
	}
	if err := h.service.LogoutAll(c.Request.Context(), u.ID); err != nil {
		_ = c.Error(err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out from all devices successfully",
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		_ = c.Error(apperr.Unauthorized(msgNoToken))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user": h.service.CurrentUser(u),
		},
	})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string) {
	c.SetSameSite(h.cookie.SameSite)
	c.SetCookie(h.cookie.Name, value, int(h.cookie.MaxAge/time.Second), h.cookie.Path, "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(h.cookie.SameSite)
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, "", h.cookie.Secure, true)
}

func metadataFrom(c *gin.Context) token.Metadata {
	return token.Metadata{
		UserAgent: c.Request.UserAgent(),
		ClientIP:  c.ClientIP(),
	}
}
