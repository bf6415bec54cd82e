package authHandler

import (
	"context"
	"net/http"
	"time"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/internal/handler/response"
	"file-sharing-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (uuid.UUID, error)
	Login(ctx context.Context, username, password string) (string, string, uuid.UUID, error)
	Logout(ctx context.Context, userID uuid.UUID, accessToken string) error
	RefreshToken(ctx context.Context, userID uuid.UUID, refreshToken string) (string, string, error)
	AccessTTL() time.Duration
}

type AuthHandler struct {
	authService  AuthService
	secureCookie bool
}

func New(service AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: service, secureCookie: secureCookie}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "username, email and password are required")
		return
	}
	userID, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user created", "user_id": userID.String()})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "username and password are required")
		return
	}
	access, refresh, userID, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setAccessCookie(c, access)
	c.JSON(http.StatusOK, TokenResponse{Token: access, RefreshToken: refresh, UserID: userID.String()})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperr.ErrUnauthenticated)
		return
	}
	if err := h.authService.Logout(c.Request.Context(), userID, middleware.Token(c)); err != nil {
		response.Error(c, err)
		return
	}
	middleware.ClearAccessCookie(c, h.secureCookie)
	response.Message(c, http.StatusOK, "logout successful")
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Detail(c, http.StatusBadRequest, "user_id and refresh_token are required")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		response.Error(c, apperr.ErrUnauthenticated)
		return
	}
	access, refresh, err := h.authService.RefreshToken(c.Request.Context(), userID, req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.setAccessCookie(c, access)
	c.JSON(http.StatusOK, TokenResponse{Token: access, RefreshToken: refresh, UserID: userID.String()})
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, token string) {
	middleware.SetAccessCookie(c, token, h.authService.AccessTTL(), h.secureCookie)
}
