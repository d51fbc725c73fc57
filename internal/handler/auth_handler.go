package handler

import (
	"errors"
	"net/http"

	"minimall/internal/middleware"
	"minimall/internal/service"
	"minimall/pkg/wxcrypto"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authSvc *service.AuthService
}

func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type wxLoginReq struct {
	Code string `json:"code" binding:"required"`
}

// WxLogin exchanges a mini-program login code for a session token.
func (h *AuthHandler) WxLogin(c *gin.Context) {
	var req wxLoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	token, user, err := h.authSvc.WxLogin(c.Request.Context(), req.Code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

type phoneReq struct {
	EncryptedData string `json:"encrypted_data" binding:"required"`
	IV            string `json:"iv" binding:"required"`
}

// Phone decrypts and stores the caller's phone number.
func (h *AuthHandler) Phone(c *gin.Context) {
	var req phoneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "encrypted_data and iv are required"})
		return
	}
	phone, err := h.authSvc.DecryptPhone(middleware.GetUserID(c), req.EncryptedData, req.IV)
	if err != nil {
		if errors.Is(err, wxcrypto.ErrDecrypt) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decrypt phone number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phone": phone})
}

type adminLoginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin authenticates a dashboard user.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req adminLoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	token, user, err := h.authSvc.AdminLogin(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
