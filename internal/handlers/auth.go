package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devdex/devdex-backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	token, err := h.authService.Login(body.Password)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "invalid_credentials", err)
		return
	}
	RespondOK(c, gin.H{"token": token})
}
