package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"sme-docengine/internal/auth"
)

type LoginRequest struct {
	TenantID uint   `json:"tenant_id" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthHandler struct {
	db     *gorm.DB
	signer *auth.Signer
}

func NewAuthHandler(db *gorm.DB, signer *auth.Signer) *AuthHandler {
	return &AuthHandler{db: db, signer: signer}
}

// --- POST: /login ---
func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginRequest
	// 1. Validate Input JSON
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	// 2. Find the user and verify the password
	user, err := auth.Authenticate(c.Request.Context(), h.db, input.TenantID, input.Username, input.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify credentials"})
		return
	}

	// 3. Generate JWT Token
	token, err := h.signer.GenerateToken(user.ID, user.TenantID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"role":      user.Role,
		"username":  user.Username,
		"tenant_id": user.TenantID,
	})
}

// --- POST: /register ---
// Only mounted when ALLOW_REGISTRATION is set. Self-registered users are always
// staff; approvers are provisioned with docctl create-user.
func (h *AuthHandler) Register(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	user, err := auth.Register(c.Request.Context(), h.db, input.TenantID, input.Username, input.Password, auth.RoleStaff)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, user)
}
