package controllers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/middleware"
	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/utils"
)

// AuthController handles account registration and JWT sessions.
type AuthController struct {
	db       *gorm.DB
	tokenTTL time.Duration
	log      *zap.Logger
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB, tokenTTL time.Duration, log *zap.Logger) *AuthController {
	if tokenTTL <= 0 {
		tokenTTL = 72 * time.Hour
	}
	return &AuthController{db: db, tokenTTL: tokenTTL, log: log}
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func normalizeEmail(raw string) (string, bool) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40002, "enter a valid email address", gin.H{"field": "email"})
		return
	}
	if err := utils.ValidatePassword(req.Password); err != nil {
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40002, err.Error(), gin.H{"field": "password"})
		return
	}

	var existing models.User
	if err := a.db.Where("email = ?", email).First(&existing).Error; err == nil {
		utils.ErrorWithData(ctx, http.StatusConflict, 40903, "user with this email already exists", gin.H{"field": "email"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(ctx, a.log, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{Email: email, PasswordHash: hash}
	if err := a.db.Create(&user).Error; err != nil {
		a.log.Error("create user failed", zap.String("email", email), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	a.log.Info("user registered", zap.Uint("user_id", user.ID))
	utils.Created(ctx, gin.H{"token": token, "user": user})
}

// Login exchanges email and password for a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}
	email, _ := normalizeEmail(req.Email)

	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid email or password")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email, a.tokenTTL)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	if token == "" {
		unauthorized(ctx)
		return
	}
	v, _ := ctx.Get(middleware.ContextTokenExpiryKey)
	expiresAt, ok := v.(time.Time)
	if !ok {
		expiresAt = time.Now().Add(a.tokenTTL)
	}

	utils.BlacklistToken(ctx.Request.Context(), token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	utils.Success(ctx, user)
}
