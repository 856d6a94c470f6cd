package controllers

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/postly/postly/middleware"
	"github.com/postly/postly/models"
	"github.com/postly/postly/utils"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserController handles account listing, signup, login and logout.
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

// ListUsers returns all users. Password hashes are never serialized.
func (u *UserController) ListUsers(ctx *gin.Context) {
	users := []models.User{}
	if err := u.db.Order("created_at DESC").Find(&users).Error; err != nil {
		utils.Fail(ctx, utils.ErrStore("fetching users failed, please try again"))
		return
	}
	utils.OK(ctx, gin.H{"users": users})
}

// Signup registers a new account from a multipart form carrying name,
// email, password and a profile image, and issues a token for it.
func (u *UserController) Signup(ctx *gin.Context) {
	imagePath, err := utils.SaveImage(ctx)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	name := utils.Sanitize(strings.TrimSpace(ctx.PostForm("name")))
	email := normalizeEmail(ctx.PostForm("email"))
	password := ctx.PostForm("password")

	if name == "" || !emailPattern.MatchString(email) || utf8.RuneCountInString(password) < 4 {
		utils.Fail(ctx, utils.ErrValidation("invalid inputs, please try again"))
		return
	}

	var existing models.User
	lookupErr := u.db.Where("email = ?", email).First(&existing).Error
	if lookupErr == nil {
		utils.Fail(ctx, utils.ErrConflict("could not create user, a user with this email already exists"))
		return
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		utils.Fail(ctx, utils.ErrStore("something went wrong, couldn't create user"))
		return
	}

	// A hashing fault is an operational failure, not bad input.
	hash, err := utils.HashPassword(password)
	if err != nil {
		utils.Fail(ctx, utils.ErrStore("could not create user, please try again"))
		return
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Image:        imagePath,
	}
	if err := u.db.Create(&user).Error; err != nil {
		utils.Fail(ctx, utils.ErrStore("failed to create user, please try again"))
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email)
	if err != nil {
		utils.Fail(ctx, utils.ErrStore("failed to create user, please try again"))
		return
	}

	utils.Created(ctx, gin.H{"userId": user.ID, "email": user.Email, "token": token})
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password produce the same response so neither field leaks.
func (u *UserController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, utils.ErrValidation("invalid email, please try again"))
		return
	}

	email := normalizeEmail(req.Email)
	if !emailPattern.MatchString(email) {
		utils.Fail(ctx, utils.ErrValidation("invalid email, please try again"))
		return
	}

	var user models.User
	if err := u.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Fail(ctx, utils.ErrInvalidCredentials())
			return
		}
		utils.Fail(ctx, utils.ErrStore("something went wrong, please try again"))
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Fail(ctx, utils.ErrInvalidCredentials())
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Email)
	if err != nil {
		utils.Fail(ctx, utils.ErrStore("could not log in, please try again"))
		return
	}

	utils.Created(ctx, gin.H{"userId": user.ID, "email": user.Email, "token": token})
}

// Logout revokes the presented token until its natural expiry.
func (u *UserController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Fail(ctx, utils.ErrAuthentication())
		return
	}
	utils.BlacklistToken(token, claims.ExpiresAt.Time)
	utils.OK(ctx, gin.H{"message": "Logged out."})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
