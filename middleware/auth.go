package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/postly/postly/utils"
)

// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
const ContextUserIDKey = "user_id"

// ContextEmailKey stores the authenticated user's email inside Gin context.
const ContextEmailKey = "email"

// ContextTokenKey stores the raw bearer token, needed by logout to revoke it.
const ContextTokenKey = "token"

// AuthRequired verifies the bearer token and injects the caller identity
// into the request context. Pre-flight requests bypass the check.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodOptions {
			ctx.Next()
			return
		}

		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Fail(ctx, utils.ErrAuthentication())
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Fail(ctx, utils.ErrAuthentication())
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Fail(ctx, utils.ErrAuthentication())
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Fail(ctx, utils.ErrAuthentication())
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Fail(ctx, utils.ErrAuthentication())
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextEmailKey, claims.Email)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Next()
	}
}
