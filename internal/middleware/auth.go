package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/clicktoassignment/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "unauthorized",
		"message": message,
	})
}

// AuthMiddleware validates the bearer token. When db is set the user must
// exist and be active, and the stored role wins over the token claim.
func AuthMiddleware(secret string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header required")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(c, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			unauthorized(c, "Invalid token")
			return
		}
		rawID, ok := claims["user_id"].(float64)
		if !ok || rawID <= 0 {
			unauthorized(c, "Token has no user")
			return
		}
		userID := uint(rawID)
		role, _ := claims["role"].(string)

		if db != nil {
			var user models.User
			err := db.WithContext(c.Request.Context()).Select("id", "role", "is_active").First(&user, userID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
				unauthorized(c, "User is not active")
				return
			}
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   "internal_error",
					"message": "Failed to load user",
				})
				return
			}
			role = string(user.Role)
		}

		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, models.UserRole(role))
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "forbidden",
			"message": "Insufficient role",
		})
	}
}

// RequireSuperAdmin allows super_admin and co_super_admin.
func RequireSuperAdmin() gin.HandlerFunc {
	return RequireRoles(models.RoleSuperAdmin, models.RoleCoSuperAdmin)
}

func CurrentUserID(c *gin.Context) uint {
	if id, ok := c.Get(ContextUserID); ok {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}

func CurrentRole(c *gin.Context) models.UserRole {
	if role, ok := c.Get(ContextUserRole); ok {
		if v, ok := role.(models.UserRole); ok {
			return v
		}
	}
	return ""
}

// SignToken issues an HMAC token carrying the user id and role.
func SignToken(secret string, userID uint, role models.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
