package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/myanride/dispatch/pkg/common"
)

const (
	userIDKey   = "user_id"
	userRoleKey = "user_role"
)

// Claims represents the JWT claims used by the service
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and stores the caller identity
// in the gin context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			common.ErrorResponse(c, 401, "missing or malformed authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		claims := &Claims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			common.ErrorResponse(c, 401, "invalid token")
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(userRoleKey, claims.Role)
		c.Next()
	}
}

// GetUserID extracts the authenticated user's id from the gin context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, errors.New("user id not found in context")
	}
	id, ok := raw.(string)
	if !ok {
		return uuid.Nil, errors.New("user id has unexpected type")
	}
	return uuid.Parse(id)
}

// GetUserRole extracts the authenticated user's role from the gin context
func GetUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(userRoleKey)
	if !exists {
		return "", errors.New("user role not found in context")
	}
	role, ok := raw.(string)
	if !ok {
		return "", errors.New("user role has unexpected type")
	}
	return role, nil
}
