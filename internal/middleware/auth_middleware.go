package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/dkolesni/billing-sync/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextAccountIDKey ключ для хранения ID аккаунта в контексте.
	ContextAccountIDKey ContextKey = "accountID"
	authHeaderPrefix               = "Bearer "
)

// TokenClaims полезная нагрузка токена клиентского API.
type TokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTMiddleware проверяет bearer-токены клиентского API.
type JWTMiddleware struct {
	secret []byte
	log    *logger.Logger
}

// NewJWTMiddleware создает новый middleware аутентификации.
func NewJWTMiddleware(secret string, log *logger.Logger) (*JWTMiddleware, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is not configured")
	}
	return &JWTMiddleware{
		secret: []byte(secret),
		log:    log,
	}, nil
}

// RequireAuth проверяет токен и кладет ID аккаунта в контекст Gin.
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, authHeaderPrefix) {
			m.handleAuthError(c, "Missing authorization token")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, authHeaderPrefix)
		claims := &TokenClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			m.handleAuthError(c, "Token validation failed")
			return
		}

		accountID := claims.Subject
		if accountID == "" {
			m.handleAuthError(c, "Account ID (sub) missing in token")
			return
		}

		c.Set(string(ContextAccountIDKey), accountID)
		m.log.Debugw("Request authenticated", "accountID", accountID)
		c.Next()
	}
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warnw("Authentication failed", "reason", message, "path", c.Request.URL.Path)
	res.JsonResponse(c.Writer, res.ErrorResponse{Error: message}, http.StatusUnauthorized)
	c.Abort()
}
