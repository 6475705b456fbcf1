package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"riskadmin/internal/requestctx"
)

// Actor reads the acting user from a bearer token signed with secret and
// stores it with the client address in the request context. Requests
// without a token pass through anonymous; an invalid token is rejected.
func Actor(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || len(key) == 0 {
			abortUnauthorized(c, "unsupported authorization")
			return
		}
		actorID, err := actorFromToken(strings.TrimSpace(raw), key)
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		ctx := requestctx.WithActor(c.Request.Context(), requestctx.Actor{
			ID:            actorID,
			OriginAddress: c.ClientIP(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireActor rejects requests that carry no acting user.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requestctx.ActorFromContext(c.Request.Context()); !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

func actorFromToken(raw string, key []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	// Tokens issued by the login service carry user_id instead of sub.
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errors.New("token has no subject")
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      msg,
		"code":       "unauthorized",
		"request_id": GetRequestID(c),
	})
}
