// Package auth resolves the player behind a bearer token. Tokens are issued
// elsewhere; this service only verifies them.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// ContextKey is where Middleware stores the player id on the gin context.
const ContextKey = "player_id"

// TokenCookie is checked when no Authorization header is sent, since
// browsers cannot set headers on a websocket upgrade.
const TokenCookie = "access_token"

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// PlayerID validates an HS256 token and returns the player id carried in its
// "id" claim, falling back to "sub".
func (v *Verifier) PlayerID(token string) (int64, error) {
	if token == "" {
		return 0, ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	var id int64
	switch raw := claims["id"].(type) {
	case float64:
		id = int64(raw)
	default:
		sub, _ := claims["sub"].(string)
		id, err = strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: no player id claim", ErrInvalidToken)
		}
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: bad player id %d", ErrInvalidToken, id)
	}
	return id, nil
}

// Sign issues a token for id. Used by tests and local tooling.
func (v *Verifier) Sign(id int64, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  id,
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// FromRequest pulls the token from the Authorization header, the token
// cookie or the token query parameter, in that order.
func FromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// Middleware validates the token and sets player_id in context
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.PlayerID(FromRequest(c))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, ErrMissingToken) {
				msg = "missing token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		c.Set(ContextKey, id)
		c.Next()
	}
}

// PlayerFromContext returns the id set by Middleware.
func PlayerFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
