package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_PlayerID(t *testing.T) {
	v := NewVerifier("secret")

	token, err := v.Sign(42, time.Hour)
	require.NoError(t, err)
	id, err := v.PlayerID(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	sub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	id, err = v.PlayerID(sub)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret")

	_, err := v.PlayerID("")
	assert.ErrorIs(t, err, ErrMissingToken)

	expired, err := v.Sign(1, -time.Minute)
	require.NoError(t, err)
	_, err = v.PlayerID(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewVerifier("other").Sign(1, time.Hour)
	require.NoError(t, err)
	_, err = v.PlayerID(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.PlayerID(noID)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewVerifier("secret")

	r := gin.New()
	r.GET("/me", Middleware(v), func(c *gin.Context) {
		id, _ := PlayerFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	token, err := v.Sign(9, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":9}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing token"}`, w.Body.String())
}
