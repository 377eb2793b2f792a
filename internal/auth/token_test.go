package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAndValidateToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour, zap.NewNop())

	token, expires, err := m.GenerateToken("alice", "operator")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "operator", claims.Role)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _, err := NewManager("secret-a", time.Hour, nil).GenerateToken("alice", "operator")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour, nil).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	m := NewManager("test-secret", time.Hour, nil)
	m.ttl = -time.Minute

	token, _, err := m.GenerateToken("alice", "operator")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := NewManager("test-secret", time.Hour, zap.NewNop())

	var gotClaims *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := m.Middleware(next)

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token passes claims through", func(t *testing.T) {
		token, _, err := m.GenerateToken("alice", "operator")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "alice", gotClaims.Username)
	})
}

func TestLoginHandler(t *testing.T) {
	m := NewManager("test-secret", time.Hour, zap.NewNop())
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	creds := Credentials{Username: "alice", PasswordHash: string(hash)}
	handler := LoginHandler(m, creds, zap.NewNop())

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewBufferString(body))
		rr := httptest.NewRecorder()
		handler(rr, req)
		return rr
	}

	t.Run("valid credentials", func(t *testing.T) {
		rr := post(`{"username":"alice","password":"hunter2"}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)

		claims, err := m.ValidateToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, "alice", claims.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := post(`{"username":"alice","password":"wrong"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rr := post(`{"username":"bob","password":"hunter2"}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := post(`{`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
