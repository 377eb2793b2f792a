package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the successful login response.
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Credentials is the single configured API user. PasswordHash is a bcrypt
// hash, never the plaintext.
type Credentials struct {
	Username     string
	PasswordHash string
}

// LoginHandler authenticates against the configured credentials and issues
// a token.
func LoginHandler(m *Manager, creds Credentials, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, `{"error":"username and password are required"}`, http.StatusBadRequest)
			return
		}

		if req.Username != creds.Username ||
			bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(req.Password)) != nil {
			logger.Info("login rejected", zap.String("username", req.Username))
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}

		token, expires, err := m.GenerateToken(req.Username, "operator")
		if err != nil {
			logger.Error("token generation failed", zap.Error(err))
			http.Error(w, `{"error":"failed to generate token"}`, http.StatusInternalServerError)
			return
		}

		logger.Info("login succeeded", zap.String("username", req.Username))
		json.NewEncoder(w).Encode(LoginResponse{
			Token:     token,
			Username:  req.Username,
			ExpiresAt: expires,
		})
	}
}
