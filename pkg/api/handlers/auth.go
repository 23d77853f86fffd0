package handlers

import (
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/aclgate/pkg/api/auth"
)

// Credentials holds the admin identity the API authenticates against.
// PasswordHash is a bcrypt hash, usually produced by `aclgate init`.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Verify reports whether the given credentials match. The bcrypt comparison
// runs even for unknown usernames so both failure paths cost the same.
func (c Credentials) Verify(username, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password))
	return err == nil && username == c.Username
}

// AuthHandler handles authentication-related API endpoints.
type AuthHandler struct {
	admin      Credentials
	jwtService *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(admin Credentials, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		admin:      admin,
		jwtService: jwtService,
	}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login handles POST /api/v1/auth/login.
// Authenticates the configured admin credentials and returns a JWT token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	if !h.admin.Verify(req.Username, req.Password) {
		Unauthorized(w, "Invalid username or password")
		return
	}

	token, err := h.jwtService.Generate(req.Username)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		ExpiresAt:   token.ExpiresAt,
	})
}
