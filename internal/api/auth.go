package api

import (
	"errors"   // Error kind matching
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework

	"expense_tracker/internal/apperr"     // Error taxonomy
	"expense_tracker/internal/domain"     // Domain models
	"expense_tracker/internal/middleware" // Session cookie parsing
	"expense_tracker/internal/service"    // Business operations
	"expense_tracker/internal/utils"      // Utility functions
)

// Request struct for signup
type SignupRequest struct {
	Name     string `json:"name" binding:"required,max=100"`   // Display name must be provided
	Email    string `json:"email" binding:"required,email"`    // Email must be valid
	Password string `json:"password" binding:"required,min=6"` // Password of at least 6 characters
}

// Request struct for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	User *domain.PublicUser `json:"user"` // Signed-in user, null when anonymous
}

// session carries what the auth handlers need to issue cookies
type session struct {
	secret     string
	cookieName string
	secure     bool
}

// setCookie issues the session token as an http-only cookie
func (s session) setCookie(c *gin.Context, u *domain.User) error {
	token, err := utils.GenerateJWT(u.ID, u.Email, s.secret) // Generate JWT token
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, token, int(utils.SessionTTL.Seconds()), "/", "", s.secure, true)
	return nil
}

// SignupHandler registers a user and signs them in
func SignupHandler(svc *service.AuthService, s session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		user, err := svc.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.setCookie(c, user); err != nil {
			respondError(c, err)
			return
		}
		pub := user.Public()
		c.JSON(http.StatusOK, AuthResponse{User: &pub})
	}
}

// LoginHandler authenticates a user and sets the session cookie
func LoginHandler(svc *service.AuthService, s session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
		user, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.setCookie(c, user); err != nil {
			respondError(c, err)
			return
		}
		pub := user.Public()
		c.JSON(http.StatusOK, AuthResponse{User: &pub})
	}
}

// LogoutHandler clears the session cookie
func LogoutHandler(s session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cookieName, "", -1, "/", "", s.secure, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// MeHandler returns the signed-in user, or null for any session problem
func MeHandler(svc *service.AuthService, s session) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.SessionClaims(c, s.secret, s.cookieName)
		if !ok {
			c.JSON(http.StatusOK, AuthResponse{}) // Anonymous, not an error
			return
		}
		user, err := svc.User(c.Request.Context(), claims.UserID)
		if errors.Is(err, apperr.NotFound("")) {
			c.JSON(http.StatusOK, AuthResponse{}) // Account deleted since the token was issued
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		pub := user.Public()
		c.JSON(http.StatusOK, AuthResponse{User: &pub})
	}
}

// CSRFTokenHandler hands out a token for the X-CSRF-Token header
func CSRFTokenHandler(csrf *middleware.CSRF) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := csrf.Token(c)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"csrfToken": token})
	}
}
