package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/authcookie"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/credentials"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/passwords"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/sessions"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/tokens"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/users"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/logger"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/metrics"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// SignupRequest is the body of POST /signup. The web client sends the
// region as "state"; both names are accepted.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	City     string `json:"city"`
	Region   string `json:"region"`
	State    string `json:"state"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthDeps wires the password flows, the protected routes and logout.
type AuthDeps struct {
	Credentials *credentials.Service
	Users       *users.Service
	Tokens      *tokens.Service
	Sessions    *sessions.Service
	Denylist    *sessions.Denylist
	Cookies     *authcookie.Policy
	// Gate protects /profile and /dashboard.
	Gate gin.HandlerFunc
	// Limit, when set, runs in front of /signup and /login.
	Limit gin.HandlerFunc
}

// AuthHandler holds dependencies
type AuthHandler struct {
	AuthDeps
}

func NewAuthHandler(d AuthDeps) *AuthHandler {
	return &AuthHandler{AuthDeps: d}
}

// Register mounts the password and protected routes on rg.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	open := []gin.HandlerFunc{}
	if h.Limit != nil {
		open = append(open, h.Limit)
	}
	rg.POST("/signup", append(open, h.Signup)...)
	rg.POST("/login", append(open, h.Login)...)
	rg.POST("/logout", h.Logout)
	rg.GET("/profile", h.Gate, h.Profile)
	rg.GET("/dashboard", h.Gate, h.Dashboard)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

// Signup creates a password account, sets the token cookie and reports success.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", "validation").Inc()
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	}
	region := req.Region
	if region == "" {
		region = req.State
	}
	res, err := h.Credentials.Signup(c.Request.Context(), credentials.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		City:     req.City,
		Region:   region,
		Password: req.Password,
	})
	switch {
	case err == nil:
	case errors.Is(err, credentials.ErrPasswordTooLong):
		metrics.AuthAttempts.WithLabelValues("signup", "validation").Inc()
		fail(c, http.StatusBadRequest, fmt.Sprintf("Password must be at most %d bytes", passwords.MaxLength))
		return
	case errors.Is(err, credentials.ErrValidation):
		metrics.AuthAttempts.WithLabelValues("signup", "validation").Inc()
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	case errors.Is(err, credentials.ErrConflict):
		metrics.AuthAttempts.WithLabelValues("signup", "conflict").Inc()
		fail(c, http.StatusBadRequest, "User already exists")
		return
	default:
		logger.Errorf("signup failed: %v", err)
		metrics.AuthAttempts.WithLabelValues("signup", "error").Inc()
		fail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	metrics.AuthAttempts.WithLabelValues("signup", "ok").Inc()
	logger.Infof("signup: user created id=%s", res.User.ID)
	h.Cookies.SetToken(c.Writer, res.Token, h.Tokens.TTL())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User created successfully"})
}

// Login checks credentials, sets the token cookie and also returns the
// token in the body for clients that do not keep cookies.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "validation").Inc()
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	}
	res, err := h.Credentials.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, credentials.ErrValidation):
		metrics.AuthAttempts.WithLabelValues("login", "validation").Inc()
		fail(c, http.StatusBadRequest, "All fields are required")
		return
	case errors.Is(err, credentials.ErrNotFound):
		metrics.AuthAttempts.WithLabelValues("login", "not_found").Inc()
		fail(c, http.StatusBadRequest, "User does not exist")
		return
	case errors.Is(err, credentials.ErrInvalidCredentials):
		metrics.AuthAttempts.WithLabelValues("login", "invalid_credentials").Inc()
		fail(c, http.StatusBadRequest, "Invalid credentials")
		return
	default:
		logger.Errorf("login failed: %v", err)
		metrics.AuthAttempts.WithLabelValues("login", "error").Inc()
		fail(c, http.StatusInternalServerError, "Login failed.")
		return
	}

	metrics.AuthAttempts.WithLabelValues("login", "ok").Inc()
	h.Cookies.SetToken(c.Writer, res.Token, h.Tokens.TTL())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful!",
		"user":    res.User.Summary(),
		"token":   res.Token,
	})
}

// Profile loads the full record of the authenticated principal.
func (h *AuthHandler) Profile(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		middleware.Unauthorized(c)
		return
	}
	u, err := h.Users.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found")
			return
		}
		logger.Errorf("profile lookup for %s failed: %v", p.UserID, err)
		fail(c, http.StatusInternalServerError, "Failed to get user profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User profile fetched successfully", "user": u})
}

// Dashboard echoes the principal the gate attached; no store access.
func (h *AuthHandler) Dashboard(c *gin.Context) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		middleware.Unauthorized(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Welcome to your dashboard!", "user": p})
}

// Logout clears both auth cookies, deletes the server session and revokes
// the presented bearer token until it would have expired. It succeeds even
// when nothing was presented.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := middleware.BearerToken(c, h.Cookies.TokenName); raw != "" && h.Denylist != nil {
		if exp, err := h.Tokens.ExpiresAt(raw); err == nil {
			if err := h.Denylist.Revoke(ctx, raw, time.Until(exp)); err != nil {
				logger.Warnf("logout: failed to revoke token: %v", err)
			}
		}
	}
	if sid := authcookie.Read(c.Request, h.Cookies.SessionName); sid != "" && h.Sessions != nil {
		if err := h.Sessions.DeleteSession(ctx, sid); err != nil {
			logger.Warnf("logout: failed to delete session: %v", err)
		}
	}
	h.Cookies.ClearToken(c.Writer)
	h.Cookies.ClearSession(c.Writer)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}
