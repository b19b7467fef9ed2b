package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/authcookie"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/models"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/sessions"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/users"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/logger"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// PrincipalKey is the gin context key the gate stores the principal under.
const PrincipalKey = "principal"

// Transport names how a principal authenticated.
type Transport string

const (
	TransportToken   Transport = "token"
	TransportSession Transport = "session"
)

// Principal is the authenticated caller attached to the request.
type Principal struct {
	UserID    string    `json:"id"`
	Transport Transport `json:"transport"`
}

var (
	// ErrNoCredential means the request carried nothing this resolver understands.
	ErrNoCredential = errors.New("no credential presented")
	ErrRevoked      = errors.New("credential revoked")
)

// Resolver turns request credentials into a principal.
type Resolver interface {
	Resolve(c *gin.Context) (*Principal, error)
}

// AuthMiddleware returns a Gin middleware that admits a request when any
// resolver yields a principal. Missing, invalid, expired and revoked
// credentials all get the same 401 body.
func AuthMiddleware(resolvers ...Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		reason := "no_credential"
		for _, r := range resolvers {
			p, err := r.Resolve(c)
			if err == nil && p != nil {
				c.Set(PrincipalKey, p)
				c.Next()
				return
			}
			if err != nil && !errors.Is(err, ErrNoCredential) {
				reason = string(kindOf(r))
				logger.Debugf("auth gate: %s credential rejected: %v", reason, err)
			}
		}
		metrics.GateRejections.WithLabelValues(reason).Inc()
		Unauthorized(c)
	}
}

// Unauthorized aborts with the gate's uniform 401 body.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
}

func kindOf(r Resolver) Transport {
	if _, ok := r.(*SessionResolver); ok {
		return TransportSession
	}
	return TransportToken
}

// PrincipalFrom returns the principal set by AuthMiddleware.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// RevocationList reports tokens revoked before their expiry.
type RevocationList interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TokenResolver authenticates the bearer token from the token cookie or the
// Authorization header. It never touches the user store.
type TokenResolver struct {
	verifier   TokenVerifier
	cookieName string
	revoked    RevocationList
}

// NewTokenResolver builds a token resolver; revoked may be nil.
func NewTokenResolver(v TokenVerifier, cookieName string, revoked RevocationList) *TokenResolver {
	return &TokenResolver{verifier: v, cookieName: cookieName, revoked: revoked}
}

// BearerToken extracts the raw token: cookie first, then 'Authorization: Bearer <token>'.
func BearerToken(c *gin.Context, cookieName string) string {
	if v := authcookie.Read(c.Request, cookieName); v != "" {
		return v
	}
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func (t *TokenResolver) Resolve(c *gin.Context) (*Principal, error) {
	raw := BearerToken(c, t.cookieName)
	if raw == "" {
		return nil, ErrNoCredential
	}
	sub, err := t.verifier.Verify(raw)
	if err != nil {
		return nil, err
	}
	if t.revoked != nil {
		revoked, err := t.revoked.IsRevoked(c.Request.Context(), raw)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrRevoked
		}
	}
	return &Principal{UserID: sub, Transport: TransportToken}, nil
}

// Deserializer loads the principal a session refers to.
type Deserializer interface {
	Deserialize(ctx context.Context, id string) (*models.User, error)
}

// SessionResolver authenticates the OAuth server session cookie. A session
// whose user no longer exists is deleted.
type SessionResolver struct {
	sessions *sessions.Service
	cookies  *authcookie.Policy
	users    Deserializer
}

func NewSessionResolver(s *sessions.Service, cookies *authcookie.Policy, d Deserializer) *SessionResolver {
	return &SessionResolver{sessions: s, cookies: cookies, users: d}
}

func (s *SessionResolver) Resolve(c *gin.Context) (*Principal, error) {
	id := authcookie.Read(c.Request, s.cookies.SessionName)
	if id == "" {
		return nil, ErrNoCredential
	}
	ctx := c.Request.Context()
	sess, renewed, err := s.sessions.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.users != nil {
		if _, err := s.users.Deserialize(ctx, sess.UserID); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				_ = s.sessions.DeleteSession(ctx, id)
				s.cookies.ClearSession(c.Writer)
			}
			return nil, err
		}
	}
	if renewed {
		s.cookies.SetSession(c.Writer, id, s.sessions.TTL())
	}
	return &Principal{UserID: sess.UserID, Transport: TransportSession}, nil
}
