package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/authcookie"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/models"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/oauth"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/internal/sessions"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/logger"
	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/metrics"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

const stateTTL = 10 * time.Minute

// Exchanger runs the provider side of the authorization-code flow.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth.Profile, error)
}

// OAuthHandler serves the Google sign-in redirect and callback.
type OAuthHandler struct {
	strategy        Exchanger
	federation      *oauth.Federation
	sessions        *sessions.Service
	cookies         *authcookie.Policy
	successRedirect string
	failureRedirect string
}

func NewOAuthHandler(s Exchanger, f *oauth.Federation, sess *sessions.Service, cookies *authcookie.Policy, success, failure string) *OAuthHandler {
	if success == "" {
		success = "/profile"
	}
	if failure == "" {
		failure = "/"
	}
	return &OAuthHandler{
		strategy:        s,
		federation:      f,
		sessions:        sess,
		cookies:         cookies,
		successRedirect: success,
		failureRedirect: failure,
	}
}

// Register routes under /auth
func (h *OAuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.GET("/google", h.Start)
	a.GET("/google/callback", h.Callback)
}

// Start redirects the user agent to the provider's consent page. The state
// value is kept in a short-lived cookie and checked on callback.
func (h *OAuthHandler) Start(c *gin.Context) {
	state, err := oauth.NewState()
	if err != nil {
		h.failed(c, "state", err)
		return
	}
	h.cookies.SetState(c.Writer, state, stateTTL)
	c.Redirect(http.StatusFound, h.strategy.AuthCodeURL(state))
}

// Callback completes the handshake: state check, code exchange, account
// resolution, session creation. Every failure ends in a redirect to the
// failure page; nothing about the cause reaches the user agent.
func (h *OAuthHandler) Callback(c *gin.Context) {
	want := authcookie.Read(c.Request, h.cookies.StateName)
	h.cookies.ClearState(c.Writer)

	if perr := c.Query("error"); perr != "" {
		h.failed(c, "provider_error", oauth.ErrFederation)
		return
	}
	got := c.Query("state")
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		h.failed(c, "state_mismatch", oauth.ErrFederation)
		return
	}
	code := c.Query("code")
	logger.Debugf("oauth callback: code length=%d", len(code))

	ctx := c.Request.Context()
	profile, err := h.strategy.Exchange(ctx, code)
	if err != nil {
		h.failed(c, "exchange", err)
		return
	}

	h.federation.Resolve(ctx, profile, func(u *models.User, err error) {
		if err != nil {
			h.failed(c, "resolve", err)
			return
		}
		sess, err := h.sessions.CreateSession(ctx, h.federation.Serialize(u))
		if err != nil {
			h.failed(c, "session", err)
			return
		}
		metrics.SessionsCreated.Inc()
		metrics.OAuthCallbacks.WithLabelValues("google", "ok").Inc()
		logger.Infof("oauth: user %s signed in with google", u.ID)
		h.cookies.SetSession(c.Writer, sess.ID, h.sessions.TTL())
		c.Redirect(http.StatusFound, h.successRedirect)
	})
}

func (h *OAuthHandler) failed(c *gin.Context, stage string, err error) {
	metrics.OAuthCallbacks.WithLabelValues("google", stage).Inc()
	logger.Warnf("oauth %s failed: %v", stage, err)
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("oauth_stage", stage)
			hub.CaptureException(err)
		})
	}
	c.Redirect(http.StatusFound, h.failureRedirect)
}
