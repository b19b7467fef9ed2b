// Package authcookie writes and reads the HttpOnly cookies that carry
// credentials between the browser and the service.
package authcookie

import (
	"net/http"
	"time"
)

const (
	DefaultTokenName   = "token"
	DefaultSessionName = "cropadvisor.sid"
	DefaultStateName   = "oauth_state"
)

// Policy fixes the attributes every auth cookie is written with.
//
// In production cookies are Secure with SameSite=None so a frontend on another
// origin can send them. Elsewhere the bearer token cookie is SameSite=Strict;
// the OAuth cookies use Lax because they must survive the top-level redirect
// back from the provider.
type Policy struct {
	Production  bool
	Path        string
	TokenName   string
	SessionName string
	StateName   string
}

func NewPolicy(production bool, path, sessionName string) *Policy {
	if path == "" {
		path = "/"
	}
	if sessionName == "" {
		sessionName = DefaultSessionName
	}
	return &Policy{
		Production:  production,
		Path:        path,
		TokenName:   DefaultTokenName,
		SessionName: sessionName,
		StateName:   DefaultStateName,
	}
}

func (p *Policy) cookie(name, value string, maxAge int, sameSite http.SameSite) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     p.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Production,
		SameSite: sameSite,
	}
	if p.Production {
		ck.SameSite = http.SameSiteNoneMode
	}
	if maxAge > 0 {
		ck.Expires = time.Now().Add(time.Duration(maxAge) * time.Second).UTC()
	}
	return ck
}

func seconds(ttl time.Duration) int {
	s := int(ttl / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// SetToken writes the bearer token cookie for ttl.
func (p *Policy) SetToken(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, p.cookie(p.TokenName, token, seconds(ttl), http.SameSiteStrictMode))
}

// SetSession writes the server session id cookie for ttl.
func (p *Policy) SetSession(w http.ResponseWriter, id string, ttl time.Duration) {
	http.SetCookie(w, p.cookie(p.SessionName, id, seconds(ttl), http.SameSiteLaxMode))
}

// SetState writes the short-lived OAuth state cookie.
func (p *Policy) SetState(w http.ResponseWriter, state string, ttl time.Duration) {
	http.SetCookie(w, p.cookie(p.StateName, state, seconds(ttl), http.SameSiteLaxMode))
}

func (p *Policy) ClearToken(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie(p.TokenName, "", -1, http.SameSiteStrictMode))
}

func (p *Policy) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie(p.SessionName, "", -1, http.SameSiteLaxMode))
}

func (p *Policy) ClearState(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie(p.StateName, "", -1, http.SameSiteLaxMode))
}

// Read returns the named cookie's value or "".
func Read(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
