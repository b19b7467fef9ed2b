// Package oauth implements the Google authorization-code login: building the
// provider redirect, exchanging the code server to server and resolving the
// returned profile to a local account.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// ErrFederation wraps every failure of the provider handshake.
var ErrFederation = errors.New("oauth federation failed")

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Profile is the subset of the provider's user info the service keeps.
type Profile struct {
	ID    string
	Name  string
	Email string
}

// Config holds the provider registration. AuthURL and TokenURL override the
// Google endpoint; Issuer enables OIDC discovery and ID token verification.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
	Issuer       string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Timeout      time.Duration
}

// Strategy is built once at startup and shared read-only by all requests.
type Strategy struct {
	oauth       *oauth2.Config
	provider    *oidc.Provider
	verifier    *oidc.IDTokenVerifier
	userInfoURL string
	client      *http.Client
	timeout     time.Duration
}

// Option customizes a Strategy.
type Option func(*Strategy)

// WithVerifier installs an ID token verifier without running discovery.
func WithVerifier(v *oidc.IDTokenVerifier) Option {
	return func(s *Strategy) { s.verifier = v }
}

// WithHTTPClient sets the client used for the token and userinfo calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Strategy) { s.client = c }
}

// NewStrategy builds the strategy. Discovery runs only when cfg.Issuer is set.
func NewStrategy(ctx context.Context, cfg Config, opts ...Option) (*Strategy, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("oauth: client id and secret are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &Strategy{
		userInfoURL: cfg.UserInfoURL,
		client:      &http.Client{Timeout: timeout},
		timeout:     timeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.userInfoURL == "" {
		s.userInfoURL = defaultUserInfoURL
	}

	scopes := append([]string(nil), cfg.Scopes...)
	if len(scopes) == 0 {
		scopes = []string{"profile", "email"}
	}
	endpoint := endpoints.Google
	if cfg.Issuer != "" {
		dctx, cancel := context.WithTimeout(oidc.ClientContext(ctx, s.client), timeout)
		defer cancel()
		provider, err := oidc.NewProvider(dctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
		}
		s.provider = provider
		endpoint = provider.Endpoint()
		if s.verifier == nil {
			s.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
		}
	}
	if s.verifier != nil && !contains(scopes, oidc.ScopeOpenID) {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	s.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.CallbackURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
	return s, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// NewState returns a random value for the CSRF state parameter.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthCodeURL is the provider URL the user agent is redirected to.
func (s *Strategy) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// Exchange trades the authorization code for tokens and returns the user's
// profile, read from the verified ID token when a verifier is configured and
// from the userinfo endpoint otherwise.
func (s *Strategy) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrFederation)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", ErrFederation, err)
	}

	var p *Profile
	if s.verifier != nil {
		p, err = s.profileFromIDToken(ctx, tok)
	} else {
		p, err = s.userInfo(ctx, tok)
	}
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: profile has no subject", ErrFederation)
	}
	return p, nil
}

type claims struct {
	Sub   string `json:"sub"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c claims) profile() *Profile {
	id := c.Sub
	if id == "" {
		id = c.ID
	}
	return &Profile{ID: id, Name: c.Name, Email: c.Email}
}

func (s *Strategy) profileFromIDToken(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrFederation)
	}
	idt, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: id token: %v", ErrFederation, err)
	}
	var c claims
	if err := idt.Claims(&c); err != nil {
		return nil, fmt.Errorf("%w: id token claims: %v", ErrFederation, err)
	}
	c.Sub = idt.Subject
	p := c.profile()

	// ID tokens issued without the email scope carry no email; fill the
	// gaps from the discovered userinfo endpoint.
	if s.provider != nil && (p.Email == "" || p.Name == "") {
		info, err := s.userInfo(ctx, tok)
		if err != nil {
			return nil, err
		}
		if info.ID != p.ID {
			return nil, fmt.Errorf("%w: userinfo subject does not match id token", ErrFederation)
		}
		if p.Email == "" {
			p.Email = info.Email
		}
		if p.Name == "" {
			p.Name = info.Name
		}
	}
	return p, nil
}

// userInfo reads the profile with the access token. After discovery the
// provider's advertised endpoint is used; otherwise the configured URL.
func (s *Strategy) userInfo(ctx context.Context, tok *oauth2.Token) (*Profile, error) {
	if s.provider != nil {
		info, err := s.provider.UserInfo(oidc.ClientContext(ctx, s.client), oauth2.StaticTokenSource(tok))
		if err != nil {
			return nil, fmt.Errorf("%w: userinfo: %v", ErrFederation, err)
		}
		var c claims
		if err := info.Claims(&c); err != nil {
			return nil, fmt.Errorf("%w: userinfo decode: %v", ErrFederation, err)
		}
		c.Sub = info.Subject
		if c.Email == "" {
			c.Email = info.Email
		}
		return c.profile(), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFederation, err)
	}
	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrFederation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: userinfo status %d", ErrFederation, resp.StatusCode)
	}
	var c claims
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: userinfo decode: %v", ErrFederation, err)
	}
	return c.profile(), nil
}
