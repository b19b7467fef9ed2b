package oauth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves the token and userinfo endpoints of an OAuth2 provider.
type fakeProvider struct {
	srv           *httptest.Server
	idToken       string
	userinfo      map[string]string
	tokenStatus   int
	userinfoDelay time.Duration
	lastCode      string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		tokenStatus: http.StatusOK,
		userinfo:    map[string]string{"sub": "g-123", "name": "Grace", "email": "Grace@Example.com"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.lastCode = r.Form.Get("code")
		if p.tokenStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(p.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		body := map[string]interface{}{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600}
		if p.idToken != "" {
			body["id_token"] = p.idToken
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if p.userinfoDelay > 0 {
			select {
			case <-time.After(p.userinfoDelay):
			case <-r.Context().Done():
				return
			}
		}
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(p.userinfo)
	})
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 p.srv.URL,
			"authorization_endpoint": p.srv.URL + "/auth",
			"token_endpoint":         p.srv.URL + "/token",
			"userinfo_endpoint":      p.srv.URL + "/userinfo",
			"jwks_uri":               p.srv.URL + "/jwks",
		})
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) config() Config {
	return Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		CallbackURL:  "http://localhost/auth/google/callback",
		AuthURL:      p.srv.URL + "/auth",
		TokenURL:     p.srv.URL + "/token",
		UserInfoURL:  p.srv.URL + "/userinfo",
		Timeout:      2 * time.Second,
	}
}

func TestAuthCodeURL_CarriesClientScopesAndState(t *testing.T) {
	p := newFakeProvider(t)
	s, err := NewStrategy(context.Background(), p.config())
	require.NoError(t, err)

	u, err := url.Parse(s.AuthCodeURL("state-xyz"))
	require.NoError(t, err)
	require.Equal(t, "/auth", u.Path)
	q := u.Query()
	require.Equal(t, "client-1", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "state-xyz", q.Get("state"))
	require.Equal(t, "profile email", q.Get("scope"))
	require.Equal(t, "http://localhost/auth/google/callback", q.Get("redirect_uri"))
}

func TestNewStrategy_RequiresCredentials(t *testing.T) {
	_, err := NewStrategy(context.Background(), Config{ClientID: "x"})
	require.Error(t, err)
}

func TestExchange_UserInfo(t *testing.T) {
	p := newFakeProvider(t)
	s, err := NewStrategy(context.Background(), p.config())
	require.NoError(t, err)

	prof, err := s.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	require.Equal(t, "code-1", p.lastCode)
	require.Equal(t, &Profile{ID: "g-123", Name: "Grace", Email: "Grace@Example.com"}, prof)
}

func TestExchange_UserInfoLegacyIDField(t *testing.T) {
	p := newFakeProvider(t)
	p.userinfo = map[string]string{"id": "legacy-7", "name": "Old"}
	s, err := NewStrategy(context.Background(), p.config())
	require.NoError(t, err)

	prof, err := s.Exchange(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, "legacy-7", prof.ID)
	require.Empty(t, prof.Email)
}

func TestExchange_Failures(t *testing.T) {
	p := newFakeProvider(t)
	s, err := NewStrategy(context.Background(), p.config())
	require.NoError(t, err)

	_, err = s.Exchange(context.Background(), "")
	require.ErrorIs(t, err, ErrFederation)

	p.tokenStatus = http.StatusBadRequest
	_, err = s.Exchange(context.Background(), "bad-code")
	require.ErrorIs(t, err, ErrFederation)

	p.tokenStatus = http.StatusOK
	p.userinfo = map[string]string{"name": "no subject"}
	_, err = s.Exchange(context.Background(), "c")
	require.ErrorIs(t, err, ErrFederation)
}

func TestExchange_Timeout(t *testing.T) {
	p := newFakeProvider(t)
	p.userinfoDelay = 2 * time.Second
	cfg := p.config()
	cfg.Timeout = 100 * time.Millisecond
	s, err := NewStrategy(context.Background(), cfg)
	require.NoError(t, err)

	start := time.Now()
	_, err = s.Exchange(context.Background(), "c")
	require.ErrorIs(t, err, ErrFederation)
	require.Less(t, time.Since(start), time.Second)
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestExchange_VerifiedIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := newFakeProvider(t)
	issuer := p.srv.URL
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	verifier := oidc.NewVerifier(issuer, keys, &oidc.Config{ClientID: "client-1"})

	s, err := NewStrategy(context.Background(), p.config(), WithVerifier(verifier))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(s.oauth.Scopes[0], oidc.ScopeOpenID))

	claims := jwt.MapClaims{
		"iss":   issuer,
		"aud":   "client-1",
		"sub":   "g-oidc",
		"name":  "Idris",
		"email": "idris@example.com",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	p.idToken = signIDToken(t, key, claims)
	prof, err := s.Exchange(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, &Profile{ID: "g-oidc", Name: "Idris", Email: "idris@example.com"}, prof)

	// signed by a key the verifier does not trust
	p.idToken = signIDToken(t, other, claims)
	_, err = s.Exchange(context.Background(), "c")
	require.ErrorIs(t, err, ErrFederation)

	// wrong audience
	claims["aud"] = "someone-else"
	p.idToken = signIDToken(t, key, claims)
	_, err = s.Exchange(context.Background(), "c")
	require.ErrorIs(t, err, ErrFederation)

	p.idToken = ""
	_, err = s.Exchange(context.Background(), "c")
	require.ErrorIs(t, err, ErrFederation)
}

func TestExchange_DiscoveredUserInfoFillsIDTokenGaps(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := newFakeProvider(t)
	p.userinfo = map[string]string{"sub": "g-disc", "name": "Grace", "email": "grace@example.com"}
	keys := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	verifier := oidc.NewVerifier(p.srv.URL, keys, &oidc.Config{ClientID: "client-1"})

	cfg := p.config()
	cfg.Issuer = p.srv.URL
	cfg.UserInfoURL = "http://127.0.0.1:1/unused"
	s, err := NewStrategy(context.Background(), cfg, WithVerifier(verifier))
	require.NoError(t, err)
	require.NotNil(t, s.provider)

	claims := jwt.MapClaims{
		"iss": p.srv.URL,
		"aud": "client-1",
		"sub": "g-disc",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	p.idToken = signIDToken(t, key, claims)
	prof, err := s.Exchange(context.Background(), "c")
	require.NoError(t, err)
	require.Equal(t, &Profile{ID: "g-disc", Name: "Grace", Email: "grace@example.com"}, prof)

	// userinfo describing someone else is refused
	p.userinfo = map[string]string{"sub": "g-other", "email": "other@example.com"}
	_, err = s.Exchange(context.Background(), "c")
	require.ErrorIs(t, err, ErrFederation)
}

func TestNewState_Random(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 43)
}
