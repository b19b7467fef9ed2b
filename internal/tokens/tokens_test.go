package tokens

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-32-bytes-should-be-long-enough"

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	tok, err := svc.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	sub, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if sub != "user-123" {
		t.Fatalf("unexpected subject: got=%s want=user-123", sub)
	}
}

func TestIssue_StampsIatAndExp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(testSecret, 7*24*time.Hour, WithClock(func() time.Time { return now }))

	tok, err := svc.Issue("u1")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil },
		jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.Equal(t, now, claims.IssuedAt.Time.UTC())
	require.Equal(t, now.Add(7*24*time.Hour), claims.ExpiresAt.Time.UTC())

	exp, err := svc.ExpiresAt(tok)
	require.NoError(t, err)
	require.True(t, exp.Equal(now.Add(7*24*time.Hour)))
}

func TestVerify_Expired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	svc := NewService(testSecret, time.Minute, WithClock(clock))

	tok, err := svc.Issue("u1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = svc.Verify(tok)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	tok, err := NewService("secret-one-32-bytes-xxxxxxxxxxxxxxxx", time.Hour).Issue("u1")
	require.NoError(t, err)

	_, err = NewService("secret-two-32-bytes-yyyyyyyyyyyyyyyy", time.Hour).Verify(tok)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_TamperedSignature(t *testing.T) {
	svc := NewService(testSecret, time.Hour)
	tok, err := svc.Issue("u1")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[0] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	_, err = svc.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_TamperedPayload(t *testing.T) {
	svc := NewService(testSecret, time.Hour)
	tok, err := svc.Issue("u1")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(strings.Replace(string(payload), `"u1"`, `"u2"`, 1)))

	_, err = svc.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewService(testSecret, time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	require.ErrorIs(t, err, ErrTokenInvalid)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.Verify(hs512)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_RequiresExpiryAndSubject(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.Verify(noExp)
	require.ErrorIs(t, err, ErrTokenInvalid)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.Verify(noSub)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Garbage(t *testing.T) {
	svc := NewService(testSecret, time.Hour)
	for _, raw := range []string{"", "abc", "a.b.c", "Bearer x"} {
		_, err := svc.Verify(raw)
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("raw=%q: expected ErrTokenInvalid, got %v", raw, err)
		}
	}
}

func TestIssue_EmptySubject(t *testing.T) {
	_, err := NewService(testSecret, time.Hour).Issue("")
	require.Error(t, err)
}
