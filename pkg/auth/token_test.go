package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/gearshare-backend/pkg/config"
	"github.com/angelmondragon/gearshare-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "gearshare", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, ActorIdentity{UserID: userID, Role: enums.UserRoleAdmin})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	identity := claims.Identity()
	if identity.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, identity.UserID)
	}
	if identity.Role != enums.UserRoleAdmin {
		t.Fatalf("unexpected role %s", identity.Role)
	}
	if identity.JTI == "" {
		t.Fatal("expected generated jti")
	}
	if claims.Subject != userID.String() {
		t.Fatalf("expected subject %s, got %s", userID, claims.Subject)
	}

	exp := now.Add(30 * time.Minute)
	if diff := claims.ExpiresAt.Sub(exp); diff <= -time.Second || diff >= time.Second {
		t.Fatalf("expected exp near %v, got %v", exp, claims.ExpiresAt.Time)
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token+"x"); err == nil {
		t.Fatal("expected invalid signature error")
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected wrong secret to fail")
	}
}

func TestParseAccessTokenRejectsForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected issuer mismatch")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(cfg, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiration error, got %v", err)
	}
}

func TestParseAccessTokenRejectsUnsignedAlg(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.UserRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected alg none to be rejected")
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	cfg := testJWTConfig()
	cases := map[string]struct {
		cfg      config.JWTConfig
		identity ActorIdentity
	}{
		"invalid role":   {cfg, ActorIdentity{UserID: uuid.New(), Role: "owner"}},
		"missing user":   {cfg, ActorIdentity{Role: enums.UserRoleMember}},
		"missing secret": {config.JWTConfig{Issuer: "gearshare", ExpirationMinutes: 5}, ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember}},
		"zero ttl":       {config.JWTConfig{Secret: "s", Issuer: "gearshare"}, ActorIdentity{UserID: uuid.New(), Role: enums.UserRoleMember}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := MintAccessToken(tc.cfg, time.Now(), tc.identity); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
