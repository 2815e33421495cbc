package utils

import (
	"testing"
	"time"
)

func TestJwtGenerateAndValidate(t *testing.T) {
	token, jti, err := JwtGenerate(42, "traveler")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatalf("expected non-empty token and jti")
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	if !parsed.Valid {
		t.Fatalf("token reported invalid")
	}

	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claims.ID != 42 || claims.Username != "traveler" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Id != jti {
		t.Fatalf("jti mismatch: %q vs %q", claims.Id, jti)
	}
}

func TestJwtValidate_RejectsTampering(t *testing.T) {
	token, _, err := JwtGenerate(1, "someone")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if parsed, err := JwtValidate(tampered); err == nil && parsed.Valid {
		t.Fatalf("tampered token accepted")
	}
}

func TestTokenLifespan(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "")
	if got := TokenLifespan(); got != 24*time.Hour {
		t.Fatalf("default lifespan: got %v", got)
	}
	t.Setenv("TOKEN_HOUR_LIFESPAN", "2")
	if got := TokenLifespan(); got != 2*time.Hour {
		t.Fatalf("lifespan override: got %v", got)
	}
	t.Setenv("TOKEN_HOUR_LIFESPAN", "bogus")
	if got := TokenLifespan(); got != 24*time.Hour {
		t.Fatalf("bad lifespan must fall back: got %v", got)
	}
}
