package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func signLegacy(t *testing.T, method jwt.SigningMethod, secret string) string {
	t.Helper()
	claims := LegacyClaims{UserID: "user-1", Email: "user@example.com"}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestValidateLegacyToken(t *testing.T) {
	secret := "unit-secret"
	signed := signLegacy(t, jwt.SigningMethodHS256, secret)

	claims, err := ValidateLegacyToken(signed, secret)
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "user@example.com" {
		t.Errorf("claims not recovered: %+v", claims)
	}
}

func TestValidateLegacyTokenRejectsWrongSecret(t *testing.T) {
	signed := signLegacy(t, jwt.SigningMethodHS256, "unit-secret")

	if _, err := ValidateLegacyToken(signed, "other-secret"); err == nil {
		t.Error("token signed with a different secret must be rejected")
	}
}

func TestValidateLegacyTokenRejectsOtherAlgorithms(t *testing.T) {
	signed := signLegacy(t, jwt.SigningMethodHS512, "unit-secret")

	if _, err := ValidateLegacyToken(signed, "unit-secret"); err == nil {
		t.Error("only HS256 session tokens are accepted")
	}
}
