package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier("s3cret")
	v.now = func() time.Time { return now }

	valid := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute))}

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"valid", sign(t, "s3cret", jwt.SigningMethodHS256, valid), "user-1", false},
		{"wrong secret", sign(t, "other", jwt.SigningMethodHS256, valid), "", true},
		{"expired", sign(t, "s3cret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "user-1", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		}), "", true},
		{"no expiry", sign(t, "s3cret", jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}), "", true},
		{"no subject", sign(t, "s3cret", jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}), "", true},
		{"garbage", "not-a-token", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidToken) {
					t.Fatalf("err = %v, want ErrInvalidToken", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if got != tt.want {
				t.Fatalf("subject = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromHeader(t *testing.T) {
	if _, err := FromHeader(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("empty header: %v", err)
	}
	if _, err := FromHeader("Basic abc"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("basic header: %v", err)
	}
	tok, err := FromHeader("Bearer abc.def.ghi")
	if err != nil || tok != "abc.def.ghi" {
		t.Fatalf("bearer header: %q, %v", tok, err)
	}
}
