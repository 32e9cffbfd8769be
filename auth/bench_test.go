package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func BenchmarkJWTDecoder_Decode(b *testing.B) {
	d := newTestDecoder(b, JWTConfig{Issuer: "licensing"})
	token := signToken(b, jwt.SigningMethodHS256, testKey, jwt.MapClaims{
		"sub":    "user-42",
		"org_id": "org-7",
		"iss":    "licensing",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.Decode(ctx, token); err != nil {
			b.Fatal(err)
		}
	}
}
