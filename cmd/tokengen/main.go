// Package main mints bearer tokens for exercising authenticated endpoints
// locally. Tokens are signed with the same HMAC key the server reads from
// JWT_SIGNING_KEY, so they will NOT work against a production deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Matches config.go when JWT_SIGNING_KEY is not set.
const devSigningKey = "dev-secret-key-change-in-production"

type tokenOutput struct {
	Token     string            `json:"token"`
	Subject   string            `json:"subject"`
	ExpiresIn string            `json:"expires_in"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	subject := flag.String("subject", "", "Principal id to embed as the token subject. Generated if empty.")
	key := flag.String("key", "", "HMAC signing key. Falls back to JWT_SIGNING_KEY, then the dev key.")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime.")
	flag.Parse()

	signingKey := *key
	if signingKey == "" {
		signingKey = os.Getenv("JWT_SIGNING_KEY")
	}
	if signingKey == "" {
		signingKey = devSigningKey
	}

	sub := *subject
	if sub == "" {
		sub = uuid.NewString()
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
	})
	signed, err := token.SignedString([]byte(signingKey))
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}

	out := tokenOutput{
		Token:     signed,
		Subject:   sub,
		ExpiresIn: ttl.String(),
		Usage: map[string]string{
			"chat":  fmt.Sprintf(`curl -s -X POST localhost:8080/v1/chat -H 'Content-Type: application/json' -H 'Authorization: Bearer %s' -d '{"message":"hello"}'`, signed),
			"audit": fmt.Sprintf(`curl -s localhost:8080/v1/audit -H 'Authorization: Bearer %s'`, signed),
		},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
