package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Claims is the verified token payload. Identity resolution happens here so
// the portrait core only ever sees an opaque owner key.
type Claims struct {
	Sub      string `json:"sub"`
	Exp      int64  `json:"exp"`
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
}

type ownerKeyContextKey struct{}

// SignToken produces an HS256 JWT for the given claims.
func SignToken(secret string, claims Claims) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, _ := json.Marshal(header)
	payloadJSON, _ := json.Marshal(claims)
	headerEnc := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadEnc := base64.RawURLEncoding.EncodeToString(payloadJSON)
	data := headerEnc + "." + payloadEnc
	return data + "." + hmacSign(secret, data), nil
}

func hmacSign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyToken checks signature and expiry and returns the claims.
func VerifyToken(secret, token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("invalid token")
	}
	expected := hmacSign(secret, parts[0]+"."+parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, errors.New("invalid signature")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}
	if claims.Exp != 0 && time.Now().Unix() > claims.Exp {
		return nil, errors.New("token expired")
	}
	return &claims, nil
}

// OwnerKey resolves the caller identity used to own portrait jobs:
// authenticated users get "user:<sub>", anonymous callers with a session get
// "session:<key>", and everyone else a stable per-address key. A present but
// invalid bearer token is rejected rather than downgraded.
func OwnerKey(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := ""
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					http.Error(w, "invalid authorization", http.StatusUnauthorized)
					return
				}
				claims, err := VerifyToken(secret, parts[1])
				if err != nil {
					http.Error(w, "invalid token", http.StatusUnauthorized)
					return
				}
				owner = "user:" + claims.Sub
			} else if session := strings.TrimSpace(r.Header.Get("X-Session-Key")); session != "" {
				owner = "session:" + session
			} else {
				owner = "anon:" + ClientKey(r)
			}
			ctx := context.WithValue(r.Context(), ownerKeyContextKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerKeyFromContext returns the resolved owner key.
func OwnerKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ownerKeyContextKey{}).(string); ok {
		return v
	}
	return ""
}

// ContextWithOwnerKey injects an owner key, for handler tests.
func ContextWithOwnerKey(ctx context.Context, owner string) context.Context {
	if strings.TrimSpace(owner) == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerKeyContextKey{}, owner)
}

// ContextWithClientKey injects a client key, for handler tests.
func ContextWithClientKey(ctx context.Context, key string) context.Context {
	if strings.TrimSpace(key) == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKeyContextKey{}, key)
}
