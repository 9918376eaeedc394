package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// CountryLookup resolves ISO country codes for an IP address. Used only for
// audit logging; failures are ignored.
type CountryLookup func(ip string) (string, error)

type clientKeyContextKey struct{}
type countryContextKey struct{}

// ClientMeta resolves the normalized client key (the limiter's identity) and
// a best-effort country code and stores both in the request context.
func ClientMeta(lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientKey(r)
			ctx := context.WithValue(r.Context(), clientKeyContextKey{}, key)
			if lookup != nil {
				if country, err := lookup(key); err == nil && country != "" {
					ctx = context.WithValue(ctx, countryContextKey{}, strings.ToUpper(country))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientKey returns the normalized source address for the request: the first
// valid IP in X-Forwarded-For, otherwise the remote host.
func ClientKey(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}

// ClientKeyFromContext returns the normalized client key stored by ClientMeta.
func ClientKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientKeyContextKey{}).(string); ok {
		return v
	}
	return ""
}

// CountryFromContext returns the ISO country code stored by ClientMeta.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(countryContextKey{}).(string); ok {
		return v
	}
	return ""
}
