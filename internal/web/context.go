package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"

	"github.com/JonMunkholm/adoptsync/internal/core"
)

// WithRequestMetadata adds the client IP, User-Agent and actor to ctx for
// audit logging. The actor is a short fingerprint of the API key, or the
// client IP when no key was sent.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := clientIP(r)
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())

	actor := ip
	if key := r.Header.Get("X-API-Key"); key != "" {
		actor = keyFingerprint(key)
	}
	return core.ContextWithActor(ctx, actor)
}

// requestMetadata is middleware applying WithRequestMetadata.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}

// clientIP strips the port from RemoteAddr, already rewritten by
// TrustedRealIP when the request came through a trusted proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func keyFingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:4])
}
