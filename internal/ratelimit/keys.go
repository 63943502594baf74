package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// SentinelKey is used when no request details are available, for example on
// a background path. Such callers share one bucket instead of failing.
const SentinelKey = "unknown"

// RequestInfo is the caller identity a bucket key is derived from. Identity
// is resolved upstream; this package only reads it.
type RequestInfo struct {
	IP     string
	UserID string
	Path   string
}

type requestInfoKey struct{}

// WithRequestInfo attaches info to ctx for Guard and the HTTP middleware.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the request details attached to ctx, if any.
func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

func IPKey(ip string) string {
	return "ip:" + ip
}

func UserKey(userID string) string {
	return "user:" + userID
}

func EndpointKey(path string) string {
	return "endpoint:" + path
}

func CombinedKey(ip, path string) string {
	return "combined:" + ip + ":" + path
}

// ResolveKey derives the bucket key for p. An explicit key always wins.
// With no request details the sentinel key is returned. USER falls back to
// the caller IP for anonymous callers.
func ResolveKey(p Policy, info *RequestInfo) string {
	if p.Key != "" {
		return p.Key
	}
	if info == nil {
		return SentinelKey
	}

	switch p.Strategy {
	case StrategyUser:
		if info.UserID != "" {
			return UserKey(info.UserID)
		}
		return UserKey(info.IP)
	case StrategyEndpoint:
		return EndpointKey(info.Path)
	case StrategyCombined:
		return CombinedKey(info.IP, info.Path)
	default:
		return IPKey(info.IP)
	}
}

// ClientIP extracts the caller address. The first non-empty source wins:
// the first X-Forwarded-For entry, then X-Real-IP, then the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
