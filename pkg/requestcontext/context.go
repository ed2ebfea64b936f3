// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them, services read them, and the
// package stays free of net/http so services never pull transport code in.
package requestcontext

import (
	"context"
	"time"

	id "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	accountIDKey  struct{}
	guestIDKey    struct{}
	deviceIDKey   struct{}
	clientIPKey   struct{}
	userAgentKey  struct{}
	requestIDKey  struct{}
	timeKey       struct{}
	apiVersionKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyAccountID  = accountIDKey{}
	ContextKeyGuestID    = guestIDKey{}
	ContextKeyDeviceID   = deviceIDKey{}
	ContextKeyClientIP   = clientIPKey{}
	ContextKeyUserAgent  = userAgentKey{}
	ContextKeyRequestID  = requestIDKey{}
	ContextKeyTime       = timeKey{}
	ContextKeyAPIVersion = apiVersionKey{}
)

// AccountID retrieves the authenticated account ID, or the zero value.
func AccountID(ctx context.Context) id.AccountID {
	if accountID, ok := ctx.Value(ContextKeyAccountID).(id.AccountID); ok {
		return accountID
	}
	return id.AccountID{}
}

// WithAccountID injects an account ID into the context.
func WithAccountID(ctx context.Context, accountID id.AccountID) context.Context {
	return context.WithValue(ctx, ContextKeyAccountID, accountID)
}

// GuestID retrieves the device-bound guest ID, or the zero value.
func GuestID(ctx context.Context) id.GuestID {
	if guestID, ok := ctx.Value(ContextKeyGuestID).(id.GuestID); ok {
		return guestID
	}
	return id.GuestID{}
}

// WithGuestID injects a guest ID into the context.
func WithGuestID(ctx context.Context, guestID id.GuestID) context.Context {
	return context.WithValue(ctx, ContextKeyGuestID, guestID)
}

// DeviceID retrieves the raw device identifier header value, or "".
func DeviceID(ctx context.Context) string {
	if deviceID, ok := ctx.Value(ContextKeyDeviceID).(string); ok {
		return deviceID
	}
	return ""
}

// WithDeviceID injects a device identifier into the context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, ContextKeyDeviceID, deviceID)
}

// ClientIP retrieves the client IP recorded by middleware, or "".
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIP, ip)
}

// UserAgent retrieves the request user agent, or "".
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithUserAgent injects the user agent into the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ContextKeyUserAgent, ua)
}

// RequestID retrieves the correlation ID for the request, or "".
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped timestamp set at ingress. Falls back to
// time.Now so callers outside an HTTP request still get a usable value.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a request-scoped timestamp into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyTime, t)
}

// APIVersion retrieves the API version the request was routed under, or "".
func APIVersion(ctx context.Context) id.APIVersion {
	if v, ok := ctx.Value(ContextKeyAPIVersion).(id.APIVersion); ok {
		return v
	}
	return ""
}

// WithAPIVersion injects the routed API version into the context.
func WithAPIVersion(ctx context.Context, v id.APIVersion) context.Context {
	return context.WithValue(ctx, ContextKeyAPIVersion, v)
}
