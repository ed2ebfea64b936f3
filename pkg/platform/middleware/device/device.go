// Package device derives a stable guest identity for unauthenticated callers
// from the client-supplied device identifier.
package device

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	id "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// DeviceIDHeader carries the app-install identifier the mobile clients send.
const DeviceIDHeader = "X-Device-Id"

// guestNamespace makes guest IDs deterministic per device identifier, so the
// same install maps to the same guest across requests and app restarts.
var guestNamespace = uuid.MustParse("6f54d132-8e6e-4c6b-9a10-3f1be0c7c9d4")

// Identify reads the device header and, when the request has no account
// identity, binds a deterministic guest identity to the context. Requests with
// neither identity pass through; the handlers reject them.
func Identify(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			deviceID := strings.TrimSpace(r.Header.Get(DeviceIDHeader))
			if deviceID != "" {
				ctx = requestcontext.WithDeviceID(ctx, deviceID)
				if requestcontext.AccountID(ctx).IsNil() {
					guestID := id.GuestID(uuid.NewSHA1(guestNamespace, []byte(deviceID)))
					ctx = requestcontext.WithGuestID(ctx, guestID)
				}
			}

			if rawUA := r.Header.Get("User-Agent"); rawUA != "" {
				ua := useragent.New(rawUA)
				name, version := ua.Browser()
				logger.DebugContext(ctx, "client identified",
					"request_id", requestcontext.RequestID(ctx),
					"device_id", deviceID,
					"os", ua.OS(),
					"mobile", ua.Mobile(),
					"client", name,
					"client_version", version,
				)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
