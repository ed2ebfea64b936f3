package testutil

import (
	"net/http"

	id "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// WithAccount adds an account identity to the request context, simulating
// what the auth middleware does for authenticated requests.
// If the accountID is not a valid UUID, it will not be added to the context.
func WithAccount(req *http.Request, accountID string) *http.Request {
	if parsed, err := id.ParseAccountID(accountID); err == nil {
		return req.WithContext(requestcontext.WithAccountID(req.Context(), parsed))
	}
	return req
}

// WithGuest adds a guest identity to the request context, simulating what the
// device middleware does for anonymous requests.
// If the guestID is not a valid UUID, it will not be added to the context.
func WithGuest(req *http.Request, guestID string) *http.Request {
	if parsed, err := id.ParseGuestID(guestID); err == nil {
		return req.WithContext(requestcontext.WithGuestID(req.Context(), parsed))
	}
	return req
}

// WithRequestID adds a correlation ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
