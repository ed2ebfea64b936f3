// Package version provides middleware that records which versioned API
// surface routed a request.
package version

import (
	"net/http"

	id "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// Extract returns middleware that stamps the given API version into the
// request context. With chi the version is already decided by the route
// match, so the middleware only has to record it:
//
//	r.Route("/v1", func(v1 chi.Router) {
//	    v1.Use(version.Extract(id.APIVersionV1))
//	    // ... routes
//	})
func Extract(version id.APIVersion) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithAPIVersion(r.Context(), version)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
