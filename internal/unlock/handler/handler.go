// Package handler wires the unlock endpoint to the unlock service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/unlock"
	id "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/httputil"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/requestcontext"
)

// Service defines the interface for unlock operations.
type Service interface {
	Unlock(ctx context.Context, req unlock.Request) (*unlock.Result, error)
}

// Handler wires unlock endpoints to the unlock service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an unlock handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts unlock endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/vehicles/{vrm}/unlock", h.HandleUnlock)
}

// HandleUnlock handles POST /vehicles/{vrm}/unlock requests.
func (h *Handler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	requester, err := requesterFromContext(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reg, err := id.ParseRegistration(chi.URLParam(r, "vrm"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The body is optional: a bare POST is a free unlock.
	req := &UnlockRequest{}
	if r.ContentLength != 0 {
		var ok bool
		req, ok = httputil.DecodeAndPrepare[UnlockRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
	}

	result, err := h.service.Unlock(ctx, unlock.Request{
		Registration:  reg,
		Requester:     requester,
		TransactionID: req.TransactionID,
		ProductID:     req.ProductID,
		Platform:      req.ParsedPlatform(),
		Source:        req.ParsedSource(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "unlock refused",
			"request_id", requestID,
			"requester", requester.Key(),
			"registration", reg,
			"code", dErrors.GetCode(err),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "unlock granted",
		"request_id", requestID,
		"requester", requester.Key(),
		"registration", reg,
		"already_unlocked", result.AlreadyUnlocked,
		"retention", result.Retention,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromResult(result))
}

// requesterFromContext resolves the caller identity set by the auth or device
// middleware. Authenticated accounts win over guest identities.
func requesterFromContext(ctx context.Context) (id.Requester, error) {
	if accountID := requestcontext.AccountID(ctx); !accountID.IsNil() {
		return id.NewAccountRequester(accountID), nil
	}
	if guestID := requestcontext.GuestID(ctx); !guestID.IsNil() {
		return id.NewGuestRequester(guestID), nil
	}
	return id.Requester{}, dErrors.New(dErrors.CodeUnauthorized, "account or guest identity required")
}
