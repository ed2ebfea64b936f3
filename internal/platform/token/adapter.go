package token

import (
	authmw "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/middleware/auth"
)

// MiddlewareAdapter exposes a JWTService as the auth middleware's validator.
type MiddlewareAdapter struct {
	service *JWTService
}

func NewMiddlewareAdapter(service *JWTService) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{AccountID: claims.AccountID}, nil
}
