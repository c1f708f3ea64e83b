package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "hookbin/internal/api/context"
	"hookbin/internal/pkg/errors"
	"hookbin/internal/platform/auth"
	"hookbin/internal/platform/repositories"
)

type AuthMiddleware struct {
	tokenSvc *auth.TokenService
	userRepo *repositories.UserRepository
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, userRepo *repositories.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, userRepo: userRepo}
}

// Handle validates the bearer token and resolves the principal. Downstream
// handlers read the *models.User from the context; a request without a valid
// principal never reaches them.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid token subject", nil)
			return
		}

		user, err := m.userRepo.GetByID(userID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load principal", nil)
			return
		}
		if user == nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Unknown principal", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = context.WithValue(ctx, apiContext.Principal, user)
		next(w, r.WithContext(ctx))
	}
}
