package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront-be/internal/auth"
	"storefront-be/internal/cart"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"go.uber.org/zap"
)

const SessionHeader = "X-Session-ID"

var ErrNoCartIdentity = errors.New("request carries neither a user token nor a session id")

// IdentityMiddleware resolves who owns the cart. A valid access token
// (cookie or bearer header) sets the user id; the X-Session-ID header sets
// the anonymous session. A token that fails verification is rejected with 401.
func IdentityMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if sid := strings.TrimSpace(r.Header.Get(SessionHeader)); sid != "" {
				ctx = utils.SetSessionContext(ctx, sid)
			}

			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := auth.ParseToken(tokenStr, secret)
			if err != nil {
				logger.FromCtx(ctx).Warn("rejected access token", zap.Error(err))
				utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx = utils.SetUserContext(ctx, claims.UserID)
			if claims.Role != "" {
				ctx = utils.SetRoleContext(ctx, claims.Role)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CartIdentityFromContext reads the identity stored by IdentityMiddleware.
// A logged in user always wins over the session header.
func CartIdentityFromContext(ctx context.Context) (cart.Identity, error) {
	if uid, ok := utils.GetUserIDFromContext(ctx); ok {
		return cart.ForUser(uid), nil
	}
	if sid := utils.GetSessionIDFromContext(ctx); sid != "" {
		return cart.ForSession(sid), nil
	}
	return cart.Identity{}, ErrNoCartIdentity
}
