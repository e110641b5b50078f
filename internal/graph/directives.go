package graph

import (
	"context"
	"strings"

	"storefront-be/internal/graph/model"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"github.com/99designs/gqlgen/graphql"
	"go.uber.org/zap"
)

// AuthDirective requires a verified access token. ADMIN fields also
// require the admin role claim.
func AuthDirective(ctx context.Context, obj any, next graphql.Resolver, role *model.Role) (res any, err error) {
	userID, ok := utils.GetUserIDFromContext(ctx)
	if !ok {
		return nil, errUnauthenticated
	}

	requiredRole := model.RoleUser
	if role != nil {
		requiredRole = *role
	}

	userRole := strings.ToUpper(utils.GetRoleFromContext(ctx))
	if requiredRole == model.RoleAdmin && userRole != string(model.RoleAdmin) {
		logger.FromCtx(ctx).Warn("admin field denied", zap.Uint("user_id", userID))
		return nil, errForbidden
	}
	return next(ctx)
}
