package graph

import (
	"context"

	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"github.com/99designs/gqlgen/graphql"
)

// TransactionReader serves Order.transaction from the gateway mirror.
type TransactionReader interface {
	GetTransaction(ctx context.Context, transactionID string) (*payment.Transaction, error)
}

type Resolver struct {
	CartSvc      cart.Service
	OrderSvc     order.Service
	PaymentSvc   payment.Service
	CatalogSvc   catalog.Service
	Transactions TransactionReader
}

type queryResolver struct{ *Resolver }

type mutationResolver struct{ *Resolver }

type orderResolver struct{ *Resolver }

type productResolver struct{ *Resolver }

func NewSchema(r *Resolver) graphql.ExecutableSchema {
	return NewExecutableSchema(Config{
		Resolvers: r,
		Directives: DirectiveRoot{
			Auth: AuthDirective,
		},
	})
}
