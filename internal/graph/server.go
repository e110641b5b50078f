package graph

import (
	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
)

// NewServer serves the schema over GET and POST. Introspection stays off.
func NewServer(schema graphql.ExecutableSchema, exts ...graphql.HandlerExtension) *handler.Server {
	srv := handler.New(schema)
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.SetErrorPresenter(ErrorPresenter)

	for _, ext := range exts {
		srv.Use(ext)
	}
	return srv
}
