package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-be/internal/graph/model"
	"storefront-be/internal/logger"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

type DirectiveRoot struct {
	Auth func(ctx context.Context, obj any, next graphql.Resolver, role *model.Role) (res any, err error)
}

type Config struct {
	Resolvers  *Resolver
	Directives DirectiveRoot
}

// rootField resolves a Query or Mutation field from its bound arguments.
type rootField func(ctx context.Context, args map[string]any) (any, error)

// objectField resolves a field of an already loaded object. parent is the
// object as it will be rendered, including fields the query did not select.
type objectField func(ctx context.Context, parent map[string]any) (any, error)

type executableSchema struct {
	queries    map[string]rootField
	mutations  map[string]rootField
	objects    map[string]objectField
	directives DirectiveRoot
}

var _ graphql.ExecutableSchema = (*executableSchema)(nil)

// NewExecutableSchema binds schema.graphqls to the resolvers. Root fields
// run in document order and each one goes through the server's field
// middleware, so extensions such as rate limiting see every call.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	q := &queryResolver{cfg.Resolvers}
	m := &mutationResolver{cfg.Resolvers}
	o := &orderResolver{cfg.Resolvers}
	p := &productResolver{cfg.Resolvers}

	return &executableSchema{
		directives: cfg.Directives,
		queries: map[string]rootField{
			"cart": func(ctx context.Context, _ map[string]any) (any, error) {
				return q.Cart(ctx)
			},
			"order": func(ctx context.Context, args map[string]any) (any, error) {
				id, err := bindArg[string](args, "id")
				if err != nil {
					return nil, err
				}
				return q.Order(ctx, id)
			},
			"product": func(ctx context.Context, args map[string]any) (any, error) {
				id, err := bindArg[string](args, "id")
				if err != nil {
					return nil, err
				}
				return q.Product(ctx, id)
			},
		},
		mutations: map[string]rootField{
			"addToCart": func(ctx context.Context, args map[string]any) (any, error) {
				input, err := bindArg[model.AddToCartInput](args, "input")
				if err != nil {
					return nil, err
				}
				return m.AddToCart(ctx, input)
			},
			"updateCartItem": func(ctx context.Context, args map[string]any) (any, error) {
				input, err := bindArg[model.UpdateCartItemInput](args, "input")
				if err != nil {
					return nil, err
				}
				return m.UpdateCartItem(ctx, input)
			},
			"removeFromCart": func(ctx context.Context, args map[string]any) (any, error) {
				input, err := bindArg[model.RemoveFromCartInput](args, "input")
				if err != nil {
					return nil, err
				}
				return m.RemoveFromCart(ctx, input)
			},
			"mergeCart": func(ctx context.Context, _ map[string]any) (any, error) {
				return m.MergeCart(ctx)
			},
			"checkout": func(ctx context.Context, args map[string]any) (any, error) {
				input, err := bindArg[model.CheckoutInput](args, "input")
				if err != nil {
					return nil, err
				}
				return m.Checkout(ctx, input)
			},
			"createCharge": func(ctx context.Context, args map[string]any) (any, error) {
				input, err := bindArg[model.CreateChargeInput](args, "input")
				if err != nil {
					return nil, err
				}
				return m.CreateCharge(ctx, input)
			},
			"updateProductPrice": func(ctx context.Context, args map[string]any) (any, error) {
				id, err := bindArg[string](args, "productId")
				if err != nil {
					return nil, err
				}
				price, err := bindArg[string](args, "price")
				if err != nil {
					return nil, err
				}
				return m.UpdateProductPrice(ctx, id, price)
			},
			"updateProductStock": func(ctx context.Context, args map[string]any) (any, error) {
				id, err := bindArg[string](args, "productId")
				if err != nil {
					return nil, err
				}
				stock, err := bindArg[int32](args, "stock")
				if err != nil {
					return nil, err
				}
				return m.UpdateProductStock(ctx, id, stock)
			},
			"purgeCatalogCache": func(ctx context.Context, _ map[string]any) (any, error) {
				return m.PurgeCatalogCache(ctx)
			},
		},
		objects: map[string]objectField{
			"Order.transaction": func(ctx context.Context, parent map[string]any) (any, error) {
				var obj model.Order
				if err := fromGeneric(parent, &obj); err != nil {
					return nil, err
				}
				return o.Transaction(ctx, &obj)
			},
			"Product.category": func(ctx context.Context, parent map[string]any) (any, error) {
				var obj model.Product
				if err := fromGeneric(parent, &obj); err != nil {
					return nil, err
				}
				return p.Category(ctx, &obj)
			},
		},
	}
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(ctx context.Context, typeName, fieldName string, childComplexity int, args map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	opCtx := graphql.GetOperationContext(ctx)
	first := true

	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false

		ec := &executionContext{OperationContext: opCtx, schema: e}

		var data orderedObject
		switch opCtx.Operation.Operation {
		case ast.Query:
			data = ec.root(ctx, "Query", e.queries)
		case ast.Mutation:
			data = ec.root(ctx, "Mutation", e.mutations)
		default:
			return graphql.ErrorResponse(ctx, "unsupported GraphQL operation")
		}

		buf, err := json.Marshal(data)
		if err != nil {
			logger.FromCtx(ctx).Error("failed to encode graphql response", zap.Error(err))
			return graphql.ErrorResponse(ctx, msgInternalFailure)
		}
		return &graphql.Response{Data: buf}
	}
}

type executionContext struct {
	*graphql.OperationContext
	schema *executableSchema
}

func (ec *executionContext) root(ctx context.Context, typeName string, resolvers map[string]rootField) orderedObject {
	fields := graphql.CollectFields(ec.OperationContext, ec.Operation.SelectionSet, []string{typeName})
	out := make(orderedObject, 0, len(fields))

	for _, field := range fields {
		switch field.Name {
		case "__typename":
			out = append(out, member{field.Alias, typeName})
			continue
		case "__schema", "__type":
			graphql.AddError(ec.fieldContext(ctx, typeName, field, nil), errIntrospectionDisabled)
			out = append(out, member{field.Alias, nil})
			continue
		}

		resolve, ok := resolvers[field.Name]
		if !ok {
			graphql.AddError(ec.fieldContext(ctx, typeName, field, nil), fmt.Errorf("no resolver for %s.%s", typeName, field.Name))
			out = append(out, member{field.Alias, nil})
			continue
		}

		args := field.ArgumentMap(ec.Variables)
		fctx := ec.fieldContext(ctx, typeName, field, args)
		value := ec.resolveField(fctx, field, func(ctx context.Context) (any, error) {
			return resolve(ctx, args)
		})
		out = append(out, member{field.Alias, value})
	}
	return out
}

func (ec *executionContext) fieldContext(ctx context.Context, typeName string, field graphql.CollectedField, args map[string]any) context.Context {
	return graphql.WithFieldContext(ctx, &graphql.FieldContext{
		Parent:     graphql.GetFieldContext(ctx),
		Object:     typeName,
		Field:      field,
		Args:       args,
		IsMethod:   true,
		IsResolver: true,
	})
}

// resolveField runs a resolver through directives and field middleware and
// renders its result. Failures are reported on the field path and the field
// becomes null.
func (ec *executionContext) resolveField(ctx context.Context, field graphql.CollectedField, resolve graphql.Resolver) (out any) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromCtx(ctx).Error("resolver panic",
				zap.String("field", field.Name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			graphql.AddError(ctx, errInternal)
			out = nil
		}
	}()

	next := ec.withDirectives(field, resolve)

	var (
		res any
		err error
	)
	if ec.ResolverMiddleware != nil {
		res, err = ec.ResolverMiddleware(ctx, next)
	} else {
		res, err = next(ctx)
	}
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}

	generic, err := toGeneric(res)
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}

	value, err := ec.complete(ctx, field.Definition.Type, field.Selections, generic)
	if err != nil {
		graphql.AddError(ctx, err)
		return nil
	}
	return value
}

func (ec *executionContext) withDirectives(field graphql.CollectedField, next graphql.Resolver) graphql.Resolver {
	if field.Definition == nil {
		return next
	}

	for _, d := range field.Definition.Directives {
		if d.Name != "auth" || ec.schema.directives.Auth == nil {
			continue
		}
		role := directiveRole(d)
		inner := next
		next = func(ctx context.Context) (any, error) {
			return ec.schema.directives.Auth(ctx, nil, inner, role)
		}
	}
	return next
}

func directiveRole(d *ast.Directive) *model.Role {
	if d.Definition == nil {
		return nil
	}
	s, ok := d.ArgumentMap(nil)["role"].(string)
	if !ok {
		return nil
	}
	role := model.Role(s)
	return &role
}

var errNullValue = errors.New("must not be null")

// complete projects a generic value onto the selection set of typ.
func (ec *executionContext) complete(ctx context.Context, typ *ast.Type, sel ast.SelectionSet, v any) (any, error) {
	if v == nil {
		if typ.NonNull {
			return nil, errNullValue
		}
		return nil, nil
	}

	if typ.Elem != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list for %s", typ.String())
		}
		out := make([]any, len(list))
		for i, item := range list {
			value, err := ec.complete(ctx, typ.Elem, sel, item)
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	}

	def := parsedSchema.Types[typ.NamedType]
	if def == nil || def.Kind != ast.Object {
		// scalars and enums render as decoded
		return v, nil
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object for %s", typ.NamedType)
	}
	return ec.object(ctx, def.Name, sel, obj)
}

func (ec *executionContext) object(ctx context.Context, typeName string, sel ast.SelectionSet, obj map[string]any) (orderedObject, error) {
	fields := graphql.CollectFields(ec.OperationContext, sel, []string{typeName})
	out := make(orderedObject, 0, len(fields))

	for _, field := range fields {
		if field.Name == "__typename" {
			out = append(out, member{field.Alias, typeName})
			continue
		}

		if resolve, ok := ec.schema.objects[typeName+"."+field.Name]; ok {
			fctx := ec.fieldContext(ctx, typeName, field, field.ArgumentMap(ec.Variables))
			value := ec.resolveField(fctx, field, func(ctx context.Context) (any, error) {
				return resolve(ctx, obj)
			})
			out = append(out, member{field.Alias, value})
			continue
		}

		value, err := ec.complete(ctx, field.Definition.Type, field.Selections, obj[field.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typeName, field.Name, err)
		}
		out = append(out, member{field.Alias, value})
	}
	return out, nil
}

// member keeps response keys in selection order.
type member struct {
	key   string
	value any
}

type orderedObject []member

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		value, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// toGeneric turns a resolver result into maps, slices and json.Number so
// it can be projected by field name.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromGeneric(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func bindArg[T any](args map[string]any, name string) (T, error) {
	var out T
	if err := fromGeneric(args[name], &out); err != nil {
		return out, &inputError{arg: name, err: err}
	}
	return out, nil
}
