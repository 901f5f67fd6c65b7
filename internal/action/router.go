package action

import (
	"context"
	"fmt"
	"log/slog"

	"confessional/internal/models"
	"confessional/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Handler runs one action and returns a JSON-serializable result.
type Handler func(ctx context.Context, req Request) (any, error)

type route struct {
	handler   Handler
	adminOnly bool
}

// Router is the dispatch table from Kind to handler.
type Router struct {
	routes  map[Kind]route
	isAdmin func(int64) bool
}

func NewRouter(isAdmin func(userID int64) bool) *Router {
	if isAdmin == nil {
		isAdmin = func(int64) bool { return false }
	}
	return &Router{routes: make(map[Kind]route), isAdmin: isAdmin}
}

// Handle registers h for kind. Registering a kind twice or one outside the
// closed set is a programming error.
func (r *Router) Handle(kind Kind, adminOnly bool, h Handler) {
	if _, ok := known[kind]; !ok {
		panic(fmt.Sprintf("action: unknown kind %q", kind))
	}
	if _, dup := r.routes[kind]; dup {
		panic(fmt.Sprintf("action: %q registered twice", kind))
	}
	r.routes[kind] = route{handler: h, adminOnly: adminOnly}
}

// AdminOnly reports whether kind is restricted to operators.
func (r *Router) AdminOnly(kind Kind) bool {
	return r.routes[kind].adminOnly
}

// Info describes one registered kind.
type Info struct {
	Kind      Kind `json:"kind"`
	AdminOnly bool `json:"admin_only"`
}

// Available lists the registered kinds userID may run, sorted by kind.
func (r *Router) Available(userID int64) []Info {
	admin := r.isAdmin(userID)
	var out []Info
	for _, k := range Kinds() {
		rt, ok := r.routes[k]
		if !ok || (rt.adminOnly && !admin) {
			continue
		}
		out = append(out, Info{Kind: k, AdminOnly: rt.adminOnly})
	}
	return out
}

// Dispatch validates the kind and the caller, then runs the handler.
func (r *Router) Dispatch(ctx context.Context, req Request) (any, error) {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return nil, err
	}
	rt, ok := r.routes[req.Kind]
	if !ok {
		return nil, models.NewValidationError(fmt.Sprintf("action %q is not available", req.Kind))
	}
	if req.ActorID <= 0 {
		return nil, models.NewUnauthorizedError("missing actor")
	}
	if rt.adminOnly && !r.isAdmin(req.ActorID) {
		return nil, models.NewForbiddenError("This action is only available to admins")
	}

	span, ctx := observability.NewSpan(ctx, "action."+string(req.Kind),
		attribute.String("action.kind", string(req.Kind)),
		attribute.Bool("action.admin_only", rt.adminOnly))
	defer span.End()

	result, err := rt.handler(ctx, req)
	if err != nil {
		span.SetError(err)
		observability.GlobalLogger.DebugContext(ctx, "action failed",
			slog.String("kind", string(req.Kind)),
			slog.String("code", models.ErrorCode(err)))
		return nil, err
	}
	return result, nil
}
