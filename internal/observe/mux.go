package observe

import (
	"net/http"
	"slices"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Multiplexer is the subset of http.ServeMux used for route registration.
type Multiplexer interface {
	Handle(pattern string, handler http.Handler)
	http.Handler
}

// Mux registers every route with server-side telemetry. Spans are named by the
// route, never the concrete path, so the environment segment does not explode
// span cardinality.
type Mux struct {
	routes Multiplexer
}

func NewMux(routes Multiplexer) *Mux {
	return &Mux{routes: routes}
}

func (mux *Mux) Handle(pattern string, handler http.Handler) {
	route := RouteName(pattern)

	mux.routes.Handle(pattern, otelhttp.NewHandler(handler, route,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + route
		}),
	))
}

func (mux *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux.routes.ServeHTTP(w, r)
}

var methods = []string{
	http.MethodConnect,
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
	http.MethodTrace,
}

// RouteName strips a leading method from a ServeMux pattern:
// "POST /token/{environment}" becomes "/token/{environment}".
func RouteName(pattern string) string {
	method, route, found := strings.Cut(pattern, " ")
	if !found || !slices.Contains(methods, method) {
		return pattern
	}
	return route
}
