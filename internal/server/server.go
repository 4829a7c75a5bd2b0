package server

import (
	"net/http"
)

// Middleware decorates every request the router sees, including preflights and unmatched paths.
type Middleware func(http.Handler) http.Handler

// Handler serves a fixed set of method patterns, e.g. "GET /api/auth/status".
type Handler interface {
	http.Handler
	Routes() []string
}

// Router registers method-scoped routes behind a middleware stack.
//
// Paths may use [http.ServeMux] wildcards such as {id}; a GET route also answers HEAD.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	HandleFunc(method, path string, fn http.HandlerFunc)
	Handler(handler Handler)
	http.Handler
}
