// Package context holds the request-scoped values shared by the HTTP
// middleware chain, the logging handlers and the request handlers.
package context

type contextKey string
