// Package web holds request helpers shared by the API and its client.
package web

import (
	"context"
	"net/http"
)

// ContextKey is a typed key for values carried by a context.
type ContextKey[T any] struct {
	name string
}

func NewContextKey[T any](name string) ContextKey[T] {
	return ContextKey[T]{name: name}
}

func (k ContextKey[T]) String() string {
	return "web context key " + k.name
}

func (k ContextKey[T]) With(ctx context.Context, value T) context.Context {
	return context.WithValue(ctx, k, value)
}

func (k ContextKey[T]) From(ctx context.Context) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// AddToRequest returns a shallow copy of r whose context carries value.
func (k ContextKey[T]) AddToRequest(r *http.Request, value T) *http.Request {
	return r.WithContext(k.With(r.Context(), value))
}

func (k ContextKey[T]) FromRequest(r *http.Request) (T, bool) {
	return k.From(r.Context())
}
