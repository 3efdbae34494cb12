package web

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKey(t *testing.T) {
	name := NewContextKey[string]("name")
	count := NewContextKey[int]("name")

	r := name.AddToRequest(httptest.NewRequest("GET", "/", nil), "gopher")
	v, ok := name.FromRequest(r)
	assert.True(t, ok)
	assert.Equal(t, "gopher", v)

	_, ok = count.FromRequest(r)
	assert.False(t, ok, "keys with the same name but another type do not collide")

	_, ok = name.From(context.Background())
	assert.False(t, ok)
}
