package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/siahsang/portfolio/models"
)

// Resource names accepted by the API.
const (
	ResourceSkills       = "skills"
	ResourceCertificates = "certificates"
	ResourceTestimonials = "testimonials"
	ResourceProjects     = "projects"
	ResourceBlogs        = "blogs"
)

var ResourceNames = []string{ResourceSkills, ResourceCertificates, ResourceTestimonials, ResourceProjects, ResourceBlogs}

// Record is a resource decoded without a concrete type.
type Record = map[string]any

// Resource performs CRUD on one API collection.
type Resource[T any] struct {
	client *Client
	name   string
}

func NewResource[T any](c *Client, name string) *Resource[T] {
	return &Resource[T]{client: c, name: name}
}

func (r *Resource[T]) Name() string {
	return r.name
}

func (r *Resource[T]) List(ctx context.Context) ([]T, error) {
	out := make([]T, 0)
	if err := r.client.doJSON(ctx, http.MethodGet, r.name, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.client.doJSON(ctx, http.MethodGet, r.name+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (r *Resource[T]) Create(ctx context.Context, form Form) (T, error) {
	var out T
	err := r.client.doForm(ctx, http.MethodPost, r.name, form, &out)
	return out, err
}

func (r *Resource[T]) Update(ctx context.Context, id string, form Form) (T, error) {
	var out T
	err := r.client.doForm(ctx, http.MethodPut, r.name+"/"+url.PathEscape(id), form, &out)
	return out, err
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.doJSON(ctx, http.MethodDelete, r.name+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Skills() *Resource[models.Skill] {
	return NewResource[models.Skill](c, ResourceSkills)
}

func (c *Client) Certificates() *Resource[models.Certificate] {
	return NewResource[models.Certificate](c, ResourceCertificates)
}

func (c *Client) Testimonials() *Resource[models.Testimonial] {
	return NewResource[models.Testimonial](c, ResourceTestimonials)
}

func (c *Client) Projects() *Resource[models.Project] {
	return NewResource[models.Project](c, ResourceProjects)
}

func (c *Client) Blogs() *Resource[models.Blog] {
	return NewResource[models.Blog](c, ResourceBlogs)
}

// Records returns an untyped view of any collection.
func (c *Client) Records(name string) *Resource[Record] {
	return NewResource[Record](c, name)
}
