// Package resource defines the searchable corpus: named text resources that
// the search endpoint scores against a query. Resources live in a Store,
// either in memory or in PostgreSQL.
package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxIDLength      = 128
	maxTitleLength   = 1024
	maxContentLength = 1 << 20
)

// Resource is a stored piece of text that can be searched.
type Resource struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchText is the text a query is scored against.
func (r Resource) SearchText() string {
	if r.Title == "" {
		return r.Content
	}
	return r.Title + "\n" + r.Content
}

// CreateRequest is the JSON body accepted when storing a resource. An empty
// ID asks the server to assign one.
type CreateRequest struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Store persists resources. Put creates or replaces by ID. Get and Delete
// return an error wrapping errors.ErrResourceNotFound for unknown IDs.
type Store interface {
	Put(ctx context.Context, r Resource) (Resource, error)
	Get(ctx context.Context, id string) (Resource, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Resource, error)
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Validate checks the request's field lengths and encodings and returns a
// ValidationError if any field is rejected.
func Validate(req *CreateRequest) error {
	errs := make(map[string]string)

	if len(req.ID) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	} else if req.ID != "" && (strings.TrimSpace(req.ID) != req.ID || strings.ContainsAny(req.ID, "/?#")) {
		errs["id"] = "id must not contain surrounding whitespace or any of / ? #"
	}
	if !utf8.ValidString(req.Title) {
		errs["title"] = "title must be valid UTF-8"
	} else if len(req.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
	}
	content := strings.TrimSpace(req.Content)
	switch {
	case !utf8.ValidString(req.Content):
		errs["content"] = "content must be valid UTF-8"
	case content == "":
		errs["content"] = "content is required and must not be empty"
	case len(req.Content) > maxContentLength:
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", maxContentLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// FromRequest builds a Resource from a validated request, assigning a UUID
// when no ID was given.
func FromRequest(req *CreateRequest) Resource {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Resource{
		ID:      id,
		Title:   strings.TrimSpace(req.Title),
		Content: req.Content,
	}
}
