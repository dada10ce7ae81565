package posts

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("post not found")

type Post struct {
	ULID      string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Filters struct {
	Author string
	Tag    string
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Posts      []Post
	NextCursor string
}

type Repository interface {
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	GetByULID(ctx context.Context, ulid string) (*Post, error)
	Create(ctx context.Context, post Post) error
	Update(ctx context.Context, post Post) error
	Delete(ctx context.Context, ulid string) error
	Count(ctx context.Context) (int, error)
}
