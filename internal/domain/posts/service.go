package posts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/tsukuyomi/internal/api/pagination"
	"github.com/Togather-Foundation/tsukuyomi/internal/domain/ids"
	"github.com/Togather-Foundation/tsukuyomi/internal/sanitize"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateParams is the payload accepted when creating or replacing a post.
type CreateParams struct {
	Title string   `json:"title" validate:"required,max=200"`
	Body  string   `json:"body" validate:"required,max=10000"`
	Tags  []string `json:"tags" validate:"max=10,dive,required,max=32"`
}

type FilterError struct {
	Field   string
	Message string
}

func (e FilterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ListParams are the query parameters of a post listing.
type ListParams struct {
	Limit  int    `form:"limit"`
	After  string `form:"after"`
	Author string `form:"author"`
	Tag    string `form:"tag"`
}

// Filters validates the parameters and splits them into filters and
// pagination.
func (p ListParams) Filters() (Filters, Pagination, error) {
	filters := Filters{
		Author: strings.TrimSpace(p.Author),
		Tag:    strings.ToLower(strings.TrimSpace(p.Tag)),
	}
	page := Pagination{Limit: pagination.ClampLimit(p.Limit), After: strings.TrimSpace(p.After)}
	if page.After != "" {
		if _, err := pagination.DecodePostCursor(page.After); err != nil {
			return filters, page, FilterError{Field: "after", Message: "invalid cursor"}
		}
	}
	return filters, page, nil
}

func (s *Service) List(ctx context.Context, filters Filters, page Pagination) (ListResult, error) {
	return s.repo.List(ctx, filters, page)
}

func (s *Service) GetByULID(ctx context.Context, ulid string) (*Post, error) {
	return s.repo.GetByULID(ctx, ulid)
}

// Create stores a new post written by author. Text fields are stripped of
// markup.
func (s *Service) Create(ctx context.Context, author string, params CreateParams) (*Post, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	id, err := ids.NewULIDAt(now)
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	post := Post{
		ULID:      id,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyParams(&post, params)
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

// Update replaces the content of an existing post.
func (s *Service) Update(ctx context.Context, ulid string, params CreateParams) (*Post, error) {
	post, err := s.repo.GetByULID(ctx, ulid)
	if err != nil {
		return nil, err
	}
	updated := *post
	applyParams(&updated, params)
	updated.UpdatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, ulid string) error {
	return s.repo.Delete(ctx, ulid)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func applyParams(post *Post, params CreateParams) {
	title, body := params.Title, params.Body
	sanitize.Fields(&title, &body)
	post.Title = title
	post.Body = body

	post.Tags = post.Tags[:0:0]
	seen := map[string]bool{}
	for _, tag := range params.Tags {
		tag = strings.ToLower(strings.TrimSpace(sanitize.Text(tag)))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		post.Tags = append(post.Tags, tag)
	}
}
