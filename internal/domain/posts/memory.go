package posts

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/Togather-Foundation/tsukuyomi/internal/api/pagination"
)

// MemoryRepository keeps posts in memory, ordered by creation time and ULID.
type MemoryRepository struct {
	mu    sync.RWMutex
	posts map[string]Post
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{posts: make(map[string]Post)}
}

func (r *MemoryRepository) List(_ context.Context, filters Filters, page Pagination) (ListResult, error) {
	var cursor *pagination.PostCursor
	if page.After != "" {
		c, err := pagination.DecodePostCursor(page.After)
		if err != nil {
			return ListResult{}, FilterError{Field: "after", Message: "invalid cursor"}
		}
		cursor = &c
	}
	limit := pagination.ClampLimit(page.Limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result ListResult
	for _, id := range r.order {
		post := r.posts[id]
		if cursor != nil && !cursor.After(post.CreatedAt, post.ULID) {
			continue
		}
		if filters.Author != "" && post.Author != filters.Author {
			continue
		}
		if filters.Tag != "" && !slices.Contains(post.Tags, filters.Tag) {
			continue
		}
		if len(result.Posts) == limit {
			last := result.Posts[len(result.Posts)-1]
			result.NextCursor = pagination.EncodePostCursor(last.CreatedAt, last.ULID)
			break
		}
		result.Posts = append(result.Posts, clonePost(post))
	}
	return result, nil
}

func (r *MemoryRepository) GetByULID(_ context.Context, ulid string) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	post, ok := r.posts[ulid]
	if !ok {
		return nil, ErrNotFound
	}
	p := clonePost(post)
	return &p, nil
}

func (r *MemoryRepository) Create(_ context.Context, post Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ULID] = clonePost(post)
	r.order = append(r.order, post.ULID)
	sort.SliceStable(r.order, func(i, j int) bool {
		a, b := r.posts[r.order[i]], r.posts[r.order[j]]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ULID < b.ULID
	})
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, post Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[post.ULID]; !ok {
		return ErrNotFound
	}
	r.posts[post.ULID] = clonePost(post)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, ulid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[ulid]; !ok {
		return ErrNotFound
	}
	delete(r.posts, ulid)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == ulid })
	return nil
}

func (r *MemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.posts), nil
}

func clonePost(p Post) Post {
	p.Tags = slices.Clone(p.Tags)
	return p
}
