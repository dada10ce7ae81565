package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/tsukuyomi/internal/api/pagination"
	"github.com/Togather-Foundation/tsukuyomi/internal/domain/posts"
)

var _ posts.Repository = (*PostRepository)(nil)

type PostRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewPostRepository(pool *pgxpool.Pool) (*PostRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &PostRepository{pool: pool}, nil
}

// WithTx runs fn against a repository bound to a single transaction.
func (r *PostRepository) WithTx(ctx context.Context, fn func(*PostRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PostRepository{pool: r.pool, tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks the connection for the health endpoint.
func (r *PostRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const postColumns = `p.ulid, p.title, p.body, p.author, p.tags, p.created_at, p.updated_at`

func (r *PostRepository) List(ctx context.Context, filters posts.Filters, page posts.Pagination) (posts.ListResult, error) {
	var cursorTimestamp *time.Time
	var cursorULID *string
	if strings.TrimSpace(page.After) != "" {
		cursor, err := pagination.DecodePostCursor(page.After)
		if err != nil {
			return posts.ListResult{}, posts.FilterError{Field: "after", Message: "invalid cursor"}
		}
		cursorTimestamp = &cursor.CreatedAt
		cursorULID = &cursor.ULID
	}

	limit := pagination.ClampLimit(page.Limit)
	limitPlusOne := limit + 1

	rows, err := r.queryer().Query(ctx, `
SELECT `+postColumns+`
  FROM posts p
 WHERE ($1 = '' OR p.author = $1)
   AND ($2 = '' OR $2 = ANY(p.tags))
   AND (
     $3::timestamptz IS NULL OR
     p.created_at > $3::timestamptz OR
     (p.created_at = $3::timestamptz AND p.ulid > $4)
   )
 ORDER BY p.created_at ASC, p.ulid ASC
 LIMIT $5
`,
		filters.Author,
		filters.Tag,
		cursorTimestamp,
		cursorULID,
		limitPlusOne,
	)
	if err != nil {
		return posts.ListResult{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]posts.Post, 0, limitPlusOne)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return posts.ListResult{}, fmt.Errorf("scan posts: %w", err)
		}
		items = append(items, post)
	}
	if err := rows.Err(); err != nil {
		return posts.ListResult{}, fmt.Errorf("iterate posts: %w", err)
	}

	result := posts.ListResult{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		result.NextCursor = pagination.EncodePostCursor(last.CreatedAt, last.ULID)
	}
	result.Posts = items
	return result, nil
}

func (r *PostRepository) GetByULID(ctx context.Context, ulid string) (*posts.Post, error) {
	row := r.queryer().QueryRow(ctx, `SELECT `+postColumns+` FROM posts p WHERE p.ulid = $1`, ulid)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, posts.ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

func (r *PostRepository) Create(ctx context.Context, post posts.Post) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO posts (ulid, title, body, author, tags, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`,
		post.ULID, post.Title, post.Body, post.Author, tagsOrEmpty(post.Tags), post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) Update(ctx context.Context, post posts.Post) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE posts
   SET title = $2, body = $3, tags = $4, updated_at = $5
 WHERE ulid = $1
`,
		post.ULID, post.Title, post.Body, tagsOrEmpty(post.Tags), post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return posts.ErrNotFound
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, ulid string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM posts WHERE ulid = $1`, ulid)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return posts.ErrNotFound
	}
	return nil
}

func (r *PostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.queryer().QueryRow(ctx, `SELECT count(*) FROM posts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (r *PostRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanPost(row pgx.Row) (posts.Post, error) {
	var p posts.Post
	if err := row.Scan(&p.ULID, &p.Title, &p.Body, &p.Author, &p.Tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return posts.Post{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	return p, nil
}

// tagsOrEmpty keeps the NOT NULL column satisfied for posts without tags.
func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
