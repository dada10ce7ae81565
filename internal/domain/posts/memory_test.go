package posts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryPaginates(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var created []string
	for i, title := range []string{"a", "b", "c", "d", "e"} {
		author := "alice"
		if i%2 == 1 {
			author = "bob"
		}
		post, err := svc.Create(ctx, author, CreateParams{Title: title, Body: "body", Tags: []string{"t" + title}})
		require.NoError(t, err)
		created = append(created, post.ULID)
	}

	first, err := svc.List(ctx, Filters{}, Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Posts, 2)
	require.Equal(t, created[0], first.Posts[0].ULID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, Filters{}, Pagination{Limit: 2, After: first.NextCursor})
	require.NoError(t, err)
	require.Equal(t, []string{created[2], created[3]}, []string{second.Posts[0].ULID, second.Posts[1].ULID})

	last, err := svc.List(ctx, Filters{}, Pagination{Limit: 2, After: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, last.Posts, 1)
	require.Empty(t, last.NextCursor)

	byBob, err := svc.List(ctx, Filters{Author: "bob"}, Pagination{})
	require.NoError(t, err)
	require.Len(t, byBob.Posts, 2)

	tagged, err := svc.List(ctx, Filters{Tag: "tc"}, Pagination{})
	require.NoError(t, err)
	require.Len(t, tagged.Posts, 1)
	require.Equal(t, "c", tagged.Posts[0].Title)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, count)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, Post{ULID: "01HYX3KQW7ERTV9XNBM2P8QJZF", Tags: []string{"a"}}))

	post, err := repo.GetByULID(ctx, "01HYX3KQW7ERTV9XNBM2P8QJZF")
	require.NoError(t, err)
	post.Tags[0] = "changed"

	again, err := repo.GetByULID(ctx, "01HYX3KQW7ERTV9XNBM2P8QJZF")
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, again.Tags)
}
