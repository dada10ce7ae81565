package handlers

import (
	"errors"
	"time"

	"github.com/graphql-go/graphql"

	"github.com/Togather-Foundation/tsukuyomi/internal/domain/ids"
	"github.com/Togather-Foundation/tsukuyomi/internal/domain/posts"
)

var errInvalidID = errors.New("id must be a ULID")

var postType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Post",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"title":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"body":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"author":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"tags":      &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
		"createdAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"updatedAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var postConnectionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "PostConnection",
	Fields: graphql.Fields{
		"items":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(postType)))},
		"nextCursor": &graphql.Field{Type: graphql.String},
	},
})

func postValue(p posts.Post) map[string]interface{} {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]interface{}{
		"id":        p.ULID,
		"title":     p.Title,
		"body":      p.Body,
		"author":    p.Author,
		"tags":      tags,
		"createdAt": p.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt": p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewSchema builds the read-only GraphQL schema over the posts service.
func NewSchema(service *posts.Service) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "world"},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name, _ := p.Args["name"].(string)
					return "Hello, " + name + "!", nil
				},
			},
			"postCount": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Int),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return service.Count(p.Context)
				},
			},
			"post": &graphql.Field{
				Type: postType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					raw, _ := p.Args["id"].(string)
					id, err := ids.ULID(raw)
					if err != nil {
						return nil, errInvalidID
					}
					post, err := service.GetByULID(p.Context, id)
					if errors.Is(err, posts.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return postValue(*post), nil
				},
			},
			"posts": &graphql.Field{
				Type: graphql.NewNonNull(postConnectionType),
				Args: graphql.FieldConfigArgument{
					"first":  &graphql.ArgumentConfig{Type: graphql.Int},
					"after":  &graphql.ArgumentConfig{Type: graphql.String},
					"author": &graphql.ArgumentConfig{Type: graphql.String},
					"tag":    &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					params := posts.ListParams{}
					params.Limit, _ = p.Args["first"].(int)
					params.After, _ = p.Args["after"].(string)
					params.Author, _ = p.Args["author"].(string)
					params.Tag, _ = p.Args["tag"].(string)
					filters, page, err := params.Filters()
					if err != nil {
						return nil, err
					}
					result, err := service.List(p.Context, filters, page)
					if err != nil {
						return nil, err
					}
					items := make([]map[string]interface{}, 0, len(result.Posts))
					for _, post := range result.Posts {
						items = append(items, postValue(post))
					}
					conn := map[string]interface{}{"items": items, "nextCursor": nil}
					if result.NextCursor != "" {
						conn["nextCursor"] = result.NextCursor
					}
					return conn, nil
				},
			},
		},
	})
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}
