package graphql

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/tsukuyomi/internal/app"
	"github.com/Togather-Foundation/tsukuyomi/internal/metrics"
)

func testSchema(t *testing.T) graphql.Schema {
	t.Helper()
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"hello": &graphql.Field{
				Type: graphql.String,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: "world"},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return "hello " + p.Args["name"].(string), nil
				},
			},
			"broken": &graphql.Field{
				Type: graphql.String,
				Resolve: func(graphql.ResolveParams) (interface{}, error) {
					return nil, errors.New("resolver failed")
				},
			},
		},
	})
	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: query})
	require.NoError(t, err)
	return schema
}

func testApp(t *testing.T) *app.App {
	t.Helper()
	schema := testSchema(t)
	a, err := app.Build(func(s *app.Scope) error {
		if err := s.At("/graphql", Endpoint(schema)); err != nil {
			return err
		}
		return s.At("/graphiql", GraphiQL("/graphql"))
	})
	require.NoError(t, err)
	return a
}

func do(a *app.App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	return rec
}

func TestEndpoint_Get(t *testing.T) {
	a := testApp(t)

	q := url.Values{
		"query":     {`query Greet($name: String) { hello(name: $name) }`},
		"variables": {`{"name":"alice"}`},
	}
	rec := do(a, httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"hello":"hello alice"}}`, rec.Body.String())

	rec = do(a, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	q = url.Values{"query": {"{ hello }"}, "variables": {"[1]"}}
	rec = do(a, httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndpoint_PostJSON(t *testing.T) {
	a := testApp(t)
	before := testutil.ToFloat64(metrics.GraphQLRequestsTotal.WithLabelValues("Greet", "ok"))

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query":"query Greet { hello }","operationName":"Greet"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"hello":"hello world"}}`, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.GraphQLRequestsTotal.WithLabelValues("Greet", "ok")))
}

func TestEndpoint_PostGraphQL(t *testing.T) {
	a := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{ hello(name: "bob") }`))
	req.Header.Set("Content-Type", "application/graphql")
	rec := do(a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"hello":"hello bob"}}`, rec.Body.String())
}

func TestEndpoint_Batch(t *testing.T) {
	a := testApp(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`[{"query":"{ hello }"},{"query":"{ hello(name: \"carol\") }"}]`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"data":{"hello":"hello world"}},{"data":{"hello":"hello carol"}}]`, rec.Body.String())
}

func TestEndpoint_Errors(t *testing.T) {
	a := testApp(t)

	// A syntax error produces no data.
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := do(a, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"errors"`)

	// Resolver errors still produce data.
	req = httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ broken }"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(a, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "resolver failed")

	req = httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`query`))
	req.Header.Set("Content-Type", "text/plain")
	rec = do(a, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(a, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(a, httptest.NewRequest(http.MethodPut, "/graphql", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGraphiQL(t *testing.T) {
	a := testApp(t)

	rec := do(a, httptest.NewRequest(http.MethodGet, "/graphiql", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `data-endpoint="/graphql"`)
	assert.Contains(t, GraphiQLSource(`/q?a="b"`), `data-endpoint="/q?a=&#34;b&#34;"`)
}
