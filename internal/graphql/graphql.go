// Package graphql serves graphql-go schemas as route handlers.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/extractor"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/httperr"
	"github.com/Togather-Foundation/tsukuyomi/internal/input"
	"github.com/Togather-Foundation/tsukuyomi/internal/metrics"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
	"github.com/Togather-Foundation/tsukuyomi/internal/telemetry"
)

const tracerName = "github.com/Togather-Foundation/tsukuyomi/internal/graphql"

var (
	ErrMissingQuery       = errors.New("missing query")
	ErrUnsupportedMedia   = errors.New("content type must be application/json or application/graphql")
	ErrInvalidVariables   = errors.New("variables must be a JSON object")
	ErrUnsupportedRequest = errors.New("GraphQL requests must use GET or POST")
)

// Request is a single GraphQL operation.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

// BatchRequest is either a single request or a batch sent as a JSON array.
type BatchRequest struct {
	Single *Request
	Batch  []Request
}

// Requests returns the operations in order.
func (b *BatchRequest) Requests() []Request {
	if b.Single != nil {
		return []Request{*b.Single}
	}
	return b.Batch
}

// Extract reads a GraphQL request from the query string of GET requests or
// from an application/json or application/graphql body of POST requests.
func Extract() extractor.Extractor[*BatchRequest] {
	return extractor.Func[*BatchRequest](func(in *input.Input) (*BatchRequest, error) {
		switch in.Method() {
		case http.MethodGet, http.MethodHead:
			return fromQuery(in)
		case http.MethodPost:
			return fromBody(in)
		default:
			return nil, httperr.MethodNotAllowed().WithHeader("Allow", "GET, HEAD, POST")
		}
	})
}

func fromQuery(in *input.Input) (*BatchRequest, error) {
	q := in.Request.URL.Query()
	req := &Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
	if req.Query == "" {
		return nil, httperr.BadRequest(ErrMissingQuery)
	}
	if raw := q.Get("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
			return nil, httperr.BadRequest(fmt.Errorf("%w: %v", ErrInvalidVariables, err))
		}
	}
	return &BatchRequest{Single: req}, nil
}

func fromBody(in *input.Input) (*BatchRequest, error) {
	mediaType, _, err := in.ContentType()
	if err != nil {
		return nil, err
	}
	switch mediaType {
	case "application/json":
		data, err := in.ReadAll()
		if err != nil {
			return nil, err
		}
		return decodeJSON(data)
	case "application/graphql":
		data, err := in.ReadAll()
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, httperr.BadRequest(ErrMissingQuery)
		}
		return &BatchRequest{Single: &Request{Query: string(data)}}, nil
	default:
		return nil, httperr.Wrap(http.StatusUnsupportedMediaType, ErrUnsupportedMedia)
	}
}

func decodeJSON(data []byte) (*BatchRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var batch []Request
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, httperr.BadRequest(err)
		}
		if len(batch) == 0 {
			return nil, httperr.BadRequest(ErrMissingQuery)
		}
		for _, r := range batch {
			if r.Query == "" {
				return nil, httperr.BadRequest(ErrMissingQuery)
			}
		}
		return &BatchRequest{Batch: batch}, nil
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, httperr.BadRequest(err)
	}
	if req.Query == "" {
		return nil, httperr.BadRequest(ErrMissingQuery)
	}
	return &BatchRequest{Single: &req}, nil
}

// Execute runs every operation against schema.
func (b *BatchRequest) Execute(ctx context.Context, schema graphql.Schema) *Response {
	requests := b.Requests()
	results := make([]*graphql.Result, len(requests))
	for i, req := range requests {
		results[i] = execute(ctx, schema, req)
	}
	return &Response{results: results, batch: b.Single == nil}
}

func execute(ctx context.Context, schema graphql.Schema, req Request) *graphql.Result {
	operation := req.OperationName
	if operation == "" {
		operation = "anonymous"
	}
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "graphql.execute")
	defer span.End()
	span.SetAttributes(attribute.String("graphql.operation.name", operation))

	result := graphql.Do(graphql.Params{
		Schema:         schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})

	outcome := "ok"
	if result.HasErrors() {
		outcome = "error"
		span.SetStatus(codes.Error, result.Errors[0].Message)
	}
	metrics.GraphQLRequestsTotal.WithLabelValues(operation, outcome).Inc()
	return result
}

// Response holds execution results.
type Response struct {
	results []*graphql.Result
	batch   bool
}

// OK reports whether every result produced data.
func (r *Response) OK() bool {
	for _, res := range r.results {
		if res.Data == nil {
			return false
		}
	}
	return true
}

// Respond encodes the results as JSON, with status 200 when every
// operation produced data and 400 otherwise.
func (r *Response) Respond(in *input.Input) (*output.Response, error) {
	var v any = r.results
	if !r.batch {
		v = r.results[0]
	}
	status := http.StatusOK
	if !r.OK() {
		status = http.StatusBadRequest
	}
	return output.Respond(in, output.WithStatus(status, output.JSON(v)))
}

// Endpoint serves schema on GET and POST.
func Endpoint(schema graphql.Schema) handler.Handler {
	return endpoint.AllowOnly([]string{http.MethodGet, http.MethodPost}, endpoint.Call1(
		Extract(),
		func(req *BatchRequest) (output.Responder, error) {
			return output.ResponderFunc(func(in *input.Input) (*output.Response, error) {
				return req.Execute(in.Context(), schema).Respond(in)
			}), nil
		},
	))
}
