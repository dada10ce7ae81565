package graphql

import (
	"fmt"
	"html"

	"github.com/Togather-Foundation/tsukuyomi/internal/endpoint"
	"github.com/Togather-Foundation/tsukuyomi/internal/handler"
	"github.com/Togather-Foundation/tsukuyomi/internal/output"
)

const graphiqlVersion = "3.7.0"

// GraphiQLSource returns an HTML page running GraphiQL against the endpoint
// at url.
func GraphiQLSource(url string) string {
	return fmt.Sprintf(graphiqlPage, graphiqlVersion, html.EscapeString(url))
}

// GraphiQL serves GraphiQLSource on GET.
func GraphiQL(url string) handler.Handler {
	return endpoint.Get(endpoint.Reply(output.HTML(GraphiQLSource(url))))
}

const graphiqlPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>GraphiQL</title>
  <style>body { margin: 0; height: 100vh; } #graphiql { height: 100vh; }</style>
  <link rel="stylesheet" href="https://unpkg.com/graphiql@%[1]s/graphiql.min.css">
</head>
<body>
  <div id="graphiql" data-endpoint="%[2]s">Loading...</div>
  <script crossorigin src="https://unpkg.com/react@18/umd/react.production.min.js"></script>
  <script crossorigin src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"></script>
  <script crossorigin src="https://unpkg.com/graphiql@%[1]s/graphiql.min.js"></script>
  <script>
    const root = document.getElementById('graphiql');
    const fetcher = GraphiQL.createFetcher({ url: root.dataset.endpoint });
    ReactDOM.createRoot(root).render(React.createElement(GraphiQL, { fetcher }));
  </script>
</body>
</html>
`
