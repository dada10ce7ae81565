// Package internal holds the tsukuyomi web framework and its example server.
//
// The framework packages compose bottom-up:
//   - router, uri: path recognition and URI values
//   - handler, endpoint, extractor, input, output: request handling
//   - app, routeinfo, httperr, problem: scopes, route metadata and errors
//   - fs, templates, cors, graphql, websocket: optional components
//
// The example server lives in api and uses domain, storage, auth, audit,
// config, middleware, metrics, telemetry and server.
package internal
