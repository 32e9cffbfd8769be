// Package execctx carries the request-scoped execution context (correlation
// id, auth token, user and organization ids) from the inbound boundary into
// every isolated worker that runs work on behalf of that request.
//
// An ExecutionContext is an immutable value. It is installed into a
// context.Context with WithContext and read back with Current. Workers that
// run on a different goroutine than the caller receive a copy through
// Propagate; nothing is shared between concurrent executions.
//
// # Boundary
//
// Middleware seeds the context from inbound HTTP headers and Transport
// copies it onto outbound requests:
//
//	mux.Handle("/v1/licenses/", execctx.Middleware(licenseHandler))
//
//	client := &http.Client{Transport: execctx.NewTransport(nil)}
package execctx
