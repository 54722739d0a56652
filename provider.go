package nemochat

import (
	"context"
	"io"
)

// Upstream defines the interface every source of streamed responses must
// implement. This abstraction lets a Chat talk to the HTTP relay in
// production and to an in-process generator in development and tests.
//
// Types used by this interface:
//   - ChatRequest: defined in request.go
//   - ProviderID: defined in provider_registry.go
type Upstream interface {
	// Open issues the request and returns the response body: a byte stream of
	// "data: <JSON>" records separated by blank lines.
	//
	// Errors returned here happen before any byte was streamed (connection
	// refused, non-200 status). The caller must Close the returned body.
	//
	// Usage:
	//   body, err := upstream.Open(ctx, req)
	//   if err != nil { return err }
	//   defer body.Close()
	//   result, err := nemochat.Consume(ctx, body, handle)
	Open(ctx context.Context, req *ChatRequest) (io.ReadCloser, error)

	// Name returns the provider identifier (e.g., "relay", "lorem")
	Name() ProviderID
}
