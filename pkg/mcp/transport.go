package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ArionMiles/financehub/pkg/tools"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Serve runs one MCP session over newline-delimited JSON on r and w. It
// returns nil when the client disconnects and ctx.Err() once ctx is
// cancelled. r is closed when the session ends if it is an io.ReadCloser;
// w is never closed.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	transport := &sdk.IOTransport{Reader: rc, Writer: nopWriteCloser{w}}

	s.logger.Info("serving on stdio")
	err := s.Bind(s.snapshot).Run(ctx, transport)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("serving mcp: %w", err)
	}
	s.logger.Info("input closed")
	return nil
}

// Handler serves streamable HTTP. Sessions are stateless: every request gets
// a server bound to the snapshot of that request's context.
func (s *Server) Handler() http.Handler {
	return sdk.NewStreamableHTTPHandler(func(r *http.Request) *sdk.Server {
		reqCtx := r.Context()
		return s.Bind(func(context.Context) (tools.Snapshot, error) {
			return s.snapshot(reqCtx)
		})
	}, &sdk.StreamableHTTPOptions{Stateless: true})
}
