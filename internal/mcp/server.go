package mcpserver

import (
	"context"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"m2kqa/internal/qasession"
)

// NewServer builds an MCP server exposing the QA tools for sessions kept
// in mgr.
func NewServer(mgr *qasession.Manager, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "m2kqa",
			Version: version,
		},
		nil,
	)
	registerQATools(server, &qaTools{sessions: mgr})
	return server
}

// RunServer serves the QA tools over stdio until ctx is done or the client
// disconnects.
func RunServer(ctx context.Context, mgr *qasession.Manager, version string) error {
	return NewServer(mgr, version).Run(ctx, &mcpsdk.StdioTransport{})
}

// HTTPHandler serves server over the streamable HTTP transport.
func HTTPHandler(server *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, nil)
}
