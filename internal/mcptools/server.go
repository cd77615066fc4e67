// Package mcptools exposes the strategy pipeline and its consistency checks
// as MCP tools.
package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the 4 stratagen tools registered:
// generate_strategy, validate_hooks, classify_tier and reconcile.
func NewServer(svc *StrategyService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "stratagen",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_strategy",
		Description: "Run the full strategy pipeline for a business context. Returns the markdown document, the final hooks and any enrichment sources still pending.",
	}, svc.GenerateStrategy)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "validate_hooks",
		Description: "Check hook candidates for source concentration and per-source cap violations. With a fallback pool, also returns the repaired list.",
	}, svc.ValidateHooks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_tier",
		Description: "Classify competitor creative sources into the zero, sparse or standard tier and return the hook quotas for that tier.",
	}, svc.ClassifyTier)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reconcile",
		Description: "Resolve contradictions between an ICP analysis and an offer analysis. Returns the adjusted offer and every adjustment made.",
	}, svc.Reconcile)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the MCP tools over streamable HTTP on addr until ctx is
// cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
