// Package mcp exposes the finance tools and the dashboard resource over the
// Model Context Protocol. The same tools are served on stdio and on
// streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ArionMiles/financehub/pkg/tools"
)

// DashboardURI names the dashboard resource.
const DashboardURI = "finance://dashboard"

// SnapshotFunc returns the data tool calls in ctx work on.
type SnapshotFunc func(ctx context.Context) (tools.Snapshot, error)

// Info identifies the server in the initialize handshake.
type Info struct {
	Name    string
	Version string
}

// Server registers the tool registry with MCP servers bound to a snapshot.
type Server struct {
	info     Info
	registry *tools.Registry
	tools    []*sdk.Tool
	snapshot SnapshotFunc
	logger   *slog.Logger
}

// NewServer describes every tool in registry for MCP. snapshot supplies the
// data for stdio sessions and, called with the request context, for HTTP.
func NewServer(info Info, registry *tools.Registry, snapshot SnapshotFunc, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	list := registry.List()
	described := make([]*sdk.Tool, 0, len(list))
	for _, t := range list {
		schema, err := inputSchema(t.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name(), err)
		}
		described = append(described, &sdk.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: schema,
		})
	}

	return &Server{
		info:     info,
		registry: registry,
		tools:    described,
		snapshot: snapshot,
		logger:   logger.With("component", "mcp"),
	}, nil
}

func inputSchema(m map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding input schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("decoding input schema: %w", err)
	}
	return &schema, nil
}

// Bind returns an MCP server whose tools and resources read from snapshot.
// Calls to names outside the registry are rejected by the protocol layer as
// invalid params naming the tool.
func (s *Server) Bind(snapshot SnapshotFunc) *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: s.info.Name, Version: s.info.Version}, nil)
	for _, t := range s.tools {
		srv.AddTool(t, s.callTool(t.Name, snapshot))
	}
	srv.AddResource(&sdk.Resource{
		URI:         DashboardURI,
		Name:        "Finance Dashboard",
		Description: "Financial overview dashboard for the current month",
		MIMEType:    "application/json",
	}, s.readDashboard(snapshot))
	return srv
}

func (s *Server) callTool(name string, snapshot SnapshotFunc) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		snap, err := snapshot(ctx)
		if err != nil {
			s.logger.Error("failed to load snapshot", "tool", name, "error", err)
			return errorResult("loading financial data failed"), nil
		}

		result, err := s.registry.Call(ctx, name, snap, req.Params.Arguments)
		if err != nil {
			return errorResult(err.Error()), nil
		}

		text, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding %s result: %w", name, err)
		}
		s.logger.Debug("tool called", "tool", name)
		return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: string(text)}}}, nil
	}
}

func errorResult(msg string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: msg}},
		IsError: true,
	}
}

func (s *Server) readDashboard(snapshot SnapshotFunc) sdk.ResourceHandler {
	return func(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
		snap, err := snapshot(ctx)
		if err != nil {
			s.logger.Error("failed to load snapshot", "uri", req.Params.URI, "error", err)
			return nil, errors.New("loading financial data failed")
		}
		text, err := json.Marshal(snap.View)
		if err != nil {
			return nil, fmt.Errorf("encoding dashboard: %w", err)
		}
		return &sdk.ReadResourceResult{Contents: []*sdk.ResourceContents{{
			URI:      DashboardURI,
			MIMEType: "application/json",
			Text:     string(text),
		}}}, nil
	}
}
