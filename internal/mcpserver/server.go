// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vizbase tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vizbase/internal/artifactservice"
	"github.com/starford/vizbase/internal/capture"
	"github.com/starford/vizbase/internal/index"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/verify"
)

const layoutURI = "vizbase://artifact-layout"

// Server wraps the MCP server with vizbase tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *artifactservice.Service
	urlOpts []capture.URLOption
}

// New creates a new MCP server with all vizbase tools registered. urlOpts
// apply to images fetched by verify_image.
func New(svc *artifactservice.Service, urlOpts ...capture.URLOption) *Server {
	s := &Server{svc: svc, urlOpts: urlOpts}

	s.mcp = server.NewMCPServer(
		"vizbase",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("verify_image",
		mcp.WithDescription("Compare a PNG with the stored baseline for group/name. "+
			"The first image submitted for a key becomes its baseline. "+
			"Read the artifact contract via get_artifact_contract before interpreting results."),
		mcp.WithString("group", mcp.Required(), mcp.Description("Baseline group, e.g. a page or feature name")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Baseline name within the group")),
		mcp.WithString("image_url", mcp.Required(), mcp.Description("data:image/png;base64,... URI or http(s) URL of a PNG")),
		mcp.WithNumber("threshold", mcp.Description("Largest differing-pixel ratio that still passes (default 0.02)")),
	), s.verifyImage)

	s.mcp.AddTool(mcp.NewTool("list_baselines",
		mcp.WithDescription("List stored baselines, optionally for one group."),
		mcp.WithString("group", mcp.Description("Optional group (empty for all)")),
	), s.listBaselines)

	s.mcp.AddTool(mcp.NewTool("get_verification_history",
		mcp.WithDescription("Recent verification runs, newest first."),
		mcp.WithString("group", mcp.Description("Filter by group")),
		mcp.WithString("name", mcp.Description("Filter by name")),
		mcp.WithBoolean("failed_only", mcp.Description("Only runs that did not match")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 50)")),
	), s.getVerificationHistory)

	s.mcp.AddTool(mcp.NewTool("get_artifact_contract",
		mcp.WithDescription("Returns how baselines and diffs are stored and how a verification passes."),
	), s.getArtifactContract)

	s.mcp.AddResource(
		mcp.NewResource(layoutURI, "Artifact Contract",
			mcp.WithResourceDescription("Baseline and diff layout and the pass/fail rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) verifyImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group, err := req.RequireString("group")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	imageURL, err := req.RequireString("image_url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := models.NewKey(group, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts []verify.Option
	if args := req.GetArguments(); args["threshold"] != nil {
		opts = append(opts, verify.WithThreshold(req.GetFloat("threshold", 0)))
	}

	v, err := s.svc.Verify(ctx, key, capture.URL(imageURL, s.urlOpts...), opts...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("verify %s: %v", key, err)), nil
	}
	return jsonResult(v)
}

func (s *Server) listBaselines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListBaselines(ctx, req.GetString("group", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no baselines found"), nil
	}
	return jsonResult(items)
}

func (s *Server) getVerificationHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.History(ctx, index.VerificationFilter{
		Group:      req.GetString("group", ""),
		Name:       req.GetString("name", ""),
		FailedOnly: req.GetBool("failed_only", false),
		Limit:      req.GetInt("limit", 50),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getArtifactContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LayoutContract), nil
}

func (s *Server) readLayoutResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      layoutURI,
			MIMEType: "text/markdown",
			Text:     LayoutContract,
		},
	}, nil
}
