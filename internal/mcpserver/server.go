// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package mcpserver exposes the backend operations as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/marcelocantos/retrack/internal/audit"
	"github.com/marcelocantos/retrack/internal/bridge"
	"github.com/marcelocantos/retrack/internal/catalog"
	"github.com/marcelocantos/retrack/internal/errs"
	"github.com/marcelocantos/retrack/internal/logging"
)

// Tool names that are not backend operations.
const (
	ToolPythonCheck = "python_check"
	ToolAuditTail   = "audit_tail"
)

// Server registers one tool per catalog operation.
type Server struct {
	bridge   *bridge.Bridge
	sink     audit.Sink
	log      *logging.Logger
	mcp      *server.MCPServer
	handlers map[string]server.ToolHandlerFunc
}

// New builds the tool set from reg. sink may be nil, in which case the
// audit tool is not offered.
func New(b *bridge.Bridge, reg *catalog.Registry, sink audit.Sink, log *logging.Logger, version string) *Server {
	s := &Server{
		bridge:   b,
		sink:     sink,
		log:      log,
		mcp:      server.NewMCPServer("retrack", version, server.WithToolCapabilities(true)),
		handlers: make(map[string]server.ToolHandlerFunc),
	}
	for _, op := range reg.All() {
		s.add(toolFor(op), s.operation(op))
	}
	s.add(mcp.NewTool(ToolPythonCheck,
		mcp.WithDescription("Report the interpreter the backend would run under and whether the backend module is importable"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.pythonCheck)
	if sink != nil {
		s.add(mcp.NewTool(ToolAuditTail,
			mcp.WithDescription("Show the most recent backend calls from the audit log"),
			mcp.WithNumber("n", mcp.Description("Number of entries (default 20)")),
			mcp.WithReadOnlyHintAnnotation(true),
		), s.auditTail)
	}
	return s
}

func (s *Server) add(tool mcp.Tool, h server.ToolHandlerFunc) {
	s.handlers[tool.Name] = h
	s.mcp.AddTool(tool, h)
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve speaks MCP on in/out until ctx ends or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.log.Slog().Handler(), slog.LevelError))
	s.log.Info("mcp server listening on stdio", "tools", len(s.handlers))
	return stdio.Listen(ctx, in, out)
}

func toolFor(op catalog.Operation) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(fmt.Sprintf("%s [%s]", op.Description, op.Tier)),
	}
	for _, p := range op.Params {
		popts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			popts = append(popts, mcp.Required())
		}
		switch p.Kind {
		case catalog.ParamInt, catalog.ParamNumber:
			opts = append(opts, mcp.WithNumber(p.Name, popts...))
		case catalog.ParamBool:
			opts = append(opts, mcp.WithBoolean(p.Name, popts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, popts...))
		}
	}
	opts = append(opts,
		mcp.WithBoolean("json", mcp.Description("Return the first JSON line of the output instead of the raw text")),
		mcp.WithBoolean("retry", mcp.Description("Bypass configurable rules after the user approved the call")),
		mcp.WithReadOnlyHintAnnotation(op.Tier == catalog.TierRead),
		mcp.WithDestructiveHintAnnotation(op.Tier == catalog.TierDangerous),
	)
	return mcp.NewTool(op.ToolName(), opts...)
}

func (s *Server) operation(op catalog.Operation) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := catalog.MapArgs(req.GetArguments())
		if missing := op.Missing(args); len(missing) > 0 {
			return mcp.NewToolResultError(fmt.Sprintf("invalid_arguments: missing or malformed: %s", strings.Join(missing, ", "))), nil
		}
		r := op.Request(args)
		opt := bridge.WithRetry(args.Bool("retry"))

		if args.Bool("json") {
			p, err := s.bridge.Structured(ctx, r, opt)
			if err != nil {
				return errorResult(err), nil
			}
			return mcp.NewToolResultText(string(p.Value)), nil
		}
		out, err := s.bridge.Text(ctx, r, opt)
		if err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

func (s *Server) pythonCheck(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.bridge.Check(ctx)
	if err != nil && info.Executable == "" {
		return errorResult(err), nil
	}
	data, merr := json.Marshal(info)
	if merr != nil {
		return nil, merr
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s\n%s: %v", data, errs.KindOf(err), err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) auditTail(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, ok := catalog.MapArgs(req.GetArguments()).Int("n")
	if !ok || n <= 0 {
		n = 20
	}
	entries, err := s.sink.Tail(ctx, n)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("audit: %v", err)), nil
	}
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// errorResult renders err as "<kind>: <message>" so hosts can branch on
// the failure class.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", errs.KindOf(err), err))
}
