// Package mcp exposes the research pipeline as Model Context Protocol tools
// so agent hosts can request decks over stdio.
package mcp

import (
	"context"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"deckforge/internal/api"
	"deckforge/pkg/logger"
)

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	svc api.Service
	log *logger.Logger
}

// NewServer creates an MCP server with the research and edit tools.
func NewServer(svc api.Service, name, version string) *Server {
	s := &Server{
		svc: svc,
		log: logger.Get().With("component", "mcp"),
	}
	s.MCPServer = sdkmcp.NewServer(&sdkmcp.Implementation{Name: name, Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "research_presentation",
		Description: "Research an industry or market and return a markdown report plus a reveal.js deck. Every figure cites its source URL.",
	}, s.handleResearch)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "edit_deck",
		Description: "Apply a natural-language instruction to an existing reveal.js deck and return the revised HTML.",
	}, s.handleEdit)
}

type researchInput struct {
	Prompt string `json:"prompt" jsonschema:"the research request, naming an industry or market"`
}

type researchOutput struct {
	Status   string         `json:"status"`
	RunID    string         `json:"run_id,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Markdown string         `json:"markdown,omitempty"`
	RevealJS string         `json:"reveal_js,omitempty"`
	Analysis map[string]any `json:"analysis,omitempty"`
	Sources  []string       `json:"sources,omitempty"`
}

type editInput struct {
	HTML        string `json:"html" jsonschema:"the current deck markup"`
	Instruction string `json:"instruction" jsonschema:"what to change"`
}

type editOutput struct {
	Explanation  string `json:"explanation"`
	HTML         string `json:"html"`
	SlidesBefore int    `json:"slides_before"`
	SlidesAfter  int    `json:"slides_after"`
}

func (s *Server) handleResearch(ctx context.Context, _ *sdkmcp.CallToolRequest, in researchInput) (*sdkmcp.CallToolResult, researchOutput, error) {
	report, err := s.svc.Research(ctx, in.Prompt)
	if err != nil {
		return nil, researchOutput{}, toolError(err)
	}

	s.log.Infow("research_presentation served", "run_id", report.RunID, "status", report.Status)
	return nil, researchOutput{
		Status:   string(report.Status),
		RunID:    report.RunID,
		Reason:   report.Reason,
		Markdown: report.Markdown,
		RevealJS: report.RevealJS,
		Analysis: report.Analysis,
		Sources:  report.Sources,
	}, nil
}

func (s *Server) handleEdit(ctx context.Context, _ *sdkmcp.CallToolRequest, in editInput) (*sdkmcp.CallToolResult, editOutput, error) {
	res, err := s.svc.Edit(ctx, in.HTML, in.Instruction)
	if err != nil {
		return nil, editOutput{}, toolError(err)
	}

	return nil, editOutput{
		Explanation:  res.Explanation,
		HTML:         res.Deck.HTML,
		SlidesBefore: res.Summary.SlidesBefore,
		SlidesAfter:  res.Summary.SlidesAfter,
	}, nil
}

// toolError renders a failure the same way the HTTP surface classifies it.
func toolError(err error) error {
	_, body := api.ErrorStatus(err)
	if body.Stage != "" {
		return fmt.Errorf("%s failed (%s): %s", body.Stage, body.Reason, body.Detail)
	}
	return fmt.Errorf("%s: %s", body.Reason, body.Detail)
}
