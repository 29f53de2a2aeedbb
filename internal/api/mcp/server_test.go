package mcp

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/internal/domain/deck"
	"deckforge/internal/domain/research"
	"deckforge/internal/services/pipeline"
	"deckforge/internal/services/presentation"
)

type fakeService struct {
	report *pipeline.Report
	edit   *presentation.EditResult
	err    error
}

func (f *fakeService) Research(context.Context, string) (*pipeline.Report, error) {
	return f.report, f.err
}

func (f *fakeService) Edit(context.Context, string, string) (*presentation.EditResult, error) {
	return f.edit, f.err
}

func connect(t *testing.T, svc *fakeService) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv := NewServer(svc, "deckforge", "test")
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func call(t *testing.T, session *sdkmcp.ClientSession, name string, args map[string]any) (*sdkmcp.CallToolResult, string) {
	t.Helper()
	res, err := session.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)

	var text string
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			text += tc.Text
		}
	}
	return res, text
}

func TestTools_Listed(t *testing.T) {
	session := connect(t, &fakeService{})

	res, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"research_presentation", "edit_deck"}, names)
}

func TestResearchPresentation(t *testing.T) {
	session := connect(t, &fakeService{report: &pipeline.Report{
		RunID:    "run-1",
		Status:   pipeline.StatusSuccess,
		Markdown: "# Scooters",
		RevealJS: "<html>deck</html>",
		Analysis: research.Analysis{research.KeyAnalysis: "growing"},
		Sources:  []string{"https://example.com/a"},
	}})

	res, text := call(t, session, "research_presentation", map[string]any{"prompt": "scooters in Vietnam"})
	require.False(t, res.IsError, text)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "# Scooters", out["markdown"])
	assert.Equal(t, "<html>deck</html>", out["reveal_js"])
}

func TestResearchPresentation_Refused(t *testing.T) {
	session := connect(t, &fakeService{report: &pipeline.Report{Status: pipeline.StatusRefused, Reason: "no industry named"}})

	res, text := call(t, session, "research_presentation", map[string]any{"prompt": "hello"})
	require.False(t, res.IsError, text)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "refused", out["status"])
	assert.Equal(t, "no industry named", out["reason"])
}

func TestResearchPresentation_Failure(t *testing.T) {
	session := connect(t, &fakeService{err: &pipeline.PipelineFailure{
		Stage:  pipeline.StageVerify,
		Reason: string(research.ReasonUntraceableSource),
		Cause:  &research.NormalizationError{Reason: research.ReasonUntraceableSource},
	}})

	res, text := call(t, session, "research_presentation", map[string]any{"prompt": "scooters"})
	assert.True(t, res.IsError)
	assert.Contains(t, text, "verify_sources failed (untraceable_source)")
}

func TestEditDeck(t *testing.T) {
	session := connect(t, &fakeService{edit: &presentation.EditResult{
		Explanation: "Done.",
		Deck:        deck.Artifact{HTML: "<html>new</html>"},
		Summary:     presentation.EditSummary{SlidesBefore: 2, SlidesAfter: 3},
	}})

	res, text := call(t, session, "edit_deck", map[string]any{"html": "<html>old</html>", "instruction": "add a slide"})
	require.False(t, res.IsError, text)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "<html>new</html>", out["html"])
	assert.Equal(t, float64(3), out["slides_after"])
}
