package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLoadAndRender(t *testing.T) {
	base := t.TempDir()
	promptDir := filepath.Join(base, "prompts")
	require.NoError(t, os.MkdirAll(promptDir, 0o755))

	tplPath := filepath.Join(promptDir, "greeting.tmpl")
	require.NoError(t, os.WriteFile(tplPath, []byte("Hello {{.Name}}"), 0o644))

	reg, err := NewRegistry(base)
	require.NoError(t, err)

	tmpl, err := reg.GetTemplate("prompts/greeting")
	require.NoError(t, err)

	rendered, err := tmpl.Render(map[string]string{"Name": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice", rendered)

	// Parsed templates are immutable once loaded.
	require.NoError(t, os.WriteFile(tplPath, []byte("Hi {{.Name}}"), 0o644))
	rendered, err = tmpl.Render(map[string]string{"Name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Bob", rendered)
}

func TestRegistryLazyLoad(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	require.NoError(t, err)

	path := filepath.Join(base, "render", "footer.tmpl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{{join .Items \", \"}}"), 0o644))

	rendered, err := reg.Render("render/footer", map[string][]string{"Items": {"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a, b", rendered)

	_, err = reg.Render("render/missing", nil)
	assert.Error(t, err)
}

func TestEmbeddedPromptsRender(t *testing.T) {
	reg := Get()

	out, err := reg.Render("prompts/edit", map[string]string{
		"RevealBase":  "https://cdn.example/reveal/",
		"HTML":        "<html></html>",
		"Instruction": "add a closing slide",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "add a closing slide")
	assert.Contains(t, out, "https://cdn.example/reveal/")

	for _, id := range []string{
		"prompts/orchestrator_instruction",
		"prompts/researcher_instruction",
		"prompts/research_task",
		"prompts/synthesis",
		"prompts/deck",
		"render/report",
	} {
		_, err := reg.GetTemplate(id)
		assert.NoError(t, err, id)
	}
}

func TestAgentInstructionsHaveNoPlaceholders(t *testing.T) {
	// Agent instructions go through state placeholder substitution; braces would be read as keys.
	for _, id := range []string{"prompts/orchestrator_instruction", "prompts/researcher_instruction"} {
		tmpl, err := Get().GetTemplate(id)
		require.NoError(t, err)
		body := strings.ReplaceAll(strings.ReplaceAll(tmpl.Content, "{{", ""), "}}", "")
		assert.NotContains(t, body, "{", id)
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, `\# not a heading`, EscapeMarkdownListItem("# not a heading"))
	assert.Equal(t, "two lines", EscapeMarkdownListItem("two\n lines"))
	assert.Equal(t, "  a\n\n  b", Indent(2, "a\n\nb"))
}
