package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/internal/api/health"
	"deckforge/internal/domain/deck"
	"deckforge/internal/domain/research"
	"deckforge/internal/services/pipeline"
	"deckforge/internal/services/presentation"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
)

type fakeService struct {
	report *pipeline.Report
	edit   *presentation.EditResult
	err    error

	prompt      string
	html        string
	instruction string
}

func (f *fakeService) Research(_ context.Context, prompt string) (*pipeline.Report, error) {
	f.prompt = prompt
	return f.report, f.err
}

func (f *fakeService) Edit(_ context.Context, html, instruction string) (*presentation.EditResult, error) {
	f.html, f.instruction = html, instruction
	return f.edit, f.err
}

func newTestRouter(svc Service, checks map[string]health.CheckFunc) http.Handler {
	h := health.New(logger.Nop(), checks, "deckforge", "test")
	return NewRouter(ServerConfig{ServiceName: "deckforge", Version: "test", CORSOrigins: []string{"*"}}, svc, h)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestResearchEndpoint_Success(t *testing.T) {
	svc := &fakeService{report: &pipeline.Report{
		RunID:    "run-1",
		Status:   pipeline.StatusSuccess,
		Markdown: "# Scooters",
		RevealJS: "<html>deck</html>",
		Analysis: research.Analysis{research.KeyAnalysis: "growing"},
		Sources:  []string{"https://example.com/a"},
	}}

	rec, body := do(t, newTestRouter(svc, nil), http.MethodPost, "/research/presentation", `{"prompt":"electric scooters in Vietnam"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "electric scooters in Vietnam", svc.prompt)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "# Scooters", body["markdown"])
	assert.Equal(t, "<html>deck</html>", body["reveal_js"])
	assert.Equal(t, map[string]any{"analysis": "growing"}, body["analysis"])
}

func TestResearchEndpoint_Refused(t *testing.T) {
	svc := &fakeService{report: &pipeline.Report{RunID: "run-1", Status: pipeline.StatusRefused, Reason: "no industry named"}}

	rec, body := do(t, newTestRouter(svc, nil), http.MethodPost, "/research/presentation", `{"prompt":"tell me things"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "refused", body["status"])
	assert.Equal(t, "no industry named", body["reason"])
	assert.NotContains(t, body, "markdown")
}

func TestResearchEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantCode   int
		wantReason string
		wantStage  string
	}{
		{
			name:       "malformed body",
			body:       `{"prompt":`,
			wantCode:   http.StatusBadRequest,
			wantReason: "invalid_request",
		},
		{
			name:       "empty prompt",
			body:       `{"prompt":""}`,
			err:        errors.Wrap(errors.ErrInvalidInput, "prompt is empty"),
			wantCode:   http.StatusBadRequest,
			wantReason: "invalid_request",
		},
		{
			name: "stage failure",
			body: `{"prompt":"x"}`,
			err: &pipeline.PipelineFailure{
				Stage:  pipeline.StageNormalize,
				Reason: string(research.ReasonMissingRequiredFields),
				Cause:  &research.NormalizationError{Reason: research.ReasonMissingRequiredFields, Fields: []string{"analysis"}},
			},
			wantCode:   http.StatusInternalServerError,
			wantReason: "missing_required_fields",
			wantStage:  "normalize",
		},
		{
			name: "deadline",
			body: `{"prompt":"x"}`,
			err: &pipeline.PipelineFailure{
				Stage:  pipeline.StageResearch,
				Reason: pipeline.ReasonTimeout,
				Cause:  context.DeadlineExceeded,
			},
			wantCode:   http.StatusGatewayTimeout,
			wantReason: "timeout",
			wantStage:  "research",
		},
		{
			name:       "unexpected",
			body:       `{"prompt":"x"}`,
			err:        errors.New("boom"),
			wantCode:   http.StatusInternalServerError,
			wantReason: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}

			rec, body := do(t, newTestRouter(svc, nil), http.MethodPost, "/research/presentation", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantReason, body["reason"])
			if tt.wantStage != "" {
				assert.Equal(t, tt.wantStage, body["stage"])
			}
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestEditEndpoint(t *testing.T) {
	svc := &fakeService{edit: &presentation.EditResult{
		Explanation: "Added a closing slide.",
		Deck:        deck.Artifact{HTML: "<html>new</html>"},
		Summary:     presentation.EditSummary{SlidesBefore: 2, SlidesAfter: 3},
	}}

	rec, body := do(t, newTestRouter(svc, nil), http.MethodPost, "/edit", `{"html_input":"<html>old</html>","prompt":"add a closing slide"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>old</html>", svc.html)
	assert.Equal(t, "add a closing slide", svc.instruction)
	assert.Equal(t, "success", body["status"])

	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Added a closing slide.", result["explanation"])
	assert.Equal(t, "<html>new</html>", result["html"])
}

func TestEditEndpoint_Malformed(t *testing.T) {
	svc := &fakeService{err: &pipeline.PipelineFailure{
		Stage:  pipeline.StageEdit,
		Reason: string(deck.ReasonMalformedResponse),
		Cause:  &deck.EditError{Reason: deck.ReasonMalformedResponse},
	}}

	rec, body := do(t, newTestRouter(svc, nil), http.MethodPost, "/edit", `{"html_input":"<html></html>","prompt":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "edit", body["stage"])
	assert.Equal(t, string(deck.ReasonMalformedResponse), body["reason"])
}

func TestHealthEndpoints(t *testing.T) {
	healthy := map[string]health.CheckFunc{
		"redis": func(context.Context) error { return nil },
	}
	router := newTestRouter(&fakeService{}, healthy)

	rec, body := do(t, router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok"}, body)

	rec, body = do(t, router, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	failing := map[string]health.CheckFunc{
		"redis": func(context.Context) error { return nil },
		"kafka": func(context.Context) error { return errors.New("no brokers") },
	}
	rec, body = do(t, newTestRouter(&fakeService{}, failing), http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unready", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["kafka"].(map[string]any)["status"])
	assert.Equal(t, "no brokers", checks["kafka"].(map[string]any)["error"])
}

func TestRootAndCORS(t *testing.T) {
	router := newTestRouter(&fakeService{}, nil)

	rec, body := do(t, router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deckforge", body["service"])

	req := httptest.NewRequest(http.MethodOptions, "/research/presentation", nil)
	req.Header.Set("Origin", "https://slides.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSConfig_ExplicitOrigins(t *testing.T) {
	cfg := corsConfig([]string{"https://a.example.com"})
	assert.False(t, cfg.AllowAllOrigins)
	assert.Equal(t, []string{"https://a.example.com"}, cfg.AllowOrigins)

	assert.True(t, corsConfig(nil).AllowAllOrigins)
}
