package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"deckforge/internal/domain/research"
	"deckforge/internal/services/pipeline"
	"deckforge/internal/services/presentation"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
)

// Service is what the HTTP and MCP surfaces call.
type Service interface {
	Research(ctx context.Context, prompt string) (*pipeline.Report, error)
	Edit(ctx context.Context, html, instruction string) (*presentation.EditResult, error)
}

type researchRequest struct {
	Prompt string `json:"prompt"`
}

type researchResponse struct {
	Status   string            `json:"status"`
	RunID    string            `json:"run_id,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Markdown string            `json:"markdown,omitempty"`
	RevealJS string            `json:"reveal_js,omitempty"`
	Analysis research.Analysis `json:"analysis,omitempty"`
	Sources  []string          `json:"sources,omitempty"`
}

type editRequest struct {
	HTMLInput string `json:"html_input"`
	Prompt    string `json:"prompt"`
}

type editResult struct {
	Explanation string                   `json:"explanation"`
	HTML        string                   `json:"html"`
	Summary     presentation.EditSummary `json:"summary"`
}

type editResponse struct {
	Status string     `json:"status"`
	Result editResult `json:"result"`
}

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Status string `json:"status"`
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Handlers serves the research and edit endpoints.
type Handlers struct {
	svc Service
	log *logger.Logger
}

// NewHandlers creates the endpoint handlers.
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc, log: logger.Get().With("component", "http_api")}
}

// Research handles POST /research/presentation.
func (h *Handlers) Research(c *gin.Context) {
	var req researchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Status: "error", Reason: "invalid_request", Detail: err.Error()})
		return
	}

	report, err := h.svc.Research(c.Request.Context(), req.Prompt)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if report.Status == pipeline.StatusRefused {
		c.JSON(http.StatusOK, researchResponse{Status: string(report.Status), RunID: report.RunID, Reason: report.Reason})
		return
	}
	c.JSON(http.StatusOK, researchResponse{
		Status:   string(report.Status),
		RunID:    report.RunID,
		Markdown: report.Markdown,
		RevealJS: report.RevealJS,
		Analysis: report.Analysis,
		Sources:  report.Sources,
	})
}

// Edit handles POST /edit.
func (h *Handlers) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorBody{Status: "error", Reason: "invalid_request", Detail: err.Error()})
		return
	}

	res, err := h.svc.Edit(c.Request.Context(), req.HTMLInput, req.Prompt)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, editResponse{
		Status: "success",
		Result: editResult{Explanation: res.Explanation, HTML: res.Deck.HTML, Summary: res.Summary},
	})
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	code, body := ErrorStatus(err)
	if code >= http.StatusInternalServerError {
		h.log.WithContext(c.Request.Context()).Warnw("Request failed", "path", c.FullPath(), "status", code, "reason", body.Reason)
	}
	c.JSON(code, body)
}

// ErrorStatus maps an error to its HTTP status and response body.
func ErrorStatus(err error) (int, ErrorBody) {
	var failure *pipeline.PipelineFailure
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, ErrorBody{Status: "error", Reason: "invalid_request", Detail: err.Error()}
	case errors.As(err, &failure):
		code := http.StatusInternalServerError
		if failure.Timeout() {
			code = http.StatusGatewayTimeout
		}
		return code, ErrorBody{
			Status: "error",
			Stage:  string(failure.Stage),
			Reason: failure.Reason,
			Detail: failure.Detail(),
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorBody{Status: "error", Reason: pipeline.ReasonTimeout, Detail: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Status: "error", Reason: pipeline.ReasonInternal, Detail: err.Error()}
	}
}
