package testsupport

import (
	"context"
	"iter"
	"strings"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// RespondFunc produces the answer to the n-th call (0-based) of a ScriptedLLM.
type RespondFunc func(call int, req *model.LLMRequest) (*model.LLMResponse, error)

// ScriptedLLM is a model.LLM whose answers come from a RespondFunc. It keeps
// every request it saw so tests can assert on prompts and tool declarations.
type ScriptedLLM struct {
	name    string
	respond RespondFunc

	mu       sync.Mutex
	requests []*model.LLMRequest
}

// NewScriptedLLM creates a fake model.
func NewScriptedLLM(name string, respond RespondFunc) *ScriptedLLM {
	return &ScriptedLLM{name: name, respond: respond}
}

// Name implements model.LLM.
func (s *ScriptedLLM) Name() string { return s.name }

// GenerateContent implements model.LLM.
func (s *ScriptedLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}

		s.mu.Lock()
		call := len(s.requests)
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		yield(s.respond(call, req))
	}
}

// Calls returns how many times the model was invoked.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the recorded requests.
func (s *ScriptedLLM) Requests() []*model.LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.LLMRequest(nil), s.requests...)
}

// Sequence answers call n with responses[n] and repeats the last one afterwards.
func Sequence(responses ...*model.LLMResponse) RespondFunc {
	return func(call int, _ *model.LLMRequest) (*model.LLMResponse, error) {
		if call >= len(responses) {
			call = len(responses) - 1
		}
		return responses[call], nil
	}
}

// Text builds a final text answer.
func Text(s string) *model.LLMResponse {
	return &model.LLMResponse{
		Content:      genai.NewContentFromText(s, genai.RoleModel),
		FinishReason: genai.FinishReasonStop,
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     100,
			CandidatesTokenCount: int32(len(s)/4 + 1),
			TotalTokenCount:      100 + int32(len(s)/4+1),
		},
	}
}

// Call builds an answer requesting a single tool call.
func Call(id, name string, args map[string]any) *model.LLMResponse {
	return &model.LLMResponse{
		Content: &genai.Content{
			Role: string(genai.RoleModel),
			Parts: []*genai.Part{{
				FunctionCall: &genai.FunctionCall{ID: id, Name: name, Args: args},
			}},
		},
		FinishReason: genai.FinishReasonStop,
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     100,
			CandidatesTokenCount: 20,
			TotalTokenCount:      120,
		},
	}
}

// HasTool reports whether the request declares a tool with the given name.
func HasTool(req *model.LLMRequest, name string) bool {
	if req == nil {
		return false
	}
	if _, ok := req.Tools[name]; ok {
		return true
	}
	if req.Config == nil {
		return false
	}
	for _, t := range req.Config.Tools {
		if t == nil {
			continue
		}
		for _, fd := range t.FunctionDeclarations {
			if fd != nil && fd.Name == name {
				return true
			}
		}
	}
	return false
}

// FunctionResponses returns the tool results present in the request history,
// keyed by tool name. Later results overwrite earlier ones.
func FunctionResponses(req *model.LLMRequest) map[string]map[string]any {
	out := map[string]map[string]any{}
	if req == nil {
		return out
	}
	for _, c := range req.Contents {
		if c == nil {
			continue
		}
		for _, p := range c.Parts {
			if p != nil && p.FunctionResponse != nil {
				out[p.FunctionResponse.Name] = p.FunctionResponse.Response
			}
		}
	}
	return out
}

// UserText concatenates the user-authored text of the request.
func UserText(req *model.LLMRequest) string {
	if req == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range req.Contents {
		if c == nil || c.Role != string(genai.RoleUser) {
			continue
		}
		for _, p := range c.Parts {
			if p != nil && p.Text != "" {
				b.WriteString(p.Text)
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// SystemText returns the system instruction of the request.
func SystemText(req *model.LLMRequest) string {
	if req == nil || req.Config == nil || req.Config.SystemInstruction == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range req.Config.SystemInstruction.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

var _ model.LLM = (*ScriptedLLM)(nil)
