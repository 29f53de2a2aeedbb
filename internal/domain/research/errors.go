package research

import (
	"fmt"
	"strings"
)

// NormalizationReason classifies why raw output could not become an Analysis.
type NormalizationReason string

const (
	ReasonInvalidStructuredOutput NormalizationReason = "invalid_structured_output"
	ReasonUnsupportedOutputType   NormalizationReason = "unsupported_output_type"
	ReasonMissingRequiredFields   NormalizationReason = "missing_required_fields"
	ReasonMissingSource           NormalizationReason = "missing_source"
	ReasonUntraceableSource       NormalizationReason = "untraceable_source"
)

// rawExcerptLimit bounds how much model output an error carries.
const rawExcerptLimit = 300

// NormalizationError is returned by Normalize and VerifySources.
type NormalizationError struct {
	Reason NormalizationReason
	Detail string
	// RawExcerpt is a bounded prefix of the unparseable output.
	RawExcerpt string
	// Fields lists the offending keys or topics.
	Fields []string
}

func (e *NormalizationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "normalization failed: %s", e.Reason)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Fields, ", "))
	}
	return b.String()
}

// Is matches another NormalizationError with the same reason, or any
// NormalizationError when the target has no reason.
func (e *NormalizationError) Is(target error) bool {
	t, ok := target.(*NormalizationError)
	return ok && (t.Reason == "" || t.Reason == e.Reason)
}

// FailureReason classifies a research run that produced no raw output.
type FailureReason string

const (
	ReasonStepLimitExceeded FailureReason = "step_limit_exceeded"
	ReasonToolUnavailable   FailureReason = "tool_unavailable"
	ReasonRefused           FailureReason = "refused_due_to_ambiguous_scope"
)

// ResearchFailure is returned by the orchestrator.
type ResearchFailure struct {
	Reason FailureReason
	Detail string
	Err    error
}

func (e *ResearchFailure) Error() string {
	msg := "research failed: " + string(e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResearchFailure) Unwrap() error { return e.Err }

// Is matches another ResearchFailure with the same reason, or any
// ResearchFailure when the target has no reason.
func (e *ResearchFailure) Is(target error) bool {
	t, ok := target.(*ResearchFailure)
	return ok && (t.Reason == "" || t.Reason == e.Reason)
}

// Refused reports whether the failure is a scope refusal, which callers
// treat as a regular outcome rather than an error.
func (e *ResearchFailure) Refused() bool {
	return e.Reason == ReasonRefused
}
