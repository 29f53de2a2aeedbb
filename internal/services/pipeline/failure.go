package pipeline

import (
	"context"
	"fmt"

	"deckforge/internal/domain/deck"
	"deckforge/internal/domain/research"
	"deckforge/pkg/errors"
)

// Stage names a pipeline step.
type Stage string

const (
	StageResearch   Stage = "research"
	StageNormalize  Stage = "normalize"
	StageVerify     Stage = "verify_sources"
	StageSynthesize Stage = "synthesize"
	StageGenerate   Stage = "generate"
	StageEdit       Stage = "edit"
)

// Failure reasons that do not come from a typed domain error.
const (
	ReasonTimeout         = "timeout"
	ReasonCanceled        = "canceled"
	ReasonRateLimited     = "rate_limited"
	ReasonProviderFailure = "provider_failure"
	ReasonInternal        = "internal"
)

// PipelineFailure is the single error a request surfaces when a stage
// fails. Reason is the domain reason of the cause when it has one.
type PipelineFailure struct {
	Stage  Stage
	Reason string
	Cause  error
}

func newFailure(stage Stage, cause error) *PipelineFailure {
	return &PipelineFailure{Stage: stage, Reason: reasonOf(cause), Cause: cause}
}

func (f *PipelineFailure) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", f.Stage, f.Reason, f.Cause)
}

func (f *PipelineFailure) Unwrap() error { return f.Cause }

// Timeout reports whether the request deadline expired.
func (f *PipelineFailure) Timeout() bool {
	return errors.Is(f.Cause, context.DeadlineExceeded)
}

// Detail is the diagnostic text shown to callers. Output that failed to
// parse contributes its bounded excerpt.
func (f *PipelineFailure) Detail() string {
	var ne *research.NormalizationError
	if errors.As(f.Cause, &ne) && ne.RawExcerpt != "" {
		return ne.Error() + "; output began: " + ne.RawExcerpt
	}
	return f.Cause.Error()
}

func reasonOf(err error) string {
	var (
		rf *research.ResearchFailure
		ne *research.NormalizationError
		ee *deck.EditError
	)
	switch {
	case errors.As(err, &rf):
		return string(rf.Reason)
	case errors.As(err, &ne):
		return string(ne.Reason)
	case errors.As(err, &ee):
		return string(ee.Reason)
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return ReasonRateLimited
	case errors.Is(err, errors.ErrProviderFailure), errors.Is(err, errors.ErrEmptyCompletion):
		return ReasonProviderFailure
	case errors.Is(err, errors.ErrSearchFailure):
		return string(research.ReasonToolUnavailable)
	default:
		return ReasonInternal
	}
}
