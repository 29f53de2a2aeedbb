package errors

import (
	"context"
)

// Tracker reports failures to an external service such as Sentry. Captured
// pipeline failures carry the tags built by FailureTags.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error
	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error
	// AddBreadcrumb records a step so later captures carry the run history.
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})
	Flush(ctx context.Context) error
}

// Tag keys set on captured failures.
const (
	TagOperation = "operation"
	TagStage     = "stage"
	TagReason    = "reason"
	TagRunID     = "run_id"
)

// FailureTags labels a failed research or edit run. Empty values are left out.
func FailureTags(operation, stage, reason string) map[string]string {
	tags := make(map[string]string, 3)
	for k, v := range map[string]string{TagOperation: operation, TagStage: stage, TagReason: reason} {
		if v != "" {
			tags[k] = v
		}
	}
	return tags
}

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}
